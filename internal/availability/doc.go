// Package availability временные правила бронирования: полуоткрытые окна,
// рабочие часы, детектор конфликтов (буфер между занятиями и перерыв после
// двух подряд) и генератор свободных окон.
//
// Все функции чистые: вызывающий сам загружает занятия учителя и передаёт их
// окнами, между вызовами ничего не кэшируется.
package availability

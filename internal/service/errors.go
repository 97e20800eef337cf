package service

import (
	"errors"
	"fmt"
)

// ErrorKind категория ошибки: по ней транспорт выбирает код ответа
type ErrorKind string

const (
	KindValidation ErrorKind = "validation" // некорректный ввод, нарушены правила окна
	KindNotFound   ErrorKind = "not_found"  // нет занятия, программы, предмета или учителя
	KindForbidden  ErrorKind = "forbidden"  // нет роли или назначения
	KindConflict   ErrorKind = "conflict"   // лимит, пересечение, неверный статус, дубль
	KindDependency ErrorKind = "dependency" // упал внешний сервис
)

// Error доменная ошибка с категорией и понятным сообщением
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать с ErrValidation, ErrConflict и т.д. по категории
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrDependency = &Error{Kind: KindDependency}
)

// KindOf возвращает категорию ошибки или пустую строку для прочих ошибок
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func forbiddenf(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func dependency(message string, err error) error {
	return &Error{Kind: KindDependency, Message: message, Err: err}
}

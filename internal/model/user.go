package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           Role      `json:"role"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"` // указатель - может быть nil
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

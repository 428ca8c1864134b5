package model

import (
	"strings"
	"time"
)

type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	IsAdmin        bool      `db:"is_admin" json:"is_admin"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	StorageRelPath string    `db:"storage_rel_path" json:"-"`
	DateJoined     time.Time `db:"date_joined" json:"date_joined"`
}

// DefaultStorageRelPath : каталог пользователя относительно корня хранилища, u/<2 буквы>/<username>
func (u *User) DefaultStorageRelPath() string {
	prefix := []rune(u.Username)
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return "u/" + strings.ToLower(string(prefix)) + "/" + u.Username
}

// Actor : кто выполняет операцию
type Actor struct {
	UserID  int64
	IsAdmin bool
}

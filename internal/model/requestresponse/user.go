package requestresponse

import (
	"time"

	"mycloud/internal/model"
)

// RegisterRequest : тело запроса регистрации
type RegisterRequest struct {
	Username string `json:"username" example:"newuser_1"`
	FullName string `json:"full_name" example:"Иван Петров"`
	Email    string `json:"email" example:"ivan@example.com"`
	Password string `json:"password" example:"P@ssw0rd123"`
}

// UserResponse : публичные данные пользователя
type UserResponse struct {
	ID         int64  `json:"id" example:"1"`
	Username   string `json:"username" example:"newuser_1"`
	FullName   string `json:"full_name" example:"Иван Петров"`
	Email      string `json:"email" example:"ivan@example.com"`
	IsAdmin    bool   `json:"is_admin" example:"false"`
	IsActive   bool   `json:"is_active" example:"true"`
	DateJoined string `json:"date_joined" example:"2025-08-23T12:34:56Z"`
}

func UserResponseFromModel(user *model.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		Email:      user.Email,
		IsAdmin:    user.IsAdmin,
		IsActive:   user.IsActive,
		DateJoined: user.DateJoined.UTC().Format(time.RFC3339),
	}
}

// ErrorResponse : стандартная структура ошибки
type ErrorResponse struct {
	Error   string            `json:"error" example:"Bad Request"`
	Message string            `json:"message" example:"некорректная папка"`
	Code    int               `json:"code" example:"400"`
	Reason  string            `json:"reason,omitempty" example:"validation_error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// UsageResponse : занятое место и квота
type UsageResponse struct {
	UsedBytes  int64 `json:"used_bytes" example:"1048576"`
	QuotaBytes int64 `json:"quota_bytes" example:"5368709120"`
}

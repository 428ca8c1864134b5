package requestresponse

// LoginRequest : тело запроса на аутентификацию
type LoginRequest struct {
	Username string `json:"username" example:"user_1"`
	Password string `json:"password" example:"P@ssw0rd123"`
}

// TokensResponse : пара токенов
type TokensResponse struct {
	AccessToken  string `json:"access_token" example:"eyJhbGciOiJIUzUxMiIsInR5cCI6IkpXVCJ9..."`
	RefreshToken string `json:"refresh_token" example:"sfuqwejqjoiu93e29"`
}

// RefreshTokenRequest : запрос на обновление пары токенов
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" example:"sfuqwejqjoiu93e29"`
}

// LogoutResponse : ответ на завершение сессии
type LogoutResponse struct {
	Status string `json:"status" example:"logged_out"`
}

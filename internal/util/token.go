package util

import (
	"crypto/rand"
	"encoding/base64"
)

// PublicTokenBytes : длина случайной части токена публичной ссылки
const PublicTokenBytes = 24

// GeneratePublicToken : случайный url-safe токен без паддинга (32 символа)
func GeneratePublicToken() (string, error) {
	bytes := make([]byte, PublicTokenBytes)

	_, err := rand.Read(bytes)
	if err != nil {
		return "", LogError("[util] ошибка генерации токена", err)
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

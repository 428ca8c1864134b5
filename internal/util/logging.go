package util

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

func LogError(message string, err error) error {
	log.Printf("%s: %v", message, err)
	return fmt.Errorf("%s: %w", message, err)
}

// ErrorResponse : тело ответа с ошибкой
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Reason  string            `json:"reason,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	WriteError(w, ErrorResponse{Message: message, Code: statusCode})
}

// WriteError : отправляет ErrorResponse, пустые поля error и code заполняются по статусу
func WriteError(w http.ResponseWriter, response ErrorResponse) {
	if response.Code == 0 {
		response.Code = http.StatusInternalServerError
	}
	if response.Error == "" {
		response.Error = http.StatusText(response.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.Code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[util] ошибка кодирования ответа: %v", err)
	}
}

// WriteJSON : отправляет payload в JSON с заданным статусом
func WriteJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[util] ошибка кодирования ответа: %v", err)
	}
}

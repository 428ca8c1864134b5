package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/security"
	"mycloud/internal/util"

	"github.com/go-chi/chi/v5"
)

var statusByKind = map[apperror.Kind]int{
	apperror.KindValidation:       http.StatusBadRequest,
	apperror.KindInvalidArgument:  http.StatusBadRequest,
	apperror.KindInvalidOperation: http.StatusBadRequest,
	apperror.KindInvalidState:     http.StatusBadRequest,
	apperror.KindTooLarge:         http.StatusBadRequest,
	apperror.KindUnauthorized:     http.StatusUnauthorized,
	apperror.KindForbidden:        http.StatusForbidden,
	apperror.KindNotFound:         http.StatusNotFound,
	apperror.KindIO:               http.StatusInternalServerError,
	apperror.KindInternal:         http.StatusInternalServerError,
}

// sendServiceError : переводит ошибку сервиса в HTTP-ответ. Текст внутренних ошибок клиенту не отдаётся
func sendServiceError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		log.Printf("[Handler] внутренняя ошибка: %v", err)
		util.WriteError(w, util.ErrorResponse{
			Message: "внутренняя ошибка сервера",
			Code:    http.StatusInternalServerError,
			Reason:  string(apperror.KindInternal),
		})
		return
	}

	status, ok := statusByKind[appErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := appErr.Message
	if status == http.StatusInternalServerError {
		log.Printf("[Handler] %v", err)
	}

	util.WriteError(w, util.ErrorResponse{
		Message: message,
		Code:    status,
		Reason:  appErr.ReasonCode(),
		Fields:  appErr.Fields,
	})
}

// sendErrorResponse отправляет ответ об ошибке JSON с указанным кодом статуса и сообщением
func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	util.HandleError(w, message, statusCode)
}

// decodeJSON обрабатывает декодирование JSON и возвращает ответ об ошибке, если декодирование не удалось.
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		util.WriteError(w, util.ErrorResponse{
			Message: "некорректный JSON",
			Code:    http.StatusBadRequest,
			Reason:  string(apperror.KindValidation),
		})
		return err
	}
	return nil
}

// currentActor : пользователь из контекста, middleware уже проверил токен
func currentActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	claims, err := security.GetClaimsFromContext(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "пользователь не авторизован")
		return model.Actor{}, false
	}
	return claims.Actor(), true
}

// pathID : целочисленный параметр {id} из пути
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		sendServiceError(w, apperror.Validation("некорректный id").WithField("id", "ожидается целое число"))
		return 0, false
	}
	return id, true
}

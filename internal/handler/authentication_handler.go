package handler

import (
	"net/http"
	"strings"

	"mycloud/internal/apperror"
	"mycloud/internal/model/requestresponse"
	"mycloud/internal/ports"
	"mycloud/internal/security"
	"mycloud/internal/util"
)

type AuthenticationHandler struct {
	ports.AuthenticationService
	ports.UserService
}

func NewAuthenticationHandler(authenticationService ports.AuthenticationService, userService ports.UserService) *AuthenticationHandler {
	return &AuthenticationHandler{authenticationService, userService}
}

// Login godoc
// @Summary Аутентификация пользователя
// @Description Выдаёт пару access и refresh токенов по логину и паролю
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.LoginRequest true "Тело запроса"
// @Success 200 {object} requestresponse.TokensResponse "Успешная аутентификация"
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный JSON или пустые поля"
// @Failure 401 {object} requestresponse.ErrorResponse "Неверный логин или пароль"
// @Failure 403 {object} requestresponse.ErrorResponse "Учётная запись отключена"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/auth [post]
func (h *AuthenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req requestresponse.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if req.Username == "" || req.Password == "" {
		appErr := apperror.Validation("username и password обязательны")
		if req.Username == "" {
			appErr.WithField("username", "обязательное поле")
		}
		if req.Password == "" {
			appErr.WithField("password", "обязательное поле")
		}
		sendServiceError(w, appErr)
		return
	}

	tokens, err := h.AuthenticationService.Login(r.Context(), req.Username, req.Password, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.TokensResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// RefreshToken godoc
// @Summary Обновление токенов
// @Description Обновляет пару токенов по access токену (можно просроченному) и refresh токену. Старый refresh токен становится недействительным.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.RefreshTokenRequest true "Тело запроса"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.TokensResponse "Новые access и refresh токены"
// @Failure 400 {object} requestresponse.ErrorResponse "Неверный JSON"
// @Failure 401 {object} requestresponse.ErrorResponse "Невалидный токен"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/auth/refresh [post]
func (h *AuthenticationHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		sendErrorResponse(w, http.StatusUnauthorized, "пустой или неверный заголовок Authorization")
		return
	}
	accessToken := strings.TrimPrefix(authHeader, "Bearer ")

	var req requestresponse.RefreshTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	tokens, err := h.AuthenticationService.RefreshToken(r.Context(), r.UserAgent(), r.RemoteAddr, accessToken, req.RefreshToken)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.TokensResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Logout godoc
// @Summary Завершение сессии
// @Description Помечает refresh токен текущей сессии использованным, access токен этой сессии перестаёт приниматься
// @Tags Authentication
// @Produce json
// @Success 200 {object} requestresponse.LogoutResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/auth/logout [post]
func (h *AuthenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := security.GetClaimsFromContext(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "пользователь не авторизован")
		return
	}

	if err := h.AuthenticationService.Logout(r.Context(), claims.RefreshTokenUUID); err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.LogoutResponse{Status: "logged_out"})
}

// Me godoc
// @Summary Текущий пользователь
// @Tags Authentication
// @Produce json
// @Success 200 {object} requestresponse.UserResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/auth/me [get]
func (h *AuthenticationHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	user, err := h.UserService.GetUser(r.Context(), actor.UserID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.UserResponseFromModel(user))
}

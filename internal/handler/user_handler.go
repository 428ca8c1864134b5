package handler

import (
	"net/http"

	"mycloud/internal/model"
	"mycloud/internal/model/requestresponse"
	"mycloud/internal/ports"
	"mycloud/internal/util"
)

type UserHandler struct {
	ports.UserService
}

func NewUserHandler(userService ports.UserService) *UserHandler {
	return &UserHandler{userService}
}

// RegisterUser godoc
// @Summary Регистрация нового пользователя
// @Description Логин до 20 символов (буквы, цифры, _), пароль от 8 символов с буквой и цифрой. Все ошибки полей возвращаются вместе в fields.
// @Tags Users
// @Accept json
// @Produce json
// @Param body body requestresponse.RegisterRequest true "Тело запроса"
// @Success 201 {object} requestresponse.UserResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/auth/register [post]
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req requestresponse.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	user, err := h.UserService.Register(r.Context(), model.Registration{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, requestresponse.UserResponseFromModel(user))
}

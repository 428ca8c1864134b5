package service

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"mycloud/config"
	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/ports"
	"mycloud/internal/security"
)

const maxUsernameLength = 20

type UserService struct {
	userRepository ports.UserRepository
}

func NewUserService(userRepository ports.UserRepository) *UserService {
	return &UserService{
		userRepository: userRepository,
	}
}

// Register : создаёт учётную запись. Все ошибки полей возвращаются одной ValidationError
func (s *UserService) Register(ctx context.Context, input model.Registration) (*model.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	fieldErrors := apperror.Validation("некорректные данные регистрации")
	if err := validateUsername(input.Username); err != nil {
		fieldErrors.WithField("username", err.Error())
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		fieldErrors.WithField("email", "некорректный email")
	}
	if err := validatePassword(input.Password); err != nil {
		fieldErrors.WithField("password", err.Error())
	}
	if len(fieldErrors.Fields) > 0 {
		return nil, fieldErrors
	}

	exists, err := s.userRepository.Exists(ctx, nil, input.Username, input.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.Validation("пользователь уже существует").
			WithField("username", "логин или email уже заняты")
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, apperror.Internal("[UserService] не удалось создать хэш пароля", err)
	}

	created, err := s.userRepository.CreateUser(ctx, nil, &model.User{
		Username:     input.Username,
		FullName:     strings.TrimSpace(input.FullName),
		Email:        input.Email,
		PasswordHash: hash,
		IsAdmin:      input.IsAdmin,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[UserService] зарегистрирован пользователь %s", created.Username)
	return created, nil
}

func validateUsername(username string) error {
	if username == "" {
		return errors.New("логин обязателен")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return errors.New("логин длиннее 20 символов")
	}
	for _, c := range username {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			return errors.New("логин может содержать только буквы, цифры и _")
		}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("пароль должен содержать минимум 8 символов")
	}

	var letterCount, digitCount int
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			letterCount++
		case unicode.IsDigit(c):
			digitCount++
		}
	}

	if letterCount == 0 {
		return errors.New("пароль должен содержать хотя бы одну букву")
	}
	if digitCount == 0 {
		return errors.New("пароль должен содержать хотя бы одну цифру")
	}

	return nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.userRepository.FindByID(ctx, nil, id)
}

// EnsureInitialAdmin : создаёт администратора из конфигурации, если такого пользователя ещё нет
func (s *UserService) EnsureInitialAdmin(ctx context.Context, admin config.AdminConfig) error {
	if admin.Username == "" {
		return nil
	}

	_, err := s.userRepository.FindByUsername(ctx, nil, admin.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	_, err = s.Register(ctx, model.Registration{
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
		IsAdmin:  true,
	})
	return err
}

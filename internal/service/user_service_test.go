package service_test

import (
	"context"
	"errors"
	"testing"

	"mycloud/config"
	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/security"
	srv "mycloud/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		input       model.Registration
		setupMocks  func(u *MockUserRepository)
		wantFields  []string
		expectError error
	}{
		{
			name:        "all fields invalid",
			input:       model.Registration{Username: "bad login!", Email: "nope", Password: "short"},
			wantFields:  []string{"username", "email", "password"},
			expectError: apperror.ErrValidation,
		},
		{
			name:        "login too long",
			input:       model.Registration{Username: "abcdefghijklmnopqrstu", Email: "a@example.com", Password: "password1"},
			wantFields:  []string{"username"},
			expectError: apperror.ErrValidation,
		},
		{
			name:        "password without digits",
			input:       model.Registration{Username: "alice", Email: "a@example.com", Password: "password"},
			wantFields:  []string{"password"},
			expectError: apperror.ErrValidation,
		},
		{
			name:  "already exists",
			input: model.Registration{Username: "alice", Email: "a@example.com", Password: "password1"},
			setupMocks: func(u *MockUserRepository) {
				u.On("Exists", ctx, mock.Anything, "alice", "a@example.com").Return(true, nil)
			},
			wantFields:  []string{"username"},
			expectError: apperror.ErrValidation,
		},
		{
			name:  "repository error",
			input: model.Registration{Username: "alice", Email: "a@example.com", Password: "password1"},
			setupMocks: func(u *MockUserRepository) {
				u.On("Exists", ctx, mock.Anything, "alice", "a@example.com").Return(false, nil)
				u.On("CreateUser", ctx, mock.Anything, mock.Anything).Return(nil, errors.New("db error"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := new(MockUserRepository)
			if tt.setupMocks != nil {
				tt.setupMocks(userRepo)
			}
			svc := srv.NewUserService(userRepo)

			user, err := svc.Register(ctx, tt.input)

			assert.Nil(t, user)
			require.Error(t, err)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			}
			var appErr *apperror.Error
			if len(tt.wantFields) > 0 && assert.ErrorAs(t, err, &appErr) {
				for _, field := range tt.wantFields {
					assert.Contains(t, appErr.Fields, field)
				}
			}
			userRepo.AssertExpectations(t)
		})
	}
}

func TestUserService_RegisterSuccess(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	svc := srv.NewUserService(userRepo)

	userRepo.On("Exists", ctx, mock.Anything, "Юзер_1", "u@example.com").Return(false, nil)
	userRepo.On("CreateUser", ctx, mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Username == "Юзер_1" && u.IsActive && !u.IsAdmin && security.CheckPassword("password1", u.PasswordHash)
	})).Return(&model.User{ID: 10, Username: "Юзер_1"}, nil)

	user, err := svc.Register(ctx, model.Registration{Username: " Юзер_1 ", Email: "u@example.com", Password: "password1"})

	require.NoError(t, err)
	assert.Equal(t, int64(10), user.ID)
	userRepo.AssertExpectations(t)
}

func TestUserService_EnsureInitialAdmin(t *testing.T) {
	ctx := context.Background()
	admin := config.AdminConfig{Username: "root", Email: "root@example.com", Password: "rootpass1"}

	t.Run("already exists", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("FindByUsername", ctx, mock.Anything, "root").Return(&model.User{ID: 1, IsAdmin: true}, nil)

		require.NoError(t, srv.NewUserService(userRepo).EnsureInitialAdmin(ctx, admin))
		userRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("created", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("FindByUsername", ctx, mock.Anything, "root").Return(nil, apperror.NotFound("нет"))
		userRepo.On("Exists", ctx, mock.Anything, "root", "root@example.com").Return(false, nil)
		userRepo.On("CreateUser", ctx, mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return u.IsAdmin
		})).Return(&model.User{ID: 1, Username: "root", IsAdmin: true}, nil)

		require.NoError(t, srv.NewUserService(userRepo).EnsureInitialAdmin(ctx, admin))
		userRepo.AssertExpectations(t)
	})

	t.Run("not configured", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		require.NoError(t, srv.NewUserService(userRepo).EnsureInitialAdmin(ctx, config.AdminConfig{}))
	})
}

func TestUserService_GetUser(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	userRepo.On("FindByID", ctx, mock.Anything, int64(5)).Return(nil, apperror.NotFound("пользователь не найден"))

	_, err := srv.NewUserService(userRepo).GetUser(ctx, 5)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

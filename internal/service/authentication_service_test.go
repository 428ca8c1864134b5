package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/security"
	"mycloud/internal/service"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ===== MOCKS =====

// MockUserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, exec sqlx.ExtContext, user *model.User) (*model.User, error) {
	args := m.Called(ctx, exec, user)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.User, error) {
	args := m.Called(ctx, exec, id)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, exec sqlx.ExtContext, username string) (*model.User, error) {
	args := m.Called(ctx, exec, username)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Exists(ctx context.Context, exec sqlx.ExtContext, username, email string) (bool, error) {
	args := m.Called(ctx, exec, username, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) SetStorageRelPath(ctx context.Context, exec sqlx.ExtContext, id int64, relPath string) error {
	args := m.Called(ctx, exec, id, relPath)
	return args.Error(0)
}

// MockJWTService
type MockJWTService struct {
	mock.Mock
}

func (m *MockJWTService) GenerateAccessRefreshTokens(user *model.User) (*model.TokensPair, *model.RefreshToken, error) {
	args := m.Called(user)

	var tokens *model.TokensPair
	if t := args.Get(0); t != nil {
		tokens = t.(*model.TokensPair)
	}

	var refresh *model.RefreshToken
	if r := args.Get(1); r != nil {
		refresh = r.(*model.RefreshToken)
	}

	return tokens, refresh, args.Error(2)
}

func (m *MockJWTService) ValidateJWT(tokenString string, secret []byte) (*security.Claims, error) {
	args := m.Called(tokenString, secret)
	if claims, ok := args.Get(0).(*security.Claims); ok {
		return claims, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJWTService) ParseAccessToken(tokenString string) (*security.Claims, error) {
	args := m.Called(tokenString)
	if claims, ok := args.Get(0).(*security.Claims); ok {
		return claims, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockJWTRepo
type MockJWTRepo struct {
	mock.Mock
}

func (m *MockJWTRepo) SaveRefreshToken(ctx context.Context, refreshToken *model.RefreshToken) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockJWTRepo) FindByUUID(ctx context.Context, uuid string) (*model.RefreshToken, error) {
	args := m.Called(ctx, uuid)
	if token, ok := args.Get(0).(*model.RefreshToken); ok {
		return token, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJWTRepo) MarkRefreshTokenUsedByUUID(ctx context.Context, uuid string) error {
	args := m.Called(ctx, uuid)
	return args.Error(0)
}

// ===== HELPERS =====

func newTestAuthService() (*service.AuthenticationService, *MockUserRepository, *MockJWTService, *MockJWTRepo) {
	mockUserRepo := new(MockUserRepository)
	mockJWTService := new(MockJWTService)
	mockJWTRepo := new(MockJWTRepo)

	svc := service.NewAuthenticationService(mockJWTRepo, mockJWTService, mockUserRepo)

	return svc, mockUserRepo, mockJWTService, mockJWTRepo
}

func activeUser(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)
	return &model.User{ID: 7, Username: "alice", PasswordHash: hash, IsActive: true}
}

// storedRefresh : refresh-токен в том виде, в каком он лежит в БД
func storedRefresh(t *testing.T, plain string) *model.RefreshToken {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return &model.RefreshToken{
		UUID:      "r1",
		UserID:    7,
		TokenHash: string(hash),
		ExpireAt:  time.Now().UTC().Add(time.Hour),
		UserAgent: "agent",
		IpAddress: "127.0.0.1",
	}
}

// ===== LOGIN =====

func TestLogin_UserNotFound(t *testing.T) {
	svc, mockUserRepo, _, _ := newTestAuthService()
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, mock.Anything, "alice").
		Return(nil, apperror.NotFound("пользователь не найден"))

	_, err := svc.Login(ctx, "alice", "pass", "agent", "127.0.0.1")

	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Contains(t, err.Error(), "неверный логин или пароль")
	mockUserRepo.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, mockUserRepo, _, _ := newTestAuthService()
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, mock.Anything, "alice").
		Return(activeUser(t, "goodpass1"), nil)

	_, err := svc.Login(ctx, "alice", "badpass1", "agent", "127.0.0.1")

	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	mockUserRepo.AssertExpectations(t)
}

func TestLogin_InactiveUser(t *testing.T) {
	svc, mockUserRepo, _, _ := newTestAuthService()
	ctx := context.Background()

	user := activeUser(t, "goodpass1")
	user.IsActive = false
	mockUserRepo.On("FindByUsername", ctx, mock.Anything, "alice").Return(user, nil)

	_, err := svc.Login(ctx, "alice", "goodpass1", "agent", "127.0.0.1")

	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestLogin_GenerateTokensError(t *testing.T) {
	svc, mockUserRepo, mockJWTService, _ := newTestAuthService()
	ctx := context.Background()

	user := activeUser(t, "goodpass1")
	mockUserRepo.On("FindByUsername", ctx, mock.Anything, "alice").Return(user, nil)
	mockJWTService.On("GenerateAccessRefreshTokens", user).
		Return(nil, nil, errors.New("token error"))

	_, err := svc.Login(ctx, "alice", "goodpass1", "agent", "127.0.0.1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ошибка генерации токенов")
	mockJWTService.AssertExpectations(t)
}

func TestLogin_SaveRefreshTokenError(t *testing.T) {
	svc, mockUserRepo, mockJWTService, mockJWTRepo := newTestAuthService()
	ctx := context.Background()

	user := activeUser(t, "goodpass1")
	tokens := &model.TokensPair{AccessToken: "acc", RefreshToken: "ref"}
	refresh := &model.RefreshToken{UUID: "r1", UserID: user.ID, TokenHash: "ref"}

	mockUserRepo.On("FindByUsername", ctx, mock.Anything, "alice").Return(user, nil)
	mockJWTService.On("GenerateAccessRefreshTokens", user).Return(tokens, refresh, nil)
	mockJWTRepo.On("SaveRefreshToken", ctx, refresh).Return(errors.New("db error"))

	_, err := svc.Login(ctx, "alice", "goodpass1", "agent", "127.0.0.1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ошибка сохранения refresh токена")
	mockJWTRepo.AssertExpectations(t)
}

func TestLogin_Success(t *testing.T) {
	svc, mockUserRepo, mockJWTService, mockJWTRepo := newTestAuthService()
	ctx := context.Background()

	user := activeUser(t, "goodpass1")
	tokens := &model.TokensPair{AccessToken: "acc", RefreshToken: "ref"}
	refresh := &model.RefreshToken{UUID: "r1", UserID: user.ID, TokenHash: "ref"}

	mockUserRepo.On("FindByUsername", ctx, mock.Anything, "alice").Return(user, nil)
	mockJWTService.On("GenerateAccessRefreshTokens", user).Return(tokens, refresh, nil)
	mockJWTRepo.On("SaveRefreshToken", ctx, refresh).Return(nil)

	result, err := svc.Login(ctx, "alice", "goodpass1", "agent", "127.0.0.1")

	require.NoError(t, err)
	assert.Equal(t, tokens, result)
	assert.Equal(t, "agent", refresh.UserAgent)
	assert.Equal(t, "127.0.0.1", refresh.IpAddress)

	mockUserRepo.AssertExpectations(t)
	mockJWTService.AssertExpectations(t)
	mockJWTRepo.AssertExpectations(t)
}

// ===== REFRESH =====

func TestRefreshToken_ParseError(t *testing.T) {
	svc, _, mockJWTService, _ := newTestAuthService()

	mockJWTService.On("ParseAccessToken", "badtoken").Return(nil, errors.New("invalid"))

	tokens, err := svc.RefreshToken(context.Background(), "agent", "127.0.0.1", "badtoken", "refresh")

	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	mockJWTService.AssertExpectations(t)
}

func TestRefreshToken_Rejected(t *testing.T) {
	claims := &security.Claims{UserID: 7, RefreshTokenUUID: "r1"}

	tests := []struct {
		name      string
		userAgent string
		plain     string
		setup     func(rt *model.RefreshToken, repo *MockJWTRepo)
	}{
		{
			name:      "used token",
			userAgent: "agent",
			plain:     "refresh",
			setup: func(rt *model.RefreshToken, repo *MockJWTRepo) {
				rt.Used = true
			},
		},
		{
			name:      "expired token",
			userAgent: "agent",
			plain:     "refresh",
			setup: func(rt *model.RefreshToken, repo *MockJWTRepo) {
				rt.ExpireAt = time.Now().UTC().Add(-time.Hour)
			},
		},
		{
			name:      "user agent mismatch revokes the session",
			userAgent: "new-agent",
			plain:     "refresh",
			setup: func(rt *model.RefreshToken, repo *MockJWTRepo) {
				repo.On("MarkRefreshTokenUsedByUUID", mock.Anything, "r1").Return(nil).Once()
			},
		},
		{
			name:      "refresh does not match the hash",
			userAgent: "agent",
			plain:     "other",
			setup:     func(rt *model.RefreshToken, repo *MockJWTRepo) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, mockJWTService, mockJWTRepo := newTestAuthService()
			ctx := context.Background()

			rt := storedRefresh(t, "refresh")
			tt.setup(rt, mockJWTRepo)
			mockJWTService.On("ParseAccessToken", "token").Return(claims, nil)
			mockJWTRepo.On("FindByUUID", ctx, "r1").Return(rt, nil)

			tokens, err := svc.RefreshToken(ctx, tt.userAgent, "127.0.0.1", "token", tt.plain)

			assert.Nil(t, tokens)
			assert.ErrorIs(t, err, apperror.ErrUnauthorized)
			mockJWTRepo.AssertExpectations(t)
		})
	}
}

func TestRefreshToken_Success(t *testing.T) {
	svc, mockUserRepo, mockJWTService, mockJWTRepo := newTestAuthService()
	ctx := context.Background()

	user := activeUser(t, "goodpass1")
	claims := &security.Claims{UserID: user.ID, RefreshTokenUUID: "r1"}
	newTokens := &model.TokensPair{AccessToken: "acc2", RefreshToken: "ref2"}
	newRefresh := &model.RefreshToken{UUID: "r2", UserID: user.ID}

	mockJWTService.On("ParseAccessToken", "token").Return(claims, nil)
	mockJWTRepo.On("FindByUUID", ctx, "r1").Return(storedRefresh(t, "refresh"), nil)
	mockUserRepo.On("FindByID", ctx, mock.Anything, user.ID).Return(user, nil)
	mockJWTRepo.On("MarkRefreshTokenUsedByUUID", ctx, "r1").Return(nil)
	mockJWTService.On("GenerateAccessRefreshTokens", user).Return(newTokens, newRefresh, nil)
	mockJWTRepo.On("SaveRefreshToken", ctx, newRefresh).Return(nil)

	// новый ip только логируется
	tokens, err := svc.RefreshToken(ctx, "agent", "10.0.0.1", "token", "refresh")

	require.NoError(t, err)
	assert.Equal(t, newTokens, tokens)
	assert.Equal(t, "10.0.0.1", newRefresh.IpAddress)
	mockJWTService.AssertExpectations(t)
	mockJWTRepo.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
}

// ===== LOGOUT =====

func TestLogout(t *testing.T) {
	svc, _, _, mockJWTRepo := newTestAuthService()
	ctx := context.Background()

	mockJWTRepo.On("MarkRefreshTokenUsedByUUID", ctx, "r1").Return(nil)
	mockJWTRepo.On("MarkRefreshTokenUsedByUUID", ctx, "gone").Return(apperror.NotFound("нет токена"))

	assert.NoError(t, svc.Logout(ctx, "r1"))
	assert.Error(t, svc.Logout(ctx, "gone"))
	mockJWTRepo.AssertExpectations(t)
}

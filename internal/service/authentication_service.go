package service

import (
	"context"
	"log"
	"time"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/ports"
	"mycloud/internal/security"
	"mycloud/internal/util"

	"golang.org/x/crypto/bcrypt"
)

type AuthenticationService struct {
	jwtRepoInterface    ports.JWTRepositoryInterface
	jwtServiceInterface ports.JWTServiceInterface
	userRepository      ports.UserRepository
}

func NewAuthenticationService(
	repo ports.JWTRepositoryInterface,
	service ports.JWTServiceInterface,
	userInterface ports.UserRepository,
) *AuthenticationService {
	return &AuthenticationService{
		repo,
		service,
		userInterface,
	}
}

func (s *AuthenticationService) Login(ctx context.Context, username, password, userAgent, ipAddress string) (*model.TokensPair, error) {
	user, err := s.userRepository.FindByUsername(ctx, nil, username)
	if err != nil {
		log.Printf("[AuthService] пользователь %s не найден: %v", username, err)
		return nil, apperror.Unauthorized("неверный логин или пароль")
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, apperror.Unauthorized("неверный логин или пароль")
	}
	if !user.IsActive {
		return nil, apperror.Forbidden("учётная запись отключена")
	}

	tokens, refreshToken, err := s.jwtServiceInterface.GenerateAccessRefreshTokens(user)
	if err != nil {
		return nil, apperror.Internal("ошибка генерации токенов", err)
	}

	refreshToken.UserAgent = userAgent
	refreshToken.IpAddress = ipAddress

	if err := s.jwtRepoInterface.SaveRefreshToken(ctx, refreshToken); err != nil {
		return nil, apperror.Internal("ошибка сохранения refresh токена", err)
	}

	return tokens, nil
}

// RefreshToken обновляет пару токенов
// Выполняет следующие требования к операции refresh:
//  1. Операцию refresh можно выполнить только той парой токенов, которая была выдана вместе.
//  2. Запрещает операцию обновления токенов при изменении User-Agent.
//     При этом, после неудачной попытки выполнения операции, деавторизует пользователя,
//     который попытался выполнить обновление токенов.
//  3. Попытка обновления с нового IP только логируется.
//
// Параметры:
//   - ctx: контекст выполнения (для отмены и таймаутов)
//   - userAgent: информацию о браузере
//   - ipAddress: ip адрес устройства, с которого был выполнен вход
//   - accessToken: текущий access-токен, может быть просрочен
//   - refreshToken: текущий refresh-токен
//
// Возвращает:
//   - model.TokensPair
//   - ошибку, если не удалось обновить токен.
func (s *AuthenticationService) RefreshToken(ctx context.Context, userAgent string, ipAddress string, accessToken string, refreshToken string) (*model.TokensPair, error) {
	claims, err := s.jwtServiceInterface.ParseAccessToken(accessToken)
	if err != nil {
		return nil, apperror.Unauthorized("невалидный токен")
	}

	refreshTokenUUID := claims.RefreshTokenUUID

	storedRefreshToken, err := s.jwtRepoInterface.FindByUUID(ctx, refreshTokenUUID)
	if err != nil {
		util.LogError("[AuthService] не удалось найти рефреш токен", err)
		return nil, apperror.Unauthorized("невалидный токен")
	}
	if storedRefreshToken.Used {
		log.Printf("refresh token %s уже был использован", refreshTokenUUID)
		return nil, apperror.Unauthorized("невалидный токен")
	}

	if time.Now().UTC().After(storedRefreshToken.ExpireAt) {
		log.Printf("refresh token %s просрочен", refreshTokenUUID)
		return nil, apperror.Unauthorized("невалидный токен")
	}

	if storedRefreshToken.UserAgent != userAgent {
		if err := s.jwtRepoInterface.MarkRefreshTokenUsedByUUID(ctx, refreshTokenUUID); err != nil {
			log.Printf("не удалось пометить токен использованным: %v", err)
		}
		log.Printf("refresh token %s: попытка обновления с другого User-Agent", refreshTokenUUID)
		return nil, apperror.Unauthorized("невалидный токен")
	}

	if storedRefreshToken.IpAddress != ipAddress {
		log.Printf("[AuthService] пользователь %d обновляет токены с нового ip %s (был %s)",
			claims.UserID, ipAddress, storedRefreshToken.IpAddress)
	}

	err = bcrypt.CompareHashAndPassword([]byte(storedRefreshToken.TokenHash), []byte(refreshToken))
	if err != nil {
		return nil, apperror.Unauthorized("невалидный токен")
	}

	user, err := s.userRepository.FindByID(ctx, nil, claims.UserID)
	if err != nil {
		return nil, apperror.Unauthorized("пользователь не найден")
	}
	if !user.IsActive {
		return nil, apperror.Forbidden("учётная запись отключена")
	}

	if err := s.jwtRepoInterface.MarkRefreshTokenUsedByUUID(ctx, refreshTokenUUID); err != nil {
		return nil, apperror.Unauthorized("невалидный токен")
	}

	tokensPair, newRefreshToken, err := s.jwtServiceInterface.GenerateAccessRefreshTokens(user)
	if err != nil {
		return nil, apperror.Internal("ошибка генерации токенов", err)
	}

	newRefreshToken.UserAgent = userAgent
	newRefreshToken.IpAddress = ipAddress
	err = s.jwtRepoInterface.SaveRefreshToken(ctx, newRefreshToken)
	if err != nil {
		return nil, apperror.Internal("не удалось сохранить рефреш токен", err)
	}

	return tokensPair, nil
}

// Logout "деактивирует" сессию: помечает refresh-токен использованным
func (s *AuthenticationService) Logout(ctx context.Context, refreshTokenUUID string) error {
	err := s.jwtRepoInterface.MarkRefreshTokenUsedByUUID(ctx, refreshTokenUUID)
	if err != nil {
		return util.LogError("не удалось использовать токен", err)
	}
	return nil
}

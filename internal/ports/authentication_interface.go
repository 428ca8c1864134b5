package ports

import (
	"context"

	"mycloud/internal/model"
)

type AuthenticationService interface {
	Login(ctx context.Context, username, password, userAgent, ipAddress string) (*model.TokensPair, error)
	RefreshToken(ctx context.Context, userAgent, ipAddress, accessToken, refreshToken string) (*model.TokensPair, error)
	Logout(ctx context.Context, refreshTokenUUID string) error
}

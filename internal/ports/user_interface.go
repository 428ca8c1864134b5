package ports

import (
	"context"

	"mycloud/internal/model"

	"github.com/jmoiron/sqlx"
)

type UserRepository interface {
	CreateUser(ctx context.Context, exec sqlx.ExtContext, user *model.User) (*model.User, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.User, error)
	FindByUsername(ctx context.Context, exec sqlx.ExtContext, username string) (*model.User, error)
	Exists(ctx context.Context, exec sqlx.ExtContext, username, email string) (bool, error)
	SetStorageRelPath(ctx context.Context, exec sqlx.ExtContext, id int64, relPath string) error
}

type UserService interface {
	Register(ctx context.Context, input model.Registration) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

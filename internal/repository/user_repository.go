package repository

import (
	"context"
	"database/sql"
	"errors"

	"mycloud/config"
	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/util"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, username, full_name, email, password_hash, is_admin, is_active, storage_rel_path, date_joined`

type UserRepository struct {
	*config.Database
}

func NewUserRepository(database *config.Database) *UserRepository {
	return &UserRepository{database}
}

func (r *UserRepository) ext(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.DB
	}
	return exec
}

// CreateUser : сохраняет нового пользователя, возвращает его с id и date_joined
func (r *UserRepository) CreateUser(ctx context.Context, exec sqlx.ExtContext, user *model.User) (*model.User, error) {
	query := `
	INSERT INTO users (username, full_name, email, password_hash, is_admin, is_active)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, date_joined
	`

	createdUser := *user
	err := r.ext(exec).QueryRowxContext(ctx, query,
		user.Username,
		user.FullName,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.IsActive,
	).Scan(&createdUser.ID, &createdUser.DateJoined)

	if err != nil {
		return nil, util.LogError("[UserRepo] ошибка вставки данных в БД", err)
	}

	return &createdUser, nil
}

// FindByID : ищет пользователя по id
func (r *UserRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var user model.User
	err := sqlx.GetContext(ctx, r.ext(exec), &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("пользователь не найден")
		}
		return nil, util.LogError("[UserRepo] не удалось найти пользователя в БД", err)
	}
	return &user, nil
}

// FindByUsername : ищет пользователя по username
func (r *UserRepository) FindByUsername(ctx context.Context, exec sqlx.ExtContext, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	var user model.User
	err := sqlx.GetContext(ctx, r.ext(exec), &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("пользователь не найден")
		}
		return nil, util.LogError("[UserRepo] не удалось найти пользователя по username", err)
	}
	return &user, nil
}

// Exists : занят ли username или email
func (r *UserRepository) Exists(ctx context.Context, exec sqlx.ExtContext, username, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	err := sqlx.GetContext(ctx, r.ext(exec), &exists, query, username, email)
	if err != nil {
		return false, util.LogError("[UserRepo] ошибка проверки существования пользователя", err)
	}
	return exists, nil
}

// SetStorageRelPath : сохраняет каталог пользователя в хранилище
func (r *UserRepository) SetStorageRelPath(ctx context.Context, exec sqlx.ExtContext, id int64, relPath string) error {
	query := `UPDATE users SET storage_rel_path = $2 WHERE id = $1`
	_, err := r.ext(exec).ExecContext(ctx, query, id, relPath)
	if err != nil {
		return util.LogError("[UserRepo] не удалось сохранить каталог пользователя", err)
	}
	return nil
}

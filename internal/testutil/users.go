package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"mycloud/internal/apperror"
	"mycloud/internal/model"

	"github.com/jmoiron/sqlx"
)

// Users : таблица users в памяти
type Users struct {
	mu     sync.Mutex
	users  map[int64]model.User
	nextID int64
}

func NewUsers(users ...model.User) *Users {
	u := &Users{users: make(map[int64]model.User)}
	for _, user := range users {
		if user.ID > u.nextID {
			u.nextID = user.ID
		}
		if !user.IsActive {
			user.IsActive = true
		}
		u.users[user.ID] = user
	}
	return u
}

func (u *Users) CreateUser(ctx context.Context, exec sqlx.ExtContext, user *model.User) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, existing := range u.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return nil, errors.New("duplicate user")
		}
	}
	u.nextID++
	created := *user
	created.ID = u.nextID
	created.DateJoined = time.Now().UTC()
	u.users[created.ID] = created
	return &created, nil
}

func (u *Users) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[id]
	if !ok {
		return nil, apperror.NotFound("пользователь не найден")
	}
	return &user, nil
}

func (u *Users) FindByUsername(ctx context.Context, exec sqlx.ExtContext, username string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, user := range u.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, apperror.NotFound("пользователь не найден")
}

func (u *Users) Exists(ctx context.Context, exec sqlx.ExtContext, username, email string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, user := range u.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (u *Users) SetStorageRelPath(ctx context.Context, exec sqlx.ExtContext, id int64, relPath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[id]
	if !ok {
		return apperror.NotFound("пользователь не найден")
	}
	user.StorageRelPath = relPath
	u.users[id] = user
	return nil
}

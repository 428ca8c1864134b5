package ports

import (
	"context"

	"mycloud/internal/model"
)

// CacheRepository : Redis слой, кэш публичных ссылок token -> строка узла
type CacheRepository interface {
	// GetPublicLink : ok == false при промахе и для отозванного токена
	GetPublicLink(ctx context.Context, token string) (*model.StoredFile, bool, error)
	// AddPublicLink : записывает узел, только если ключа ещё нет, включая отметку об отзыве
	AddPublicLink(ctx context.Context, token string, node *model.StoredFile) error
	// InvalidatePublicLink : заменяет запись отметкой об отзыве на время TTL
	InvalidatePublicLink(ctx context.Context, token string) error
}

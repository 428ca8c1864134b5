package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mycloud/config"
	"mycloud/internal/model"
	"mycloud/internal/util"

	"github.com/redis/go-redis/v9"
)

// revokedMarker : значение ключа после изменения или отзыва ссылки
const revokedMarker = "revoked"

// CacheRepository : кэш публичных ссылок в Redis, token -> JSON строки узла
type CacheRepository struct {
	client *config.RedisClient
	ttl    time.Duration
}

func NewCacheRepository(rdb *config.RedisClient, ttl time.Duration) *CacheRepository {
	return &CacheRepository{rdb, ttl}
}

// cachedNode : в JSON ответа API disk_name и rel_dir скрыты, для кэша они нужны
type cachedNode struct {
	model.StoredFile
	DiskName string `json:"disk_name"`
	RelDir   string `json:"rel_dir"`
}

func encodeNode(node *model.StoredFile) ([]byte, error) {
	return json.Marshal(cachedNode{StoredFile: *node, DiskName: node.DiskName, RelDir: node.RelDir})
}

func decodeNode(data []byte) (*model.StoredFile, error) {
	var cached cachedNode
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	node := cached.StoredFile
	node.DiskName = cached.DiskName
	node.RelDir = cached.RelDir
	return &node, nil
}

// AddPublicLink : SET NX, существующая запись или отметка об отзыве не перезаписываются
func (r *CacheRepository) AddPublicLink(ctx context.Context, token string, node *model.StoredFile) error {
	data, err := encodeNode(node)
	if err != nil {
		return util.LogError("[CacheRepo] ошибка сериализации узла", err)
	}

	if err := r.client.Client.SetNX(ctx, r.key(token), data, r.ttl).Err(); err != nil {
		return util.LogError("[CacheRepo] ошибка сохранения в Redis", err)
	}
	return nil
}

// GetPublicLink : ok == false, если токена нет в кэше или он отмечен как отозванный
func (r *CacheRepository) GetPublicLink(ctx context.Context, token string) (*model.StoredFile, bool, error) {
	val, err := r.client.Client.Get(ctx, r.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // нет в кэше
	} else if err != nil {
		return nil, false, util.LogError("[CacheRepo] ошибка получения ссылки из Redis", err)
	}
	if string(val) == revokedMarker {
		return nil, false, nil
	}

	node, err := decodeNode(val)
	if err != nil {
		return nil, false, util.LogError("[CacheRepo] ошибка десериализации узла", err)
	}
	return node, true, nil
}

// InvalidatePublicLink : отметка живёт TTL, чтобы параллельный промах не вернул старую строку в кэш
func (r *CacheRepository) InvalidatePublicLink(ctx context.Context, token string) error {
	cmd := r.client.Client.Set(ctx, r.key(token), revokedMarker, r.ttl)
	if err := cmd.Err(); err != nil {
		return util.LogError("[CacheRepo] ошибка сброса ссылки в Redis", err)
	}
	if cmd.Val() != "OK" {
		return fmt.Errorf("неожиданный ответ Redis: %s", cmd.Val())
	}
	return nil
}

func (r *CacheRepository) key(token string) string {
	return fmt.Sprintf("public_link:%s", token)
}

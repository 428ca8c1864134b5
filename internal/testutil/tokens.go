package testutil

import (
	"context"
	"sync"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
)

// RefreshTokens : refresh_tokens в памяти
type RefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{tokens: make(map[string]model.RefreshToken)}
}

func (r *RefreshTokens) SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.UUID] = *token
	return nil
}

func (r *RefreshTokens) FindByUUID(ctx context.Context, uuid string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[uuid]
	if !ok {
		return nil, apperror.NotFound("рефреш токен не найден")
	}
	return &token, nil
}

func (r *RefreshTokens) MarkRefreshTokenUsedByUUID(ctx context.Context, uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[uuid]
	if !ok || token.Used {
		return apperror.NotFound("рефреш токен не найден или уже использован")
	}
	token.Used = true
	r.tokens[uuid] = token
	return nil
}

// LinkCache : кэш публичных ссылок в памяти. nil в map означает отметку об отзыве
type LinkCache struct {
	mu    sync.Mutex
	links map[string]*model.StoredFile
}

func NewLinkCache() *LinkCache {
	return &LinkCache{links: make(map[string]*model.StoredFile)}
}

func (c *LinkCache) AddPublicLink(ctx context.Context, token string, node *model.StoredFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.links[token]; ok {
		return nil
	}
	stored := *node
	c.links[token] = &stored
	return nil
}

func (c *LinkCache) GetPublicLink(ctx context.Context, token string) (*model.StoredFile, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node := c.links[token]
	if node == nil {
		return nil, false, nil
	}
	out := *node
	return &out, true, nil
}

func (c *LinkCache) InvalidatePublicLink(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[token] = nil
	return nil
}

// Len : число живых записей, отметки об отзыве не считаются
func (c *LinkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, node := range c.links {
		if node != nil {
			n++
		}
	}
	return n
}

// Revoked : стоит ли для token отметка об отзыве
func (c *LinkCache) Revoked(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.links[token]
	return ok && node == nil
}

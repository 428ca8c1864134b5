package service

import (
	"context"
	"log"
	"strings"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/ports"
	"mycloud/internal/util"
)

// LinkService : публичные ссылки на файлы. Redis хранит строку узла по токену,
// любое изменение узла со ссылкой заменяет запись отметкой об отзыве
type LinkService struct {
	files   ports.StoredFileRepository
	cache   ports.CacheRepository
	baseURL string
}

func NewLinkService(files ports.StoredFileRepository, cache ports.CacheRepository, baseURL string) *LinkService {
	return &LinkService{
		files:   files,
		cache:   cache,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Issue : выдаёт новый токен, прежний перестаёт работать
func (s *LinkService) Issue(ctx context.Context, node *model.StoredFile) (*model.PublicLink, error) {
	if node.IsFolder {
		return nil, apperror.InvalidOperation("публичная ссылка доступна только для файлов").
			WithField("id", "это папка")
	}

	token, err := util.GeneratePublicToken()
	if err != nil {
		return nil, apperror.Internal("не удалось создать ссылку", err)
	}

	previous, err := s.files.SetPublicToken(ctx, nil, node.ID, &token)
	if err != nil {
		return nil, err
	}
	node.PublicToken = &token
	if previous != nil {
		s.forget(ctx, *previous)
	}

	return &model.PublicLink{Token: token, URL: s.URL(token)}, nil
}

func (s *LinkService) URL(token string) string {
	return s.baseURL + "/d/" + token
}

// Revoke : убирает токен. Для узла без ссылки ничего не меняется
func (s *LinkService) Revoke(ctx context.Context, node *model.StoredFile) error {
	previous, err := s.files.SetPublicToken(ctx, nil, node.ID, nil)
	if err != nil {
		return err
	}
	node.PublicToken = nil
	if previous != nil {
		s.forget(ctx, *previous)
	}
	return nil
}

// Resolve : узел по токену. Неизвестный, отозванный токен и узел в корзине дают NotFound
func (s *LinkService) Resolve(ctx context.Context, token string) (*model.StoredFile, error) {
	if token == "" {
		return nil, apperror.NotFound("ссылка не найдена")
	}

	if node := s.fromCache(ctx, token); node != nil {
		return node, nil
	}

	node, err := s.files.GetByToken(ctx, nil, token)
	if err != nil {
		return nil, err
	}
	if node.IsDeleted {
		return nil, apperror.NotFound("ссылка не найдена")
	}

	s.remember(ctx, token, node)
	return node, nil
}

func (s *LinkService) fromCache(ctx context.Context, token string) *model.StoredFile {
	if s.cache == nil {
		return nil
	}

	node, ok, err := s.cache.GetPublicLink(ctx, token)
	if err != nil || !ok {
		return nil
	}
	if !node.HasPublicLink() || *node.PublicToken != token || node.IsDeleted {
		return nil
	}
	return node
}

// remember : не перезаписывает отметку об отзыве, поставленную после чтения node из БД
func (s *LinkService) remember(ctx context.Context, token string, node *model.StoredFile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.AddPublicLink(ctx, token, node); err != nil {
		log.Printf("[LinkService] не удалось закэшировать ссылку: %v", err)
	}
}

// invalidate : сбрасывает кэш ссылки узла после изменения его строки
func (s *LinkService) invalidate(ctx context.Context, node *model.StoredFile) {
	if node.HasPublicLink() {
		s.forget(ctx, *node.PublicToken)
	}
}

func (s *LinkService) forget(ctx context.Context, token string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePublicLink(ctx, token); err != nil {
		log.Printf("[LinkService] не удалось сбросить ссылку в кэше: %v", err)
	}
}

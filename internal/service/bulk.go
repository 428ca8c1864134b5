package service

import (
	"context"
	"errors"
	"log"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
)

// bulkSet : узлы пакетной операции. Все id должны найтись и принадлежать одному владельцу
func (s *FileService) bulkSet(ctx context.Context, actor model.Actor, rawIDs []any) ([]model.StoredFile, int64, error) {
	ids, err := ParseIDs(rawIDs)
	if err != nil {
		return nil, 0, err
	}

	nodes, err := s.files.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, 0, err
	}

	if len(nodes) != len(ids) {
		if actor.IsAdmin {
			return nil, 0, apperror.NotFound("часть файлов не найдена")
		}
		return nil, 0, apperror.Forbidden("нет доступа к части файлов")
	}

	owners := make(map[int64]struct{})
	for i := range nodes {
		if !CanAccess(actor, &nodes[i]) {
			return nil, 0, apperror.Forbidden("нет доступа к части файлов")
		}
		owners[nodes[i].OwnerID] = struct{}{}
	}
	if len(owners) > 1 {
		return nil, 0, apperror.Forbidden("пакетная операция над файлами разных пользователей запрещена")
	}

	return nodes, nodes[0].OwnerID, nil
}

// BulkTrash : переносит узлы в корзину. Уже удалённые не считаются.
// Отката нет: ошибка на одном узле не отменяет остальные, такие id попадают в Failed
func (s *FileService) BulkTrash(ctx context.Context, actor model.Actor, rawIDs []any) (*model.BulkResult, error) {
	nodes, _, err := s.bulkSet(ctx, actor, rawIDs)
	if err != nil {
		return nil, err
	}

	result := &model.BulkResult{}
	now := s.now()
	for i := range nodes {
		trashed, err := s.trash.Trash(ctx, &nodes[i], now)
		if err != nil {
			log.Printf("[FileService] не удалось удалить узел %d: %v", nodes[i].ID, err)
			result.Failed = append(result.Failed, nodes[i].ID)
			continue
		}
		if trashed {
			result.Count++
		}
	}

	return result, nil
}

// BulkMove : переносит узлы в папку parentID. Узлы в корзине пропускаются
func (s *FileService) BulkMove(ctx context.Context, actor model.Actor, rawIDs []any, parentID int64) (*model.BulkResult, error) {
	nodes, ownerID, err := s.bulkSet(ctx, actor, rawIDs)
	if err != nil {
		return nil, err
	}

	target, err := s.moveTarget(ctx, parentID, ownerID)
	if err != nil {
		return nil, err
	}
	chain, err := s.ancestry(ctx, target)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if nodes[i].IsFolder && chain[nodes[i].ID] {
			return nil, apperror.InvalidOperation("нельзя переместить папку в саму себя или в её подпапку")
		}
	}

	result := &model.BulkResult{}
	for i := range nodes {
		node := &nodes[i]
		if node.IsDeleted {
			continue
		}
		_, err := s.files.MoveTo(ctx, nil, node.ID, &target.ID)
		if errors.Is(err, apperror.ErrInvalidState) {
			continue
		}
		if err != nil {
			log.Printf("[FileService] не удалось переместить узел %d: %v", node.ID, err)
			result.Failed = append(result.Failed, node.ID)
			continue
		}
		result.Count++
	}

	return result, nil
}

package service

import (
	"context"
	"log"
	"time"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/ports"
)

// TrashService : переходы Active -> Trashed -> удаление навсегда
type TrashService struct {
	files ports.StoredFileRepository
	blobs *BlobService
	links *LinkService
}

func NewTrashService(files ports.StoredFileRepository, blobs *BlobService, links *LinkService) *TrashService {
	return &TrashService{files: files, blobs: blobs, links: links}
}

// Trash : переносит узел в корзину. false, если он уже там.
// node обновляется по строке, которую вернул UPDATE
func (s *TrashService) Trash(ctx context.Context, node *model.StoredFile, now time.Time) (bool, error) {
	trashed, err := s.files.SoftDelete(ctx, nil, node.ID, now)
	if err != nil {
		return false, err
	}
	if trashed == nil {
		return false, nil
	}

	*node = *trashed
	s.links.invalidate(ctx, node)
	return true, nil
}

// Restore : возвращает узел в исходную папку, если она ещё подходит, иначе в корень
func (s *TrashService) Restore(ctx context.Context, node *model.StoredFile) error {
	if !node.IsDeleted {
		return apperror.InvalidState("файл не находится в корзине")
	}

	restored, err := s.files.Restore(ctx, nil, node.ID)
	if err != nil {
		return err
	}
	*node = *restored
	return nil
}

// Purge : удаляет узел навсегда вместе с поддеревом папки и блобами файлов
func (s *TrashService) Purge(ctx context.Context, node *model.StoredFile) error {
	nodes, err := s.collectSubtree(ctx, node)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(nodes))
	for i := range nodes {
		current := &nodes[i]
		if !current.IsFolder {
			s.blobs.removeQuietly(ctx, current.RelPath())
		}
		s.links.invalidate(ctx, current)
		ids = append(ids, current.ID)
	}

	if err := s.files.DeleteByIDs(ctx, nil, ids); err != nil {
		return err
	}

	log.Printf("[TrashService] узел %d удалён навсегда (всего строк: %d)", node.ID, len(ids))
	return nil
}

// collectSubtree : узел и все его потомки по parent, обход по уровням
func (s *TrashService) collectSubtree(ctx context.Context, node *model.StoredFile) ([]model.StoredFile, error) {
	nodes := []model.StoredFile{*node}
	if !node.IsFolder {
		return nodes, nil
	}

	seen := map[int64]bool{node.ID: true}
	frontier := []int64{node.ID}
	for len(frontier) > 0 {
		children, err := s.files.ListChildren(ctx, nil, frontier)
		if err != nil {
			return nil, err
		}

		var next []int64
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			nodes = append(nodes, child)
			if child.IsFolder {
				next = append(next, child.ID)
			}
		}
		frontier = next
	}

	return nodes, nil
}

// PurgeExpired : удаляет навсегда узлы, пролежавшие в корзине дольше TrashRetention.
// ownerID == nil означает всех владельцев
func (s *TrashService) PurgeExpired(ctx context.Context, ownerID *int64, now time.Time) (int, error) {
	expired, err := s.files.ListExpired(ctx, nil, ownerID, now.Add(-model.TrashRetention))
	if err != nil {
		return 0, err
	}

	purged := 0
	for i := range expired {
		if err := s.Purge(ctx, &expired[i]); err != nil {
			log.Printf("[TrashService] не удалось очистить узел %d: %v", expired[i].ID, err)
			continue
		}
		purged++
	}
	return purged, nil
}

package service

import (
	"context"
	"fmt"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/ports"
	"mycloud/internal/storage"
)

// ReasonQuotaExceeded : причина отказа в загрузке при нехватке квоты
const ReasonQuotaExceeded = "quota_exceeded"

type QuotaService struct {
	files      ports.StoredFileRepository
	quotaBytes int64
}

func NewQuotaService(files ports.StoredFileRepository, quotaBytes int64) *QuotaService {
	return &QuotaService{files: files, quotaBytes: quotaBytes}
}

// Usage : занятое место владельца и его квота
func (s *QuotaService) Usage(ctx context.Context, ownerID int64) (*model.Usage, error) {
	used, err := s.files.UsedBytes(ctx, nil, ownerID)
	if err != nil {
		return nil, err
	}
	return &model.Usage{UsedBytes: used, QuotaBytes: s.quotaBytes}, nil
}

// CheckQuota : отказывает, если заявленный размер не помещается в остаток квоты.
// Параллельные загрузки могут ненадолго превысить квоту, блокировок нет
func (s *QuotaService) CheckQuota(ctx context.Context, ownerID, declaredSize int64) error {
	if declaredSize <= 0 {
		return nil
	}
	usage, err := s.Usage(ctx, ownerID)
	if err != nil {
		return err
	}
	if usage.UsedBytes+declaredSize > usage.QuotaBytes {
		appErr := apperror.TooLarge(fmt.Sprintf("недостаточно места: занято %s из %s",
			storage.HumanBytes(usage.UsedBytes), storage.HumanBytes(usage.QuotaBytes)))
		appErr.Reason = ReasonQuotaExceeded
		return appErr
	}
	return nil
}

// FolderSizes : размер каждой папки из folderIDs, то есть сумма неудалённых файлов во всём поддереве.
// Обход идёт по уровням: на уровень два запроса, число запросов растёт с глубиной, а не с числом узлов.
// Каждая найденная папка помнит, через какую папку её нашли, и сумма её файлов поднимается
// по этой цепочке до запрошенных папок
func (s *QuotaService) FolderSizes(ctx context.Context, ownerID int64, folderIDs []int64) (map[int64]int64, error) {
	totals := make(map[int64]int64, len(folderIDs))
	parentOf := make(map[int64]int64)
	direct := make(map[int64]int64)
	visited := make(map[int64]bool)

	frontier := make([]int64, 0, len(folderIDs))
	for _, id := range folderIDs {
		totals[id] = 0
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		sums, err := s.files.SumFileSizesByParent(ctx, nil, ownerID, frontier)
		if err != nil {
			return nil, err
		}
		for _, sum := range sums {
			direct[sum.ParentID] += sum.Total
		}

		edges, err := s.files.ChildFolders(ctx, nil, ownerID, frontier)
		if err != nil {
			return nil, err
		}

		var next []int64
		for _, edge := range edges {
			if _, ok := parentOf[edge.ID]; !ok && !reaches(parentOf, edge.ParentID, edge.ID) {
				parentOf[edge.ID] = edge.ParentID
			}
			if visited[edge.ID] {
				continue
			}
			visited[edge.ID] = true
			next = append(next, edge.ID)
		}
		frontier = next
	}

	for folderID, size := range direct {
		for current, steps := folderID, 0; steps <= len(parentOf); steps++ {
			if _, requested := totals[current]; requested {
				totals[current] += size
			}
			parent, ok := parentOf[current]
			if !ok {
				break
			}
			current = parent
		}
	}

	return totals, nil
}

// reaches : приводит ли цепочка parentOf от from к target
func reaches(parentOf map[int64]int64, from, target int64) bool {
	for current, steps := from, 0; steps <= len(parentOf); steps++ {
		if current == target {
			return true
		}
		parent, ok := parentOf[current]
		if !ok {
			return false
		}
		current = parent
	}
	return false
}

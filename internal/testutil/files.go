// Package testutil : in-memory реализации репозиториев для тестов сервисов и обработчиков
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mycloud/internal/apperror"
	"mycloud/internal/model"

	"github.com/jmoiron/sqlx"
)

// Files : stored_files в памяти. Транзакция одна на репозиторий, rollback восстанавливает снимок
type Files struct {
	mu       sync.Mutex
	nodes    map[int64]model.StoredFile
	nextID   int64
	snapshot map[int64]model.StoredFile

	// FailUpdate : id, на которых изменяющие методы вернут ошибку
	FailUpdate map[int64]bool
	// TreeQueries : число запросов SumFileSizesByParent и ChildFolders
	TreeQueries int
	// Reads : число запросов GetByID и GetByToken
	Reads int
}

func NewFiles() *Files {
	return &Files{
		nodes:      make(map[int64]model.StoredFile),
		FailUpdate: make(map[int64]bool),
	}
}

// Put : добавляет узел как есть, без проверок. Возвращает присвоенный id
func (f *Files) Put(node model.StoredFile) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	node.ID = f.nextID
	if node.UploadedAt.IsZero() {
		node.UploadedAt = time.Now().UTC()
	}
	if node.DiskName == "" {
		node.DiskName = fmt.Sprintf("%02d-disk-%d", node.ID%100, node.ID)
	}
	f.nodes[node.ID] = node
	return node.ID
}

// Count : число строк
func (f *Files) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

func (f *Files) BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshot = make(map[int64]model.StoredFile, len(f.nodes))
	for id, node := range f.nodes {
		f.snapshot[id] = node
	}

	rollback := func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.snapshot != nil {
			f.nodes = f.snapshot
			f.snapshot = nil
		}
		return nil
	}
	commit := func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.snapshot = nil
		return nil
	}
	return nil, rollback, commit, nil
}

func (f *Files) Create(ctx context.Context, exec sqlx.ExtContext, node *model.StoredFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.nodes {
		if existing.DiskName == node.DiskName {
			return errors.New("duplicate disk_name")
		}
	}
	f.nextID++
	node.ID = f.nextID
	node.UploadedAt = time.Now().UTC()
	f.nodes[node.ID] = *node
	return nil
}

func (f *Files) GetByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++

	node, ok := f.nodes[id]
	if !ok {
		return nil, apperror.NotFound("файл не найден")
	}
	return &node, nil
}

func (f *Files) GetByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]model.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	nodes := []model.StoredFile{}
	for _, id := range ids {
		if node, ok := f.nodes[id]; ok {
			nodes = append(nodes, node)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

func (f *Files) GetByToken(ctx context.Context, exec sqlx.ExtContext, token string) (*model.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++

	for _, node := range f.nodes {
		if node.PublicToken != nil && *node.PublicToken == token {
			return &node, nil
		}
	}
	return nil, apperror.NotFound("ссылка не найдена")
}

func (f *Files) List(ctx context.Context, exec sqlx.ExtContext, filter model.ListFilter) ([]model.StoredFile, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []model.StoredFile
	for _, node := range f.nodes {
		if node.OwnerID != filter.OwnerID {
			continue
		}
		switch filter.View {
		case model.ViewTrash:
			if !node.IsDeleted || node.DeletedAt == nil || node.DeletedAt.Before(filter.TrashSince) {
				continue
			}
		case model.ViewRecent:
			if node.IsDeleted {
				continue
			}
		default:
			if node.IsDeleted || !sameParent(node.ParentID, filter.ParentID) {
				continue
			}
		}
		matched = append(matched, node)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.View {
		case model.ViewTrash:
			if !a.DeletedAt.Equal(*b.DeletedAt) {
				return a.DeletedAt.After(*b.DeletedAt)
			}
		case model.ViewRecent:
			if !a.UploadedAt.Equal(b.UploadedAt) {
				return a.UploadedAt.After(b.UploadedAt)
			}
		default:
			if a.IsFolder != b.IsFolder {
				return a.IsFolder
			}
			if !a.UploadedAt.Equal(b.UploadedAt) {
				return a.UploadedAt.After(b.UploadedAt)
			}
		}
		return a.ID > b.ID
	})

	total := len(matched)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// mutate : применяет change к строке id под блокировкой, как один UPDATE
func (f *Files) mutate(id int64, change func(node *model.StoredFile) error) (*model.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailUpdate[id] {
		return nil, errors.New("update failed")
	}
	node, ok := f.nodes[id]
	if !ok {
		return nil, apperror.NotFound("файл не найден")
	}
	if err := change(&node); err != nil {
		return nil, err
	}
	f.nodes[id] = node
	return &node, nil
}

func (f *Files) UpdateDetails(ctx context.Context, exec sqlx.ExtContext, id int64, name, comment *string) (*model.StoredFile, error) {
	return f.mutate(id, func(node *model.StoredFile) error {
		if name != nil {
			node.OriginalName = *name
		}
		if comment != nil {
			node.Comment = *comment
		}
		return nil
	})
}

func (f *Files) SetSize(ctx context.Context, exec sqlx.ExtContext, id, size int64) error {
	_, err := f.mutate(id, func(node *model.StoredFile) error {
		node.Size = size
		return nil
	})
	return err
}

func (f *Files) MoveTo(ctx context.Context, exec sqlx.ExtContext, id int64, parentID *int64) (*model.StoredFile, error) {
	return f.mutate(id, func(node *model.StoredFile) error {
		if node.IsDeleted {
			return apperror.InvalidState("файл в корзине, сначала восстановите его")
		}
		node.ParentID = parentID
		return nil
	})
}

// errAlreadyTrashed : SoftDelete ничего не изменил
var errAlreadyTrashed = errors.New("already trashed")

func (f *Files) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id int64, at time.Time) (*model.StoredFile, error) {
	node, err := f.mutate(id, func(node *model.StoredFile) error {
		if !node.SoftDelete(at) {
			return errAlreadyTrashed
		}
		return nil
	})
	if errors.Is(err, errAlreadyTrashed) {
		return nil, nil
	}
	return node, err
}

func (f *Files) Restore(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.StoredFile, error) {
	return f.mutate(id, func(node *model.StoredFile) error {
		var target *model.StoredFile
		if node.DeletedFromID != nil {
			if folder, ok := f.nodes[*node.DeletedFromID]; ok {
				target = &folder
			}
		}
		if !node.Restore(target) {
			return apperror.InvalidState("файл не находится в корзине")
		}
		return nil
	})
}

func (f *Files) SetPublicToken(ctx context.Context, exec sqlx.ExtContext, id int64, token *string) (*string, error) {
	var previous *string
	_, err := f.mutate(id, func(node *model.StoredFile) error {
		previous = node.PublicToken
		node.PublicToken = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func (f *Files) TouchDownloaded(ctx context.Context, exec sqlx.ExtContext, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if node, ok := f.nodes[id]; ok {
		node.LastDownloadedAt = &at
		f.nodes[id] = node
	}
	return nil
}

// DeleteByIDs : повторяет ON DELETE CASCADE для parent и ON DELETE SET NULL для deleted_from
func (f *Files) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := make(map[int64]bool)
	for _, id := range ids {
		if _, ok := f.nodes[id]; ok {
			removed[id] = true
			delete(f.nodes, id)
		}
	}
	for changed := true; changed; {
		changed = false
		for id, node := range f.nodes {
			if node.ParentID != nil && removed[*node.ParentID] {
				removed[id] = true
				delete(f.nodes, id)
				changed = true
			}
		}
	}
	for id, node := range f.nodes {
		if node.DeletedFromID != nil && removed[*node.DeletedFromID] {
			node.DeletedFromID = nil
			f.nodes[id] = node
		}
	}
	return nil
}

func (f *Files) ListChildren(ctx context.Context, exec sqlx.ExtContext, parentIDs []int64) ([]model.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parents := toSet(parentIDs)
	var children []model.StoredFile
	for _, node := range f.nodes {
		if node.ParentID != nil && parents[*node.ParentID] {
			children = append(children, node)
		}
	}
	return children, nil
}

func (f *Files) SumFileSizesByParent(ctx context.Context, exec sqlx.ExtContext, ownerID int64, parentIDs []int64) ([]model.ParentTotal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TreeQueries++

	parents := toSet(parentIDs)
	sums := make(map[int64]int64)
	for _, node := range f.nodes {
		if node.OwnerID == ownerID && !node.IsFolder && !node.IsDeleted && node.ParentID != nil && parents[*node.ParentID] {
			sums[*node.ParentID] += node.Size
		}
	}
	totals := []model.ParentTotal{}
	for parentID, total := range sums {
		totals = append(totals, model.ParentTotal{ParentID: parentID, Total: total})
	}
	return totals, nil
}

func (f *Files) ChildFolders(ctx context.Context, exec sqlx.ExtContext, ownerID int64, parentIDs []int64) ([]model.FolderEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TreeQueries++

	parents := toSet(parentIDs)
	edges := []model.FolderEdge{}
	for _, node := range f.nodes {
		if node.OwnerID == ownerID && node.IsFolder && !node.IsDeleted && node.ParentID != nil && parents[*node.ParentID] {
			edges = append(edges, model.FolderEdge{ID: node.ID, ParentID: *node.ParentID})
		}
	}
	return edges, nil
}

func (f *Files) UsedBytes(ctx context.Context, exec sqlx.ExtContext, ownerID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var used int64
	for _, node := range f.nodes {
		if node.OwnerID == ownerID && !node.IsFolder && !node.IsDeleted {
			used += node.Size
		}
	}
	return used, nil
}

func (f *Files) ListExpired(ctx context.Context, exec sqlx.ExtContext, ownerID *int64, before time.Time) ([]model.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var expired []model.StoredFile
	for _, node := range f.nodes {
		if ownerID != nil && node.OwnerID != *ownerID {
			continue
		}
		if node.IsDeleted && node.DeletedAt != nil && node.DeletedAt.Before(before) {
			expired = append(expired, node)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].DeletedAt.Before(*expired[j].DeletedAt) })
	return expired, nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

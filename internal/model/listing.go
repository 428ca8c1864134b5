package model

import "time"

// View : режим списка файлов
type View string

const (
	ViewMy     View = "my"
	ViewRecent View = "recent"
	ViewTrash  View = "trash"
)

func ParseView(s string) (View, bool) {
	switch View(s) {
	case "", ViewMy:
		return ViewMy, true
	case ViewRecent:
		return ViewRecent, true
	case ViewTrash:
		return ViewTrash, true
	default:
		return "", false
	}
}

// ListFilter : параметры выборки узлов одного владельца
type ListFilter struct {
	OwnerID  int64
	View     View
	ParentID *int64
	// TrashSince : нижняя граница deleted_at для корзины
	TrashSince time.Time
	Limit      int
	Offset     int
}

// Page : страница списка
type Page struct {
	Items    []StoredFile
	Total    int
	Page     int
	PageSize int
}

// Usage : занятое место и квота владельца
type Usage struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

// FolderEdge : связь папки с её родителем, шаг обхода дерева
type FolderEdge struct {
	ID       int64 `db:"id"`
	ParentID int64 `db:"parent_id"`
}

// ParentTotal : сумма размеров прямых дочерних файлов папки
type ParentTotal struct {
	ParentID int64 `db:"parent_id"`
	Total    int64 `db:"total"`
}

package ports

import (
	"context"
	"io"
	"time"

	"mycloud/internal/model"

	"github.com/jmoiron/sqlx"
)

// StoredFileRepository : SQL слой узлов. exec == nil означает работу через пул
type StoredFileRepository interface {
	BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error)
	Create(ctx context.Context, exec sqlx.ExtContext, node *model.StoredFile) error
	GetByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.StoredFile, error)
	GetByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]model.StoredFile, error)
	GetByToken(ctx context.Context, exec sqlx.ExtContext, token string) (*model.StoredFile, error)
	List(ctx context.Context, exec sqlx.ExtContext, filter model.ListFilter) ([]model.StoredFile, int, error)
	// каждый переход состояния одним UPDATE, возвращается строка после изменения
	UpdateDetails(ctx context.Context, exec sqlx.ExtContext, id int64, name, comment *string) (*model.StoredFile, error)
	SetSize(ctx context.Context, exec sqlx.ExtContext, id, size int64) error
	MoveTo(ctx context.Context, exec sqlx.ExtContext, id int64, parentID *int64) (*model.StoredFile, error)
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, id int64, at time.Time) (*model.StoredFile, error)
	Restore(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.StoredFile, error)
	SetPublicToken(ctx context.Context, exec sqlx.ExtContext, id int64, token *string) (*string, error)
	TouchDownloaded(ctx context.Context, exec sqlx.ExtContext, id int64, at time.Time) error
	DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) error
	ListChildren(ctx context.Context, exec sqlx.ExtContext, parentIDs []int64) ([]model.StoredFile, error)
	SumFileSizesByParent(ctx context.Context, exec sqlx.ExtContext, ownerID int64, parentIDs []int64) ([]model.ParentTotal, error)
	ChildFolders(ctx context.Context, exec sqlx.ExtContext, ownerID int64, parentIDs []int64) ([]model.FolderEdge, error)
	UsedBytes(ctx context.Context, exec sqlx.ExtContext, ownerID int64) (int64, error)
	ListExpired(ctx context.Context, exec sqlx.ExtContext, ownerID *int64, before time.Time) ([]model.StoredFile, error)
}

// BlobStore : байтовое хранилище, реализуется storage.LocalStore и storage.S3Store
type BlobStore interface {
	MkdirAll(ctx context.Context, dir string) error
	WriteAtomic(ctx context.Context, relPath string, src io.Reader, limit int64) (int64, error)
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)
	Stat(ctx context.Context, relPath string) (int64, error)
	Remove(ctx context.Context, relPath string) error
}

// UploadedFile : входящий поток загрузки
type UploadedFile struct {
	Name         string
	DeclaredSize int64
	Content      io.Reader
}

// FileService : операции над хранилищем, которые использует HTTP слой
type FileService interface {
	List(ctx context.Context, actor model.Actor, query model.ListQuery) (*model.Page, error)
	Upload(ctx context.Context, actor model.Actor, file UploadedFile, comment string, parentID, targetUserID *int64) (*model.StoredFile, error)
	CreateFolder(ctx context.Context, actor model.Actor, name string, parentID, targetUserID *int64) (*model.StoredFile, error)
	Update(ctx context.Context, actor model.Actor, id int64, name, comment *string) (*model.StoredFile, error)
	Delete(ctx context.Context, actor model.Actor, id int64) (string, error)
	Restore(ctx context.Context, actor model.Actor, id int64) (*model.StoredFile, error)
	Move(ctx context.Context, actor model.Actor, id int64, parentID *int64) (*model.StoredFile, error)
	Download(ctx context.Context, actor model.Actor, id int64) (*model.Download, error)
	IssuePublicLink(ctx context.Context, actor model.Actor, id int64) (*model.PublicLink, error)
	RevokePublicLink(ctx context.Context, actor model.Actor, id int64) error
	PublicDownload(ctx context.Context, token string) (*model.Download, error)
	BulkTrash(ctx context.Context, actor model.Actor, rawIDs []any) (*model.BulkResult, error)
	BulkMove(ctx context.Context, actor model.Actor, rawIDs []any, parentID int64) (*model.BulkResult, error)
	Archive(ctx context.Context, actor model.Actor, rawIDs []any) (*model.Download, error)
	PurgeExpired(ctx context.Context, actor model.Actor, ownerID *int64) (int, error)
	Usage(ctx context.Context, actor model.Actor) (*model.Usage, error)
}

package service

import (
	"context"
	"log"
	"mime"
	"path"
	"strings"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/ports"
	"mycloud/internal/storage"
	"mycloud/internal/util"

	"github.com/google/uuid"
)

// BlobService : связывает строки stored_files с байтами в хранилище
type BlobService struct {
	files          ports.StoredFileRepository
	users          ports.UserRepository
	store          ports.BlobStore
	maxUploadBytes int64
}

func NewBlobService(files ports.StoredFileRepository, users ports.UserRepository, store ports.BlobStore, maxUploadBytes int64) *BlobService {
	return &BlobService{
		files:          files,
		users:          users,
		store:          store,
		maxUploadBytes: maxUploadBytes,
	}
}

// EnsureOwnerDirectory : при первой загрузке назначает пользователю каталог и создаёт его
func (s *BlobService) EnsureOwnerDirectory(ctx context.Context, owner *model.User) (string, error) {
	relPath := owner.StorageRelPath
	if relPath == "" {
		relPath = owner.DefaultStorageRelPath()
		if err := s.users.SetStorageRelPath(ctx, nil, owner.ID, relPath); err != nil {
			return "", err
		}
		owner.StorageRelPath = relPath
	}

	if err := s.store.MkdirAll(ctx, relPath); err != nil {
		return "", err
	}
	return relPath, nil
}

// CheckDeclaredSize : отказ до чтения потока, если клиент заявил слишком большой файл
func (s *BlobService) CheckDeclaredSize(declaredSize int64) error {
	if declaredSize > s.maxUploadBytes {
		return storage.TooLargeError(s.maxUploadBytes)
	}
	return nil
}

// SaveUploaded : пишет поток в хранилище и создаёт строку узла.
// Строка вставляется в транзакции и фиксируется только после того, как блоб лёг на место,
// поэтому при ошибке не остаётся ни строки, ни временного файла
func (s *BlobService) SaveUploaded(ctx context.Context, owner *model.User, file ports.UploadedFile, comment string, parentID *int64) (*model.StoredFile, error) {
	if err := s.CheckDeclaredSize(file.DeclaredSize); err != nil {
		return nil, err
	}

	relDir, err := s.EnsureOwnerDirectory(ctx, owner)
	if err != nil {
		return nil, err
	}

	node := &model.StoredFile{
		OwnerID:      owner.ID,
		OriginalName: file.Name,
		ParentID:     parentID,
		DiskName:     uuid.NewString(),
		RelDir:       relDir,
		Size:         max(file.DeclaredSize, 0),
		Comment:      comment,
	}

	exec, rollback, commit, err := s.files.BeginTX(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rollback() }()

	if err := s.files.Create(ctx, exec, node); err != nil {
		return nil, err
	}

	written, err := s.store.WriteAtomic(ctx, node.RelPath(), file.Content, s.maxUploadBytes)
	if err != nil {
		log.Printf("[BlobService] загрузка %q прервана после %d байт: %v", file.Name, written, err)
		return nil, err
	}

	size, err := s.store.Stat(ctx, node.RelPath())
	if err != nil {
		s.removeQuietly(ctx, node.RelPath())
		return nil, err
	}
	if size != node.Size {
		node.Size = size
		if err := s.files.SetSize(ctx, exec, node.ID, size); err != nil {
			s.removeQuietly(ctx, node.RelPath())
			return nil, err
		}
	}

	if err := commit(); err != nil {
		s.removeQuietly(ctx, node.RelPath())
		return nil, util.LogError("[BlobService] не удалось зафиксировать загрузку", err)
	}

	log.Printf("[BlobService] файл %s (%d байт) сохранён как %s", node.OriginalName, node.Size, node.RelPath())
	return node, nil
}

// DeleteBlob : удаляет блоб (ошибки только логируются) и строку узла. Повторный вызов ничего не делает
func (s *BlobService) DeleteBlob(ctx context.Context, node *model.StoredFile) error {
	if !node.IsFolder {
		s.removeQuietly(ctx, node.RelPath())
	}
	return s.files.DeleteByIDs(ctx, nil, []int64{node.ID})
}

// Open : поток блоба файла
func (s *BlobService) Open(ctx context.Context, node *model.StoredFile) (*model.Download, error) {
	if node.IsFolder {
		return nil, apperror.InvalidOperation("папку нельзя скачать").WithField("id", "это папка")
	}
	content, err := s.store.Open(ctx, node.RelPath())
	if err != nil {
		return nil, err
	}
	return &model.Download{
		Name:        node.OriginalName,
		Size:        node.Size,
		ContentType: contentTypeOf(node.OriginalName),
		Content:     content,
	}, nil
}

func contentTypeOf(name string) string {
	if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func (s *BlobService) removeQuietly(ctx context.Context, relPath string) {
	if err := s.store.Remove(ctx, relPath); err != nil {
		log.Printf("[BlobService] не удалось удалить блоб %s: %v", relPath, err)
	}
}

// uploadName : имя файла без пути, который могут прислать некоторые клиенты
func uploadName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	return path.Base(name)
}

package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"

	"mycloud/internal/apperror"
	"mycloud/internal/util"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// LocalStore : блобы на файловой системе под корнем хранилища
type LocalStore struct {
	fs afero.Fs
}

// NewLocalStore : хранилище в каталоге root на диске
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, util.LogError("[LocalStore] не удалось создать корень хранилища", err)
	}
	return NewLocalStoreFs(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// NewLocalStoreFs : хранилище поверх произвольной afero.Fs (в тестах MemMapFs)
func NewLocalStoreFs(fsys afero.Fs) *LocalStore {
	return &LocalStore{fs: fsys}
}

func fsPath(relPath string) (string, error) {
	cleaned, err := CleanRelPath(relPath)
	if err != nil {
		return "", err
	}
	return "/" + cleaned, nil
}

func (s *LocalStore) MkdirAll(ctx context.Context, dir string) error {
	name, err := fsPath(dir)
	if err != nil {
		return err
	}
	// MkdirAll идемпотентен, параллельные загрузки могут создавать один каталог
	if err := s.fs.MkdirAll(name, 0o755); err != nil {
		return apperror.IO("не удалось создать каталог хранилища", err)
	}
	return nil
}

func (s *LocalStore) WriteAtomic(ctx context.Context, relPath string, src io.Reader, limit int64) (int64, error) {
	name, err := fsPath(relPath)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return 0, apperror.IO("не удалось создать каталог хранилища", err)
	}

	tmpName := name + "." + uuid.NewString()[:8] + ".tmp"
	tmp, err := s.fs.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, apperror.IO("не удалось создать временный файл", err)
	}

	written, err := CopyLimited(ctx, tmp, src, limit)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = apperror.IO("не удалось закрыть временный файл", closeErr)
	}
	if err != nil {
		if removeErr := s.fs.Remove(tmpName); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			util.LogError("[LocalStore] не удалось удалить временный файл", removeErr)
		}
		return written, err
	}

	if err := s.fs.Rename(tmpName, name); err != nil {
		_ = s.fs.Remove(tmpName)
		return 0, apperror.IO("не удалось переместить файл на место", err)
	}

	return written, nil
}

func (s *LocalStore) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	name, err := fsPath(relPath)
	if err != nil {
		return nil, err
	}
	file, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.NotFound("файл отсутствует на диске")
		}
		return nil, apperror.IO("не удалось открыть файл", err)
	}
	return file, nil
}

func (s *LocalStore) Stat(ctx context.Context, relPath string) (int64, error) {
	name, err := fsPath(relPath)
	if err != nil {
		return 0, err
	}
	info, err := s.fs.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, apperror.NotFound("файл отсутствует на диске")
		}
		return 0, apperror.IO("не удалось получить информацию о файле", err)
	}
	if info.IsDir() {
		return 0, apperror.NotFound("файл отсутствует на диске")
	}
	return info.Size(), nil
}

// Remove : отсутствующий блоб ошибкой не считается
func (s *LocalStore) Remove(ctx context.Context, relPath string) error {
	name, err := fsPath(relPath)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperror.IO("не удалось удалить файл", err)
	}
	return nil
}

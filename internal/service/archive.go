package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/util"

	"github.com/spf13/afero"
)

// archiveFile : временный zip, который удаляется при закрытии
type archiveFile struct {
	afero.File
	fs afero.Fs
}

func (f *archiveFile) Close() error {
	err := f.File.Close()
	if removeErr := f.fs.Remove(f.Name()); removeErr != nil {
		log.Printf("[FileService] не удалось удалить временный архив %s: %v", f.Name(), removeErr)
	}
	return err
}

// Archive : zip из выбранных файлов. Одинаковые имена получают суффикс " (2)", " (3)"
func (s *FileService) Archive(ctx context.Context, actor model.Actor, rawIDs []any) (*model.Download, error) {
	ids, err := ParseIDs(rawIDs)
	if err != nil {
		return nil, err
	}

	found, err := s.files.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.StoredFile, len(found))
	for i := range found {
		node := &found[i]
		if node.IsFolder || node.IsDeleted || !CanAccess(actor, node) {
			continue
		}
		byID[node.ID] = node
	}
	if len(byID) != len(ids) {
		return nil, apperror.Forbidden("нет доступа к части файлов или среди них есть папки")
	}

	tmp, err := afero.TempFile(s.config.TempFs, s.config.TempDir, "archive-*.zip")
	if err != nil {
		return nil, apperror.IO("не удалось создать временный архив", err)
	}
	archive := &archiveFile{File: tmp, fs: s.config.TempFs}

	size, err := s.writeArchive(ctx, archive, ids, byID)
	if err != nil {
		_ = archive.Close()
		return nil, err
	}

	return &model.Download{
		Name:        ArchiveName(s.now()),
		Size:        size,
		ContentType: "application/zip",
		Content:     archive,
	}, nil
}

func (s *FileService) writeArchive(ctx context.Context, archive *archiveFile, ids []int64, byID map[int64]*model.StoredFile) (int64, error) {
	zipWriter := zip.NewWriter(archive)
	used := make(map[string]int, len(ids))

	for _, id := range ids {
		node := byID[id]

		content, err := s.blobs.store.Open(ctx, node.RelPath())
		if err != nil {
			return 0, err
		}

		entry, err := zipWriter.CreateHeader(&zip.FileHeader{
			Name:     uniqueEntryName(used, node.OriginalName),
			Method:   zip.Deflate,
			Modified: node.UploadedAt,
		})
		if err == nil {
			_, err = io.Copy(entry, content)
		}
		_ = content.Close()
		if err != nil {
			return 0, apperror.IO("не удалось записать файл в архив", err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return 0, apperror.IO("не удалось завершить архив", err)
	}

	size, err := archive.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = archive.Seek(0, io.SeekStart)
	}
	if err != nil {
		return 0, util.LogError("[FileService] не удалось перемотать архив", err)
	}
	return size, nil
}

// uniqueEntryName : a.txt, a.txt (2), a.txt (3)
func uniqueEntryName(used map[string]int, name string) string {
	candidate := name
	for n := used[name] + 1; ; n++ {
		if n > 1 {
			candidate = fmt.Sprintf("%s (%d)", name, n)
		}
		if _, taken := used[candidate]; !taken {
			used[name] = n
			used[candidate] = 1
			return candidate
		}
	}
}

// ArchiveName : files-YYYYMMDD-HHMMSS.zip
func ArchiveName(now time.Time) string {
	return "files-" + now.Format("20060102-150405") + ".zip"
}

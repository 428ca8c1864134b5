package model

import (
	"strings"
	"time"

	"mycloud/internal/apperror"
)

// TrashRetention : сколько узел виден в корзине, после этого он считается просроченным
const TrashRetention = 30 * 24 * time.Hour

// ForbiddenNameChars : символы, недопустимые в имени файла или папки
const ForbiddenNameChars = `\/:*?"<>|`

// StoredFile : узел дерева хранилища: файл или папка
type StoredFile struct {
	ID               int64      `db:"id" json:"id"`
	OwnerID          int64      `db:"owner_id" json:"owner_id"`
	OriginalName     string     `db:"original_name" json:"original_name"`
	IsFolder         bool       `db:"is_folder" json:"is_folder"`
	ParentID         *int64     `db:"parent_id" json:"parent"`
	DeletedFromID    *int64     `db:"deleted_from_id" json:"deleted_from"`
	DiskName         string     `db:"disk_name" json:"-"`
	RelDir           string     `db:"rel_dir" json:"-"`
	Size             int64      `db:"size" json:"size"`
	UploadedAt       time.Time  `db:"uploaded_at" json:"uploaded_at"`
	LastDownloadedAt *time.Time `db:"last_downloaded_at" json:"last_downloaded_at"`
	Comment          string     `db:"comment" json:"comment"`
	PublicToken      *string    `db:"public_token" json:"public_token"`
	IsDeleted        bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deleted_at"`
}

// RelPath : путь блоба относительно корня хранилища, <rel_dir>/<первые 2 символа>/<disk_name>
func (f *StoredFile) RelPath() string {
	return f.RelDir + "/" + ShardOf(f.DiskName) + "/" + f.DiskName
}

// ShardOf : подкаталог шардирования по первым двум символам имени блоба
func ShardOf(diskName string) string {
	if len(diskName) < 2 {
		return diskName
	}
	return diskName[:2]
}

func (f *StoredFile) HasPublicLink() bool {
	return f.PublicToken != nil && *f.PublicToken != ""
}

// State : текущее состояние узла в жизненном цикле корзины
func (f *StoredFile) State() NodeState {
	if f.IsDeleted {
		return StateTrashed
	}
	return StateActive
}

// SoftDelete : переносит узел в корзину и запоминает исходную папку.
// Возвращает false, если узел уже в корзине
func (f *StoredFile) SoftDelete(now time.Time) bool {
	if f.IsDeleted {
		return false
	}

	f.DeletedFromID = f.ParentID
	f.ParentID = nil
	f.IsDeleted = true
	deletedAt := now
	f.DeletedAt = &deletedAt

	return true
}

// CanHost : может ли узел f стать родителем для узла владельца ownerID
func (f *StoredFile) CanHost(ownerID int64) bool {
	return f != nil && f.IsFolder && !f.IsDeleted && f.OwnerID == ownerID
}

// Restore : возвращает узел из корзины. target: папка из deleted_from, если она ещё существует.
// Если папка больше не подходит, узел попадает в корень. Возвращает false, если узел не в корзине
func (f *StoredFile) Restore(target *StoredFile) bool {
	if !f.IsDeleted {
		return false
	}

	f.ParentID = nil
	if target != nil && f.DeletedFromID != nil && target.ID == *f.DeletedFromID && target.CanHost(f.OwnerID) {
		parentID := target.ID
		f.ParentID = &parentID
	}

	f.DeletedFromID = nil
	f.IsDeleted = false
	f.DeletedAt = nil

	return true
}

// IsExpired : узел в корзине дольше TrashRetention
func (f *StoredFile) IsExpired(now time.Time) bool {
	return f.IsDeleted && f.DeletedAt != nil && f.DeletedAt.Before(now.Add(-TrashRetention))
}

// ValidateName : проверяет имя узла, возвращает обрезанное имя
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.Validation("некорректное имя").
			WithField("original_name", "имя не может быть пустым")
	}
	if strings.ContainsAny(name, ForbiddenNameChars) {
		return "", apperror.Validation("некорректное имя").
			WithField("original_name", `имя не может содержать символы \ / : * ? " < > |`)
	}
	if len([]rune(name)) > 255 {
		return "", apperror.Validation("некорректное имя").
			WithField("original_name", "имя длиннее 255 символов")
	}
	return name, nil
}

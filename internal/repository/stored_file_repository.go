package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"mycloud/config"
	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const storedFileColumns = `id, owner_id, original_name, is_folder, parent_id, deleted_from_id, disk_name, rel_dir,
	size, uploaded_at, last_downloaded_at, comment, public_token, is_deleted, deleted_at`

type StoredFileRepository struct {
	*config.Database
}

func NewStoredFileRepository(database *config.Database) *StoredFileRepository {
	return &StoredFileRepository{database}
}

// ext : exec == nil означает работу вне транзакции, через пул
func (r *StoredFileRepository) ext(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.DB
	}
	return exec
}

// BeginTX : открывает транзакцию, возвращает exec для репозиториев и функции rollback/commit
func (r *StoredFileRepository) BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, nil, util.LogError("[StoredFileRepo] не удалось открыть транзакцию", err)
	}
	return tx, tx.Rollback, tx.Commit, nil
}

// Create : вставляет узел, заполняет id и uploaded_at
func (r *StoredFileRepository) Create(ctx context.Context, exec sqlx.ExtContext, node *model.StoredFile) error {
	query := `
		INSERT INTO stored_files (owner_id, original_name, is_folder, parent_id, disk_name, rel_dir, size, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, uploaded_at
	`
	err := r.ext(exec).QueryRowxContext(ctx, query,
		node.OwnerID,
		node.OriginalName,
		node.IsFolder,
		node.ParentID,
		node.DiskName,
		node.RelDir,
		node.Size,
		node.Comment,
	).Scan(&node.ID, &node.UploadedAt)
	if err != nil {
		return util.LogError("[StoredFileRepo] ошибка вставки узла в БД", err)
	}
	return nil
}

// GetByID : узел по id в любом состоянии
func (r *StoredFileRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.StoredFile, error) {
	query := `SELECT ` + storedFileColumns + ` FROM stored_files WHERE id = $1`

	var node model.StoredFile
	if err := sqlx.GetContext(ctx, r.ext(exec), &node, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("файл не найден")
		}
		return nil, util.LogError("[StoredFileRepo] не удалось получить узел", err)
	}
	return &node, nil
}

// GetByIDs : найденные узлы из списка, отсутствующие id просто пропускаются
func (r *StoredFileRepository) GetByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]model.StoredFile, error) {
	query := `SELECT ` + storedFileColumns + ` FROM stored_files WHERE id = ANY($1) ORDER BY id`

	nodes := []model.StoredFile{}
	if err := sqlx.SelectContext(ctx, r.ext(exec), &nodes, query, pq.Array(ids)); err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось получить узлы", err)
	}
	return nodes, nil
}

// GetByToken : точный поиск по токену публичной ссылки
func (r *StoredFileRepository) GetByToken(ctx context.Context, exec sqlx.ExtContext, token string) (*model.StoredFile, error) {
	query := `SELECT ` + storedFileColumns + ` FROM stored_files WHERE public_token = $1`

	var node model.StoredFile
	if err := sqlx.GetContext(ctx, r.ext(exec), &node, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("ссылка не найдена")
		}
		return nil, util.LogError("[StoredFileRepo] не удалось найти узел по токену", err)
	}
	return &node, nil
}

// List : страница узлов владельца для режима filter.View и общее количество
func (r *StoredFileRepository) List(ctx context.Context, exec sqlx.ExtContext, filter model.ListFilter) ([]model.StoredFile, int, error) {
	where := []string{"owner_id = $1"}
	args := []any{filter.OwnerID}
	order := "is_folder DESC, uploaded_at DESC, id DESC"

	switch filter.View {
	case model.ViewTrash:
		args = append(args, filter.TrashSince)
		where = append(where, "is_deleted = TRUE", "deleted_at >= $"+strconv.Itoa(len(args)))
		order = "deleted_at DESC, id DESC"
	case model.ViewRecent:
		where = append(where, "is_deleted = FALSE")
		order = "uploaded_at DESC, id DESC"
	default:
		where = append(where, "is_deleted = FALSE")
		if filter.ParentID != nil {
			args = append(args, *filter.ParentID)
			where = append(where, "parent_id = $"+strconv.Itoa(len(args)))
		} else {
			where = append(where, "parent_id IS NULL")
		}
	}

	condition := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM stored_files WHERE ` + condition
	if err := sqlx.GetContext(ctx, r.ext(exec), &total, countQuery, args...); err != nil {
		return nil, 0, util.LogError("[StoredFileRepo] не удалось посчитать узлы", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + storedFileColumns + ` FROM stored_files WHERE ` + condition +
		` ORDER BY ` + order +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	nodes := []model.StoredFile{}
	if err := sqlx.SelectContext(ctx, r.ext(exec), &nodes, query, args...); err != nil {
		return nil, 0, util.LogError("[StoredFileRepo] не удалось получить список узлов", err)
	}

	return nodes, total, nil
}

// UpdateDetails : меняет имя и/или комментарий, nil оставляет поле как есть
func (r *StoredFileRepository) UpdateDetails(ctx context.Context, exec sqlx.ExtContext, id int64, name, comment *string) (*model.StoredFile, error) {
	query := `
		UPDATE stored_files
		SET original_name = COALESCE($2, original_name), comment = COALESCE($3, comment)
		WHERE id = $1
		RETURNING ` + storedFileColumns

	var node model.StoredFile
	if err := sqlx.GetContext(ctx, r.ext(exec), &node, query, id, name, comment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("файл не найден")
		}
		return nil, util.LogError("[StoredFileRepo] не удалось обновить узел", err)
	}
	return &node, nil
}

// SetSize : фактический размер файла после записи блоба
func (r *StoredFileRepository) SetSize(ctx context.Context, exec sqlx.ExtContext, id, size int64) error {
	query := `UPDATE stored_files SET size = $2 WHERE id = $1`
	result, err := r.ext(exec).ExecContext(ctx, query, id, size)
	if err != nil {
		return util.LogError("[StoredFileRepo] не удалось обновить размер", err)
	}
	return expectOneRow(result)
}

// MoveTo : меняет parent активного узла. Узел в корзине даёт InvalidState
func (r *StoredFileRepository) MoveTo(ctx context.Context, exec sqlx.ExtContext, id int64, parentID *int64) (*model.StoredFile, error) {
	query := `
		UPDATE stored_files SET parent_id = $2
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING ` + storedFileColumns

	var node model.StoredFile
	err := sqlx.GetContext(ctx, r.ext(exec), &node, query, id, parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOr(ctx, exec, id, apperror.InvalidState("файл в корзине, сначала восстановите его"))
	}
	if err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось перенести узел", err)
	}
	return &node, nil
}

// SoftDelete : переносит узел в корзину одним UPDATE, исходная папка сохраняется в deleted_from_id.
// nil без ошибки, если узел уже в корзине
func (r *StoredFileRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id int64, at time.Time) (*model.StoredFile, error) {
	query := `
		UPDATE stored_files
		SET deleted_from_id = parent_id, parent_id = NULL, is_deleted = TRUE, deleted_at = $2
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING ` + storedFileColumns

	var node model.StoredFile
	err := sqlx.GetContext(ctx, r.ext(exec), &node, query, id, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOr(ctx, exec, id, nil)
	}
	if err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось перенести узел в корзину", err)
	}
	return &node, nil
}

// Restore : возвращает узел из корзины в deleted_from_id, если это всё ещё живая папка
// того же владельца, иначе в корень. Узел не в корзине даёт InvalidState
func (r *StoredFileRepository) Restore(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.StoredFile, error) {
	query := `
		UPDATE stored_files f
		SET parent_id = (
				SELECT p.id FROM stored_files p
				WHERE p.id = f.deleted_from_id AND p.owner_id = f.owner_id
				  AND p.is_folder = TRUE AND p.is_deleted = FALSE
			),
			deleted_from_id = NULL, is_deleted = FALSE, deleted_at = NULL
		WHERE f.id = $1 AND f.is_deleted = TRUE
		RETURNING ` + storedFileColumns

	var node model.StoredFile
	err := sqlx.GetContext(ctx, r.ext(exec), &node, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOr(ctx, exec, id, apperror.InvalidState("файл не находится в корзине"))
	}
	if err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось восстановить узел", err)
	}
	return &node, nil
}

// SetPublicToken : заменяет public_token, возвращает прежнее значение. token == nil отзывает ссылку
func (r *StoredFileRepository) SetPublicToken(ctx context.Context, exec sqlx.ExtContext, id int64, token *string) (*string, error) {
	query := `
		UPDATE stored_files f SET public_token = $2
		FROM (SELECT id, public_token FROM stored_files WHERE id = $1 FOR UPDATE) old
		WHERE f.id = old.id
		RETURNING old.public_token
	`
	var previous sql.NullString
	err := r.ext(exec).QueryRowxContext(ctx, query, id, token).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("файл не найден")
	}
	if err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось обновить публичную ссылку", err)
	}
	if !previous.Valid {
		return nil, nil
	}
	return &previous.String, nil
}

// missingOr : UPDATE с условием на состояние не затронул строк. NotFound, если узла нет, иначе stateErr
func (r *StoredFileRepository) missingOr(ctx context.Context, exec sqlx.ExtContext, id int64, stateErr error) error {
	if _, err := r.GetByID(ctx, exec, id); err != nil {
		return err
	}
	return stateErr
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return util.LogError("[StoredFileRepo] не удалось проверить, обновлен ли узел", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("файл не найден")
	}
	return nil
}

// TouchDownloaded : отмечает время последнего скачивания
func (r *StoredFileRepository) TouchDownloaded(ctx context.Context, exec sqlx.ExtContext, id int64, at time.Time) error {
	query := `UPDATE stored_files SET last_downloaded_at = $2 WHERE id = $1`
	if _, err := r.ext(exec).ExecContext(ctx, query, id, at); err != nil {
		return util.LogError("[StoredFileRepo] не удалось обновить время скачивания", err)
	}
	return nil
}

// DeleteByIDs : удаляет строки, отсутствующие id не ошибка
func (r *StoredFileRepository) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM stored_files WHERE id = ANY($1)`
	if _, err := r.ext(exec).ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return util.LogError("[StoredFileRepo] не удалось удалить узлы", err)
	}
	return nil
}

// ListChildren : все прямые дочерние узлы папок parentIDs в любом состоянии
func (r *StoredFileRepository) ListChildren(ctx context.Context, exec sqlx.ExtContext, parentIDs []int64) ([]model.StoredFile, error) {
	query := `SELECT ` + storedFileColumns + ` FROM stored_files WHERE parent_id = ANY($1)`

	nodes := []model.StoredFile{}
	if err := sqlx.SelectContext(ctx, r.ext(exec), &nodes, query, pq.Array(parentIDs)); err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось получить дочерние узлы", err)
	}
	return nodes, nil
}

// SumFileSizesByParent : сумма размеров неудалённых файлов, лежащих прямо в папках parentIDs
func (r *StoredFileRepository) SumFileSizesByParent(ctx context.Context, exec sqlx.ExtContext, ownerID int64, parentIDs []int64) ([]model.ParentTotal, error) {
	query := `
		SELECT parent_id, COALESCE(SUM(size), 0) AS total
		FROM stored_files
		WHERE owner_id = $1 AND parent_id = ANY($2) AND is_deleted = FALSE AND is_folder = FALSE
		GROUP BY parent_id
	`
	totals := []model.ParentTotal{}
	if err := sqlx.SelectContext(ctx, r.ext(exec), &totals, query, ownerID, pq.Array(parentIDs)); err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось посчитать размеры папок", err)
	}
	return totals, nil
}

// ChildFolders : неудалённые подпапки, лежащие прямо в папках parentIDs
func (r *StoredFileRepository) ChildFolders(ctx context.Context, exec sqlx.ExtContext, ownerID int64, parentIDs []int64) ([]model.FolderEdge, error) {
	query := `
		SELECT id, parent_id
		FROM stored_files
		WHERE owner_id = $1 AND parent_id = ANY($2) AND is_deleted = FALSE AND is_folder = TRUE
	`
	edges := []model.FolderEdge{}
	if err := sqlx.SelectContext(ctx, r.ext(exec), &edges, query, ownerID, pq.Array(parentIDs)); err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось получить подпапки", err)
	}
	return edges, nil
}

// UsedBytes : сумма размеров неудалённых файлов владельца
func (r *StoredFileRepository) UsedBytes(ctx context.Context, exec sqlx.ExtContext, ownerID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(size), 0)
		FROM stored_files
		WHERE owner_id = $1 AND is_deleted = FALSE AND is_folder = FALSE
	`
	var used int64
	if err := sqlx.GetContext(ctx, r.ext(exec), &used, query, ownerID); err != nil {
		return 0, util.LogError("[StoredFileRepo] не удалось посчитать занятое место", err)
	}
	return used, nil
}

// ListExpired : узлы в корзине с deleted_at раньше before. ownerID == nil означает всех владельцев
func (r *StoredFileRepository) ListExpired(ctx context.Context, exec sqlx.ExtContext, ownerID *int64, before time.Time) ([]model.StoredFile, error) {
	query := `SELECT ` + storedFileColumns + ` FROM stored_files WHERE is_deleted = TRUE AND deleted_at < $1`
	args := []any{before}
	if ownerID != nil {
		query += ` AND owner_id = $2`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY deleted_at`

	nodes := []model.StoredFile{}
	if err := sqlx.SelectContext(ctx, r.ext(exec), &nodes, query, args...); err != nil {
		return nil, util.LogError("[StoredFileRepo] не удалось получить просроченные узлы", err)
	}
	return nodes, nil
}

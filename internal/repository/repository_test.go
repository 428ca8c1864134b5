package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"mycloud/config"
	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nodeColumns = []string{
	"id", "owner_id", "original_name", "is_folder", "parent_id", "deleted_from_id", "disk_name", "rel_dir",
	"size", "uploaded_at", "last_downloaded_at", "comment", "public_token", "is_deleted", "deleted_at",
}

func newMockDatabase(t *testing.T) (*config.Database, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &config.Database{DB: sqlx.NewDb(db, "postgres")}, mock
}

func nodeRow(rows *sqlmock.Rows, id int64, name string, parent any) *sqlmock.Rows {
	return rows.AddRow(id, 1, name, false, parent, nil, "ab12cd", "u/al/alice",
		11, time.Now(), nil, "", nil, false, nil)
}

func TestStoredFileRepository_Create(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	uploadedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO stored_files")).
		WithArgs(int64(1), "hello.txt", false, nil, "ab12cd", "u/al/alice", int64(11), "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uploaded_at"}).AddRow(42, uploadedAt))

	node := &model.StoredFile{OwnerID: 1, OriginalName: "hello.txt", DiskName: "ab12cd", RelDir: "u/al/alice", Size: 11}
	require.NoError(t, repo.Create(context.Background(), nil, node))

	assert.Equal(t, int64(42), node.ID)
	assert.Equal(t, uploadedAt, node.UploadedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_GetByIDNotFound(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta("FROM stored_files WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(nodeColumns))

	_, err := repo.GetByID(context.Background(), nil, 7)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_GetByID(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta("FROM stored_files WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(nodeRow(sqlmock.NewRows(nodeColumns), 3, "a.txt", int64(2)))

	node, err := repo.GetByID(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", node.OriginalName)
	require.NotNil(t, node.ParentID)
	assert.Equal(t, int64(2), *node.ParentID)
	assert.Nil(t, node.PublicToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_ListRoot(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM stored_files WHERE owner_id = $1 AND is_deleted = FALSE AND parent_id IS NULL")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY is_folder DESC, uploaded_at DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs(int64(1), 20, 0).
		WillReturnRows(nodeRow(sqlmock.NewRows(nodeColumns), 5, "hello.txt", nil))

	nodes, total, err := repo.List(context.Background(), nil, model.ListFilter{OwnerID: 1, View: model.ViewMy, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, nodes, 1)
	assert.Equal(t, "hello.txt", nodes[0].OriginalName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_ListTrash(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)
	since := time.Now().Add(-model.TrashRetention)

	mock.ExpectQuery(regexp.QuoteMeta("is_deleted = TRUE AND deleted_at >= $2")).
		WithArgs(int64(1), since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY deleted_at DESC, id DESC LIMIT $3 OFFSET $4")).
		WithArgs(int64(1), since, 20, 20).
		WillReturnRows(sqlmock.NewRows(nodeColumns))

	nodes, total, err := repo.List(context.Background(), nil, model.ListFilter{
		OwnerID: 1, View: model.ViewTrash, TrashSince: since, Limit: 20, Offset: 20,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, nodes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_UpdateDetailsMissing(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)
	name := "x"

	mock.ExpectQuery(regexp.QuoteMeta("SET original_name = COALESCE($2, original_name), comment = COALESCE($3, comment)")).
		WithArgs(int64(9), "x", nil).
		WillReturnRows(sqlmock.NewRows(nodeColumns))

	_, err := repo.UpdateDetails(context.Background(), nil, 9, &name, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_SetSizeMissing(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE stored_files SET size = $2 WHERE id = $1")).
		WithArgs(int64(9), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetSize(context.Background(), nil, 9, 100)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_SoftDelete(t *testing.T) {
	ctx := context.Background()
	softDelete := regexp.QuoteMeta("SET deleted_from_id = parent_id, parent_id = NULL, is_deleted = TRUE, deleted_at = $2")
	guard := regexp.QuoteMeta("WHERE id = $1 AND is_deleted = FALSE")
	byID := regexp.QuoteMeta("FROM stored_files WHERE id = $1")

	t.Run("active", func(t *testing.T) {
		database, mock := newMockDatabase(t)
		repo := repository.NewStoredFileRepository(database)
		deletedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

		mock.ExpectQuery(softDelete + `\s+` + guard).
			WithArgs(int64(5), deletedAt).
			WillReturnRows(sqlmock.NewRows(nodeColumns).AddRow(5, 1, "a.txt", false, nil, int64(2), "ab12cd", "u/al/alice",
				11, time.Now(), nil, "", nil, true, deletedAt))

		node, err := repo.SoftDelete(ctx, nil, 5, deletedAt)
		require.NoError(t, err)
		require.NotNil(t, node)
		assert.True(t, node.IsDeleted)
		assert.Nil(t, node.ParentID)
		require.NotNil(t, node.DeletedFromID)
		assert.Equal(t, int64(2), *node.DeletedFromID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already trashed", func(t *testing.T) {
		database, mock := newMockDatabase(t)
		repo := repository.NewStoredFileRepository(database)

		mock.ExpectQuery(softDelete).WillReturnRows(sqlmock.NewRows(nodeColumns))
		mock.ExpectQuery(byID).WithArgs(int64(5)).
			WillReturnRows(nodeRow(sqlmock.NewRows(nodeColumns), 5, "a.txt", nil))

		node, err := repo.SoftDelete(ctx, nil, 5, time.Now())
		assert.NoError(t, err)
		assert.Nil(t, node)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		database, mock := newMockDatabase(t)
		repo := repository.NewStoredFileRepository(database)

		mock.ExpectQuery(softDelete).WillReturnRows(sqlmock.NewRows(nodeColumns))
		mock.ExpectQuery(byID).WithArgs(int64(5)).WillReturnRows(sqlmock.NewRows(nodeColumns))

		_, err := repo.SoftDelete(ctx, nil, 5, time.Now())
		assert.ErrorIs(t, err, apperror.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStoredFileRepository_MoveToTrashed(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE stored_files SET parent_id = $2")).
		WithArgs(int64(5), int64(8)).
		WillReturnRows(sqlmock.NewRows(nodeColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM stored_files WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(nodeRow(sqlmock.NewRows(nodeColumns), 5, "a.txt", nil))

	parent := int64(8)
	_, err := repo.MoveTo(context.Background(), nil, 5, &parent)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_Restore(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.id = $1 AND f.is_deleted = TRUE")).
		WithArgs(int64(5)).
		WillReturnRows(nodeRow(sqlmock.NewRows(nodeColumns), 5, "a.txt", int64(2)))

	node, err := repo.Restore(context.Background(), nil, 5)
	require.NoError(t, err)
	require.NotNil(t, node.ParentID)
	assert.Equal(t, int64(2), *node.ParentID)
	assert.False(t, node.IsDeleted)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.id = $1 AND f.is_deleted = TRUE")).
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows(nodeColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM stored_files WHERE id = $1")).
		WithArgs(int64(6)).
		WillReturnRows(nodeRow(sqlmock.NewRows(nodeColumns), 6, "b.txt", nil))

	_, err = repo.Restore(context.Background(), nil, 6)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_SetPublicToken(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)
	ctx := context.Background()
	query := regexp.QuoteMeta("RETURNING old.public_token")

	mock.ExpectQuery(query).
		WithArgs(int64(3), "new-token").
		WillReturnRows(sqlmock.NewRows([]string{"public_token"}).AddRow("old-token"))
	mock.ExpectQuery(query).
		WithArgs(int64(3), nil).
		WillReturnRows(sqlmock.NewRows([]string{"public_token"}).AddRow(nil))
	mock.ExpectQuery(query).
		WithArgs(int64(4), nil).
		WillReturnRows(sqlmock.NewRows([]string{"public_token"}))

	token := "new-token"
	previous, err := repo.SetPublicToken(ctx, nil, 3, &token)
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "old-token", *previous)

	previous, err = repo.SetPublicToken(ctx, nil, 3, nil)
	require.NoError(t, err)
	assert.Nil(t, previous)

	_, err = repo.SetPublicToken(ctx, nil, 4, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_DeleteByIDs(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	// пустой список не ходит в БД
	require.NoError(t, repo.DeleteByIDs(context.Background(), nil, nil))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM stored_files WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteByIDs(context.Background(), nil, []int64{1, 2}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_FolderQueries(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT parent_id, COALESCE(SUM(size), 0) AS total")).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"parent_id", "total"}).AddRow(10, 300).AddRow(11, 5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, parent_id")).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_id"}).AddRow(12, 10))

	totals, err := repo.SumFileSizesByParent(ctx, nil, 1, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, []model.ParentTotal{{ParentID: 10, Total: 300}, {ParentID: 11, Total: 5}}, totals)

	edges, err := repo.ChildFolders(ctx, nil, 1, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, []model.FolderEdge{{ID: 12, ParentID: 10}}, edges)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_UsedBytes(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(size), 0)")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1024))

	used, err := repo.UsedBytes(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredFileRepository_TransactionUsesExec(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewStoredFileRepository(database)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE stored_files SET last_downloaded_at = $2 WHERE id = $1")).
		WithArgs(int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	exec, rollback, _, err := repo.BeginTX(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.TouchDownloaded(ctx, exec, 4, time.Now()))
	require.NoError(t, rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByUsername(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "full_name", "email", "password_hash", "is_admin", "is_active", "storage_rel_path", "date_joined",
		}).AddRow(1, "alice", "Alice", "alice@example.com", "hash", false, true, "", time.Now()))

	user, err := repo.FindByUsername(context.Background(), nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice@example.com", user.Email)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.FindByUsername(context.Background(), nil, "bob")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJWTRepository_MarkUsedTwice(t *testing.T) {
	database, mock := newMockDatabase(t)
	repo := repository.NewJWTRepository(database)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET used = TRUE")).
		WithArgs("token-uuid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET used = TRUE")).
		WithArgs("token-uuid").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkRefreshTokenUsedByUUID(context.Background(), "token-uuid"))
	assert.ErrorIs(t, repo.MarkRefreshTokenUsedByUUID(context.Background(), "token-uuid"), apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	database, mock := newMockDatabase(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repository.EnsureSchema(context.Background(), database.DB))
	assert.NoError(t, mock.ExpectationsWereMet())
}

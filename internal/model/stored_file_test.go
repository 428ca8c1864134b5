package model_test

import (
	"strings"
	"testing"
	"time"

	"mycloud/internal/apperror"
	"mycloud/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestRelPath(t *testing.T) {
	user := &model.User{Username: "Alice"}
	file := &model.StoredFile{
		RelDir:   user.DefaultStorageRelPath(),
		DiskName: "3fa85f64-5717-4562-b3fc-2c963f66afa6",
	}

	assert.Equal(t, "u/al/Alice/3f/3fa85f64-5717-4562-b3fc-2c963f66afa6", file.RelPath())
	assert.True(t, strings.HasPrefix(file.RelPath(), user.DefaultStorageRelPath()+"/"))
	assert.Equal(t, file.RelPath(), file.RelPath())
}

func TestDefaultStorageRelPath_ShortAndUnicode(t *testing.T) {
	assert.Equal(t, "u/b/B", (&model.User{Username: "B"}).DefaultStorageRelPath())
	assert.Equal(t, "u/юз/Юзер", (&model.User{Username: "Юзер"}).DefaultStorageRelPath())
}

func TestSoftDelete_Idempotent(t *testing.T) {
	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	node := &model.StoredFile{ID: 5, OwnerID: 1, ParentID: int64Ptr(2)}

	require.True(t, node.SoftDelete(first))
	assert.False(t, node.SoftDelete(first.Add(time.Hour)))

	assert.True(t, node.IsDeleted)
	assert.Nil(t, node.ParentID)
	require.NotNil(t, node.DeletedFromID)
	assert.Equal(t, int64(2), *node.DeletedFromID)
	assert.Equal(t, first, *node.DeletedAt)
	assert.Equal(t, model.StateTrashed, node.State())
}

func TestRestore(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		target     *model.StoredFile
		wantParent *int64
	}{
		{
			name:       "original folder is alive",
			target:     &model.StoredFile{ID: 2, OwnerID: 1, IsFolder: true},
			wantParent: int64Ptr(2),
		},
		{
			name:   "original folder is gone",
			target: nil,
		},
		{
			name:   "original folder is trashed",
			target: &model.StoredFile{ID: 2, OwnerID: 1, IsFolder: true, IsDeleted: true},
		},
		{
			name:   "original node belongs to someone else",
			target: &model.StoredFile{ID: 2, OwnerID: 9, IsFolder: true},
		},
		{
			name:   "original node is not a folder",
			target: &model.StoredFile{ID: 2, OwnerID: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &model.StoredFile{ID: 5, OwnerID: 1, ParentID: int64Ptr(2)}
			node.SoftDelete(now)

			require.True(t, node.Restore(tt.target))

			assert.False(t, node.IsDeleted)
			assert.Nil(t, node.DeletedAt)
			assert.Nil(t, node.DeletedFromID)
			assert.Equal(t, tt.wantParent, node.ParentID)
		})
	}
}

func TestRestore_NotTrashedIsNoop(t *testing.T) {
	node := &model.StoredFile{ID: 5, OwnerID: 1, ParentID: int64Ptr(2)}
	assert.False(t, node.Restore(nil))
	assert.Equal(t, int64(2), *node.ParentID)
}

func TestDeleteTransitions(t *testing.T) {
	assert.Equal(t, model.ActionTrash, model.StateActive.OnDelete())
	assert.Equal(t, model.ActionPurge, model.StateTrashed.OnDelete())
	assert.Equal(t, "trashed", model.ActionTrash.Status())
	assert.Equal(t, "deleted_forever", model.ActionPurge.Status())
}

func TestIsExpired(t *testing.T) {
	now := time.Now()
	fresh := &model.StoredFile{}
	fresh.SoftDelete(now.Add(-29 * 24 * time.Hour))
	old := &model.StoredFile{}
	old.SoftDelete(now.Add(-31 * 24 * time.Hour))

	assert.False(t, fresh.IsExpired(now))
	assert.True(t, old.IsExpired(now))
	assert.False(t, (&model.StoredFile{}).IsExpired(now))
}

func TestValidateName(t *testing.T) {
	name, err := model.ValidateName("  отчёт.pdf ")
	require.NoError(t, err)
	assert.Equal(t, "отчёт.pdf", name)

	for _, bad := range []string{"", "   ", "a/b", `a\b`, "a:b", "a*b", "a?b", `a"b`, "a<b", "a>b", "a|b"} {
		_, err := model.ValidateName(bad)
		assert.ErrorIs(t, err, apperror.ErrValidation, bad)
	}
}

func TestParseView(t *testing.T) {
	v, ok := model.ParseView("")
	assert.True(t, ok)
	assert.Equal(t, model.ViewMy, v)

	_, ok = model.ParseView("shared")
	assert.False(t, ok)
}

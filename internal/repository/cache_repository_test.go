package repository

import (
	"testing"
	"time"

	"mycloud/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedNodeKeepsBlobLocation(t *testing.T) {
	token := "tok"
	node := &model.StoredFile{
		ID:           7,
		OwnerID:      1,
		OriginalName: "report.pdf",
		DiskName:     "ab12cd",
		RelDir:       "u/al/alice",
		Size:         42,
		UploadedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		PublicToken:  &token,
	}

	data, err := encodeNode(node)
	require.NoError(t, err)
	assert.NotEqual(t, revokedMarker, string(data))

	decoded, err := decodeNode(data)
	require.NoError(t, err)
	assert.Equal(t, node.RelPath(), decoded.RelPath())
	assert.Equal(t, *node, *decoded)
}

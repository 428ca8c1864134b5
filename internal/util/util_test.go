package util_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mycloud/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePublicToken(t *testing.T) {
	first, err := util.GeneratePublicToken()
	require.NoError(t, err)
	second, err := util.GeneratePublicToken()
	require.NoError(t, err)

	assert.Len(t, first, 32)
	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, "+")
	assert.NotContains(t, first, "/")
	assert.NotContains(t, first, "=")
}

func TestLogErrorWraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := util.LogError("[Test] ошибка", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[Test] ошибка: connection refused", err.Error())
}

func TestHandleError(t *testing.T) {
	rec := httptest.NewRecorder()
	util.HandleError(rec, "нет доступа", http.StatusForbidden)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body util.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Forbidden", body.Error)
	assert.Equal(t, "нет доступа", body.Message)
	assert.Equal(t, http.StatusForbidden, body.Code)
}

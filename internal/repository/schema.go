package repository

import (
	"context"
	_ "embed"

	"mycloud/internal/util"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema : создаёт таблицы и индексы, если их ещё нет. Повторный запуск ничего не меняет
func EnsureSchema(ctx context.Context, exec sqlx.ExecerContext) error {
	if _, err := exec.ExecContext(ctx, schemaSQL); err != nil {
		return util.LogError("[Schema] не удалось применить схему БД", err)
	}
	return nil
}

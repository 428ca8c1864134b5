package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"mycloud/internal/apperror"
)

// CleanRelPath : нормализует путь и не даёт выйти за корень хранилища
func CleanRelPath(relPath string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(relPath, "\\", "/")), "/")
	if cleaned == "" {
		return "", apperror.Validation("пустой путь блоба")
	}
	return cleaned, nil
}

// CopyLimited : копирует не больше limit байт, при превышении возвращает TooLarge.
// Проверка идёт по факту прочитанного, а не по заявленному размеру
func CopyLimited(ctx context.Context, dst io.Writer, src io.Reader, limit int64) (int64, error) {
	reader := io.LimitReader(&contextReader{ctx: ctx, r: src}, limit+1)

	n, err := io.Copy(dst, reader)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, apperror.IO("загрузка прервана", ctxErr)
		}
		return n, apperror.IO("ошибка записи файла", err)
	}
	if n > limit {
		return n, TooLargeError(limit)
	}

	return n, nil
}

func TooLargeError(limit int64) error {
	return apperror.TooLarge(fmt.Sprintf("файл слишком большой (максимум %s)", HumanBytes(limit)))
}

// HumanBytes : 2147483648 -> "2 ГБ"
func HumanBytes(n int64) string {
	const unit = 1024
	units := []string{"Б", "КБ", "МБ", "ГБ", "ТБ"}
	value := float64(n)
	i := 0
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d %s", int64(value), units[i])
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

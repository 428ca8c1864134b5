package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mycloud/internal/apperror"
)

// ParseIDs : разбирает список id из тела запроса. Принимает числа и строки с числами,
// убирает повторы с сохранением порядка
func ParseIDs(raw []any) ([]int64, error) {
	if len(raw) == 0 {
		return nil, apperror.InvalidArgument("ids: нужен непустой список").WithField("ids", "список пуст")
	}

	ids := make([]int64, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for _, item := range raw {
		id, ok := parseID(item)
		if !ok || id <= 0 {
			return nil, apperror.InvalidArgument("ids: ожидаются целые числа").
				WithField("ids", fmt.Sprintf("некорректный id: %v", item))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids, nil
}

func parseID(item any) (int64, bool) {
	switch v := item.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

// parseOptionalID : "" -> nil, иначе положительное целое
func parseOptionalID(raw, field string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperror.Validation("некорректный параметр "+field).WithField(field, "ожидается целое число")
	}
	return &id, nil
}

package model

import "io"

// ListQuery : параметры списка в том виде, в каком они пришли от клиента
type ListQuery struct {
	View     string
	Parent   string
	User     string
	Page     string
	PageSize string
}

// Download : поток для отдачи клиенту. Content закрывает вызывающий
type Download struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.ReadCloser
}

// PublicLink : выданная публичная ссылка
type PublicLink struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// BulkResult : итог пакетной операции. Failed: id, которые не удалось обработать
type BulkResult struct {
	Count  int     `json:"count"`
	Failed []int64 `json:"failed,omitempty"`
}

// Registration : данные для создания учётной записи
type Registration struct {
	Username string
	FullName string
	Email    string
	Password string
	IsAdmin  bool
}

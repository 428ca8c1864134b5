package requestresponse

import (
	"time"

	"mycloud/internal/model"
)

// FileResponse : узел дерева в ответе API
type FileResponse struct {
	ID               int64   `json:"id" example:"42"`
	OwnerID          int64   `json:"owner" example:"1"`
	OriginalName     string  `json:"original_name" example:"hello.txt"`
	IsFolder         bool    `json:"is_folder" example:"false"`
	Parent           *int64  `json:"parent" example:"7"`
	Size             int64   `json:"size" example:"11"`
	UploadedAt       string  `json:"uploaded_at" example:"2025-08-23T12:34:56Z"`
	LastDownloadedAt *string `json:"last_downloaded_at" example:"2025-08-24T08:00:00Z"`
	Comment          string  `json:"comment" example:"черновик"`
	PublicToken      *string `json:"public_token" example:"mQ3n1yJ2cXb6V0dGk9wZlH4pR8sTu7Ea"`
	HasPublicLink    bool    `json:"has_public_link" example:"true"`
	IsDeleted        bool    `json:"is_deleted" example:"false"`
	DeletedAt        *string `json:"deleted_at"`
	DeletedFrom      *int64  `json:"deleted_from"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

// FileResponseFromModel : конвертирует model.StoredFile в FileResponse
func FileResponseFromModel(node *model.StoredFile) FileResponse {
	return FileResponse{
		ID:               node.ID,
		OwnerID:          node.OwnerID,
		OriginalName:     node.OriginalName,
		IsFolder:         node.IsFolder,
		Parent:           node.ParentID,
		Size:             node.Size,
		UploadedAt:       node.UploadedAt.UTC().Format(time.RFC3339),
		LastDownloadedAt: formatTime(node.LastDownloadedAt),
		Comment:          node.Comment,
		PublicToken:      node.PublicToken,
		HasPublicLink:    node.HasPublicLink(),
		IsDeleted:        node.IsDeleted,
		DeletedAt:        formatTime(node.DeletedAt),
		DeletedFrom:      node.DeletedFromID,
	}
}

// ListFilesResponse : страница списка файлов
type ListFilesResponse struct {
	Count    int            `json:"count" example:"1"`
	Page     int            `json:"page" example:"1"`
	PageSize int            `json:"page_size" example:"20"`
	Results  []FileResponse `json:"results"`
}

func ListFilesResponseFromPage(page *model.Page) ListFilesResponse {
	results := make([]FileResponse, 0, len(page.Items))
	for i := range page.Items {
		results = append(results, FileResponseFromModel(&page.Items[i]))
	}
	return ListFilesResponse{
		Count:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Results:  results,
	}
}

// CreateFolderRequest : тело запроса на создание папки
type CreateFolderRequest struct {
	OriginalName string `json:"original_name" example:"Документы"`
	Parent       *int64 `json:"parent" example:"7"`
	User         *int64 `json:"user" example:"2"`
}

// UpdateFileRequest : переименование и комментарий, отсутствующее поле не меняется
type UpdateFileRequest struct {
	OriginalName *string `json:"original_name" example:"hello_renamed.txt"`
	Comment      *string `json:"comment" example:"финальная версия"`
}

// MoveRequest : parent = null переносит узел в корень
type MoveRequest struct {
	Parent *int64 `json:"parent" example:"7"`
}

// DeleteResponse : status = trashed | deleted_forever
type DeleteResponse struct {
	Status string `json:"status" example:"trashed"`
}

// StatusResponse : подтверждение действия
type StatusResponse struct {
	Status string `json:"status" example:"revoked"`
}

// IDsRequest : список id для пакетных операций и архива
type IDsRequest struct {
	IDs []any `json:"ids" swaggertype:"array,integer" example:"1,2,3"`
}

// BulkMoveRequest : пакетный перенос в папку parent
type BulkMoveRequest struct {
	IDs    []any `json:"ids" swaggertype:"array,integer" example:"1,2,3"`
	Parent any   `json:"parent" swaggertype:"integer" example:"7"`
}

// BulkTrashResponse : сколько узлов попало в корзину
type BulkTrashResponse struct {
	Trashed int     `json:"trashed" example:"2"`
	Failed  []int64 `json:"failed,omitempty"`
}

// BulkMoveResponse : сколько узлов перенесено
type BulkMoveResponse struct {
	Moved  int     `json:"moved" example:"2"`
	Failed []int64 `json:"failed,omitempty"`
}

// PurgeRequest : user задаёт администратор, чтобы очистить корзину одного пользователя
type PurgeRequest struct {
	User *int64 `json:"user" example:"2"`
}

// PurgeResponse : сколько просроченных узлов удалено навсегда
type PurgeResponse struct {
	Purged int `json:"purged" example:"3"`
}

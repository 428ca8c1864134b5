package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/model/requestresponse"
	"mycloud/internal/ports"
	"mycloud/internal/service"
	"mycloud/internal/storage"
	"mycloud/internal/util"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead : запас на заголовки частей и текстовые поля формы
const multipartOverhead = 1 << 20

// uploadMemory : сколько формы держать в памяти, остальное net/http пишет во временные файлы
const uploadMemory = 32 << 20

type FileHandler struct {
	ports.FileService
	maxUploadBytes int64
}

func NewFileHandler(fileService ports.FileService, maxUploadBytes int64) *FileHandler {
	return &FileHandler{fileService, maxUploadBytes}
}

// ListFiles godoc
// @Summary Список файлов
// @Description Страница узлов владельца. view: my (папка parent или корень), recent, trash. Размер папок считается по всему поддереву.
// @Tags Files
// @Produce json
// @Param view query string false "Режим списка" Enums(my, recent, trash)
// @Param parent query int false "id папки для режима my"
// @Param user query int false "id владельца, только для администратора"
// @Param page query int false "Номер страницы" default(1)
// @Param page_size query int false "Размер страницы, больше 100 урезается до 100" default(20)
// @Success 200 {object} requestresponse.ListFilesResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files [get]
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := h.FileService.List(r.Context(), actor, model.ListQuery{
		View:     query.Get("view"),
		Parent:   query.Get("parent"),
		User:     query.Get("user"),
		Page:     query.Get("page"),
		PageSize: query.Get("page_size"),
	})
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.ListFilesResponseFromPage(page))
}

// UploadFile godoc
// @Summary Загрузка файла
// @Description Загружает файл в корень или в папку parent. Файл больше 2 ГБ или сверх квоты отклоняется.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Файл"
// @Param comment formData string false "Комментарий"
// @Param parent formData int false "id папки"
// @Param user formData int false "id владельца, только для администратора"
// @Success 201 {object} requestresponse.FileResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректные данные, слишком большой файл или нет места"
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files [post]
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	if r.ContentLength > h.maxUploadBytes+multipartOverhead {
		sendServiceError(w, storage.TooLargeError(h.maxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			sendServiceError(w, storage.TooLargeError(h.maxUploadBytes))
			return
		}
		sendServiceError(w, apperror.Validation("неверный формат запроса").WithField("file", "ожидается multipart/form-data"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Printf("[FileHandler] не удалось удалить временные файлы формы: %v", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		sendServiceError(w, apperror.Validation("файл не найден в запросе").WithField("file", "файл обязателен"))
		return
	}
	defer file.Close()

	parentID, err := formID(r, "parent")
	if err != nil {
		sendServiceError(w, err)
		return
	}
	userID, err := formID(r, "user")
	if err != nil {
		sendServiceError(w, err)
		return
	}

	node, err := h.FileService.Upload(r.Context(), actor, ports.UploadedFile{
		Name:         header.Filename,
		DeclaredSize: header.Size,
		Content:      file,
	}, r.FormValue("comment"), parentID, userID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, requestresponse.FileResponseFromModel(node))
}

// formID : необязательный целочисленный параметр формы
func formID(r *http.Request, field string) (*int64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperror.Validation("некорректный параметр "+field).WithField(field, "ожидается целое число")
	}
	return &id, nil
}

// CreateFolder godoc
// @Summary Создание папки
// @Tags Files
// @Accept json
// @Produce json
// @Param body body requestresponse.CreateFolderRequest true "Тело запроса"
// @Success 201 {object} requestresponse.FileResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/folders [post]
func (h *FileHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req requestresponse.CreateFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	folder, err := h.FileService.CreateFolder(r.Context(), actor, req.OriginalName, req.Parent, req.User)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, requestresponse.FileResponseFromModel(folder))
}

// UpdateFile godoc
// @Summary Переименование и комментарий
// @Tags Files
// @Accept json
// @Produce json
// @Param id path int true "id узла"
// @Param body body requestresponse.UpdateFileRequest true "Тело запроса"
// @Success 200 {object} requestresponse.FileResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/{id} [patch]
func (h *FileHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req requestresponse.UpdateFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	node, err := h.FileService.Update(r.Context(), actor, id, req.OriginalName, req.Comment)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.FileResponseFromModel(node))
}

// DeleteFile godoc
// @Summary Удаление
// @Description Первый вызов переносит узел в корзину (trashed), повторный удаляет навсегда вместе с поддеревом (deleted_forever).
// @Tags Files
// @Produce json
// @Param id path int true "id узла"
// @Success 200 {object} requestresponse.DeleteResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/{id} [delete]
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	status, err := h.FileService.Delete(r.Context(), actor, id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.DeleteResponse{Status: status})
}

// RestoreFile godoc
// @Summary Восстановление из корзины
// @Description Узел возвращается в исходную папку, если она ещё существует и не в корзине, иначе в корень.
// @Tags Files
// @Produce json
// @Param id path int true "id узла"
// @Success 200 {object} requestresponse.FileResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Узел не в корзине"
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/{id}/restore [post]
func (h *FileHandler) RestoreFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	node, err := h.FileService.Restore(r.Context(), actor, id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.FileResponseFromModel(node))
}

// MoveFile godoc
// @Summary Перенос узла
// @Tags Files
// @Accept json
// @Produce json
// @Param id path int true "id узла"
// @Param body body requestresponse.MoveRequest true "parent = null переносит в корень"
// @Success 200 {object} requestresponse.FileResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректная папка или перенос папки в саму себя"
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/{id}/move [post]
func (h *FileHandler) MoveFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req requestresponse.MoveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	node, err := h.FileService.Move(r.Context(), actor, id, req.Parent)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.FileResponseFromModel(node))
}

// DownloadFile godoc
// @Summary Скачивание файла
// @Tags Files
// @Produce octet-stream
// @Param id path int true "id файла"
// @Success 200 {file} file
// @Failure 400 {object} requestresponse.ErrorResponse "Это папка"
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/{id}/download [get]
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	download, err := h.FileService.Download(r.Context(), actor, id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendDownload(w, download)
}

// IssuePublicLink godoc
// @Summary Выдача публичной ссылки
// @Description Новый токен заменяет прежний. Для папок недоступно.
// @Tags Public links
// @Produce json
// @Param id path int true "id файла"
// @Success 200 {object} model.PublicLink
// @Failure 400 {object} requestresponse.ErrorResponse "Это папка"
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/{id}/public-link [post]
func (h *FileHandler) IssuePublicLink(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	link, err := h.FileService.IssuePublicLink(r.Context(), actor, id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, link)
}

// RevokePublicLink godoc
// @Summary Отзыв публичной ссылки
// @Tags Public links
// @Produce json
// @Param id path int true "id файла"
// @Success 200 {object} requestresponse.StatusResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/{id}/public-link/delete [post]
func (h *FileHandler) RevokePublicLink(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.FileService.RevokePublicLink(r.Context(), actor, id); err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.StatusResponse{Status: "revoked"})
}

// PublicDownload godoc
// @Summary Скачивание по публичной ссылке
// @Description Без авторизации. Отозванная ссылка и файл в корзине дают 404.
// @Tags Public links
// @Produce octet-stream
// @Param token path string true "Токен ссылки"
// @Success 200 {file} file
// @Failure 404 {object} requestresponse.ErrorResponse
// @Failure 429 {object} requestresponse.ErrorResponse
// @Router /d/{token} [get]
func (h *FileHandler) PublicDownload(w http.ResponseWriter, r *http.Request) {
	download, err := h.FileService.PublicDownload(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendDownload(w, download)
}

// BulkTrash godoc
// @Summary Пакетное удаление в корзину
// @Description Уже удалённые узлы не считаются. Ошибка на одном узле не отменяет остальные.
// @Tags Bulk
// @Accept json
// @Produce json
// @Param body body requestresponse.IDsRequest true "Список id"
// @Success 200 {object} requestresponse.BulkTrashResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/bulk/trash [post]
func (h *FileHandler) BulkTrash(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req requestresponse.IDsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	result, err := h.FileService.BulkTrash(r.Context(), actor, req.IDs)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.BulkTrashResponse{Trashed: result.Count, Failed: result.Failed})
}

// BulkMove godoc
// @Summary Пакетный перенос
// @Description Узлы в корзине пропускаются. Папку нельзя перенести в саму себя или в её подпапку.
// @Tags Bulk
// @Accept json
// @Produce json
// @Param body body requestresponse.BulkMoveRequest true "Список id и папка назначения"
// @Success 200 {object} requestresponse.BulkMoveResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/bulk/move [post]
func (h *FileHandler) BulkMove(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req requestresponse.BulkMoveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	parent, err := service.ParseIDs([]any{req.Parent})
	if req.Parent == nil || err != nil {
		sendServiceError(w, apperror.Validation("некорректная папка назначения").WithField("parent", "ожидается id папки"))
		return
	}

	result, err := h.FileService.BulkMove(r.Context(), actor, req.IDs, parent[0])
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.BulkMoveResponse{Moved: result.Count, Failed: result.Failed})
}

// Archive godoc
// @Summary Скачивание файлов архивом
// @Description ZIP из выбранных файлов. Одинаковые имена получают суффикс " (2)", " (3)".
// @Tags Bulk
// @Accept json
// @Produce application/zip
// @Param body body requestresponse.IDsRequest true "Список id файлов"
// @Success 200 {file} file
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse "Блоб одного из файлов не найден"
// @Security ApiKeyAuth
// @Router /api/files/archive [post]
func (h *FileHandler) Archive(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req requestresponse.IDsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	download, err := h.FileService.Archive(r.Context(), actor, req.IDs)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendDownload(w, download)
}

// PurgeTrash godoc
// @Summary Очистка просроченной корзины
// @Description Удаляет навсегда узлы, пролежавшие в корзине дольше 30 дней. Без user администратор чистит всех.
// @Tags Files
// @Accept json
// @Produce json
// @Param body body requestresponse.PurgeRequest false "Владелец"
// @Success 200 {object} requestresponse.PurgeResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/files/trash/purge [post]
func (h *FileHandler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req requestresponse.PurgeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			return
		}
	}

	purged, err := h.FileService.PurgeExpired(r.Context(), actor, req.User)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.PurgeResponse{Purged: purged})
}

// Usage godoc
// @Summary Занятое место
// @Tags Files
// @Produce json
// @Success 200 {object} requestresponse.UsageResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/storage/usage [get]
func (h *FileHandler) Usage(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	usage, err := h.FileService.Usage(r.Context(), actor)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, requestresponse.UsageResponse{UsedBytes: usage.UsedBytes, QuotaBytes: usage.QuotaBytes})
}

// sendDownload : отдаёт поток как вложение и закрывает его
func sendDownload(w http.ResponseWriter, download *model.Download) {
	defer func() {
		if err := download.Content.Close(); err != nil {
			log.Printf("[FileHandler] ошибка закрытия потока %s: %v", download.Name, err)
		}
	}()

	w.Header().Set("Content-Type", download.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(download.Name))
	if download.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(download.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, download.Content); err != nil {
		log.Printf("[FileHandler] отдача %s прервана: %v", download.Name, err)
	}
}

func contentDisposition(name string) string {
	return "attachment; filename*=UTF-8''" + url.PathEscape(name)
}

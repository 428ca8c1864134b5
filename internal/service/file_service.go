package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"mycloud/internal/apperror"
	"mycloud/internal/model"
	"mycloud/internal/ports"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// FileServiceConfig : параметры, которые раньше читались из глобальных настроек
type FileServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	// TempFs и TempDir : где собираются zip-архивы
	TempFs  afero.Fs
	TempDir string
}

// FileService : операции над деревом файлов пользователя
type FileService struct {
	files  ports.StoredFileRepository
	users  ports.UserRepository
	blobs  *BlobService
	quota  *QuotaService
	trash  *TrashService
	links  *LinkService
	config FileServiceConfig
	now    func() time.Time
}

func NewFileService(
	files ports.StoredFileRepository,
	users ports.UserRepository,
	blobs *BlobService,
	quota *QuotaService,
	trash *TrashService,
	links *LinkService,
	cfg FileServiceConfig,
) *FileService {
	if cfg.TempFs == nil {
		cfg.TempFs = afero.NewOsFs()
	}
	return &FileService{
		files:  files,
		users:  users,
		blobs:  blobs,
		quota:  quota,
		trash:  trash,
		links:  links,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List : страница узлов в режиме my, recent или trash
func (s *FileService) List(ctx context.Context, actor model.Actor, query model.ListQuery) (*model.Page, error) {
	view, ok := model.ParseView(query.View)
	if !ok {
		return nil, apperror.Validation("некорректный режим списка").WithField("view", "допустимо: my, recent, trash")
	}

	parentID, err := parseOptionalID(query.Parent, "parent")
	if err != nil {
		return nil, err
	}

	ownerID := actor.UserID
	userID, err := parseOptionalID(query.User, "user")
	if err != nil {
		return nil, err
	}
	if userID != nil && *userID != actor.UserID {
		if !CanActAs(actor, *userID) {
			return nil, apperror.Forbidden("просмотр чужих файлов доступен только администратору")
		}
		ownerID = *userID
	}

	if view == model.ViewMy {
		problem, err := s.checkParent(ctx, parentID, ownerID)
		if err != nil {
			return nil, err
		}
		if problem != "" {
			return nil, apperror.Validation("некорректная папка").WithField("parent", problem)
		}
	}

	page, pageSize, err := s.pagination(query.Page, query.PageSize)
	if err != nil {
		return nil, err
	}

	items, total, err := s.files.List(ctx, nil, model.ListFilter{
		OwnerID:    ownerID,
		View:       view,
		ParentID:   parentID,
		TrashSince: s.now().Add(-model.TrashRetention),
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}

	var folderIDs []int64
	for _, item := range items {
		if item.IsFolder {
			folderIDs = append(folderIDs, item.ID)
		}
	}
	if len(folderIDs) > 0 {
		sizes, err := s.quota.FolderSizes(ctx, ownerID, folderIDs)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if items[i].IsFolder {
				items[i].Size = sizes[items[i].ID]
			}
		}
	}

	return &model.Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *FileService) pagination(rawPage, rawPageSize string) (int, int, error) {
	page := 1
	if rawPage = strings.TrimSpace(rawPage); rawPage != "" {
		parsed, err := strconv.Atoi(rawPage)
		if err != nil || parsed < 1 {
			return 0, 0, apperror.Validation("некорректный номер страницы").WithField("page", "ожидается целое число от 1")
		}
		page = parsed
	}

	pageSize := s.config.DefaultPageSize
	if rawPageSize = strings.TrimSpace(rawPageSize); rawPageSize != "" {
		parsed, err := strconv.Atoi(rawPageSize)
		if err != nil || parsed < 1 {
			return 0, 0, apperror.Validation("некорректный размер страницы").WithField("page_size", "ожидается целое число от 1")
		}
		pageSize = parsed
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}

	return page, pageSize, nil
}

// resolveOwner : владелец новых узлов. Чужой targetUserID разрешён только администратору
func (s *FileService) resolveOwner(ctx context.Context, actor model.Actor, targetUserID *int64) (*model.User, error) {
	ownerID := actor.UserID
	if targetUserID != nil {
		if !CanActAs(actor, *targetUserID) {
			return nil, apperror.Forbidden("загрузка в чужое хранилище доступна только администратору")
		}
		ownerID = *targetUserID
	}

	owner, err := s.users.FindByID(ctx, nil, ownerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) && targetUserID != nil {
			return nil, apperror.Validation("пользователь не найден").WithField("user", "пользователь не найден")
		}
		return nil, err
	}
	return owner, nil
}

// checkParent : родитель должен быть неудалённой папкой того же владельца
func (s *FileService) checkParent(ctx context.Context, parentID *int64, ownerID int64) (string, error) {
	if parentID == nil {
		return "", nil
	}
	parent, err := s.files.GetByID(ctx, nil, *parentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "папка не найдена", nil
		}
		return "", err
	}
	if !parent.CanHost(ownerID) {
		return "родитель должен быть папкой этого владельца и не находиться в корзине", nil
	}
	return "", nil
}

// Upload : сохраняет файл в корень или в папку parentID
func (s *FileService) Upload(ctx context.Context, actor model.Actor, file ports.UploadedFile, comment string, parentID, targetUserID *int64) (*model.StoredFile, error) {
	if err := s.blobs.CheckDeclaredSize(file.DeclaredSize); err != nil {
		return nil, err
	}

	owner, err := s.resolveOwner(ctx, actor, targetUserID)
	if err != nil {
		return nil, err
	}

	fieldErrors := apperror.Validation("некорректные данные загрузки")
	name, nameErr := model.ValidateName(uploadName(file.Name))
	if nameErr != nil {
		fieldErrors.WithField("file", "некорректное имя файла")
	}
	parentProblem, err := s.checkParent(ctx, parentID, owner.ID)
	if err != nil {
		return nil, err
	}
	if parentProblem != "" {
		fieldErrors.WithField("parent", parentProblem)
	}
	if len(fieldErrors.Fields) > 0 {
		return nil, fieldErrors
	}

	if err := s.quota.CheckQuota(ctx, owner.ID, file.DeclaredSize); err != nil {
		return nil, err
	}

	file.Name = name
	return s.blobs.SaveUploaded(ctx, owner, file, comment, parentID)
}

// CreateFolder : создаёт папку. Администратор может создать её в чужом хранилище
func (s *FileService) CreateFolder(ctx context.Context, actor model.Actor, name string, parentID, targetUserID *int64) (*model.StoredFile, error) {
	owner, err := s.resolveOwner(ctx, actor, targetUserID)
	if err != nil {
		return nil, err
	}

	fieldErrors := apperror.Validation("некорректная папка")
	name, nameErr := model.ValidateName(name)
	var appErr *apperror.Error
	if errors.As(nameErr, &appErr) {
		for field, message := range appErr.Fields {
			fieldErrors.WithField(field, message)
		}
	}
	parentProblem, err := s.checkParent(ctx, parentID, owner.ID)
	if err != nil {
		return nil, err
	}
	if parentProblem != "" {
		fieldErrors.WithField("parent", parentProblem)
	}
	if len(fieldErrors.Fields) > 0 {
		return nil, fieldErrors
	}

	folder := &model.StoredFile{
		OwnerID:      owner.ID,
		OriginalName: name,
		IsFolder:     true,
		ParentID:     parentID,
		DiskName:     uuid.NewString(),
		RelDir:       owner.StorageRelPath,
	}
	if err := s.files.Create(ctx, nil, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// accessible : узел, если actor может с ним работать
func (s *FileService) accessible(ctx context.Context, actor model.Actor, id int64) (*model.StoredFile, error) {
	node, err := s.files.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(actor, node) {
		return nil, apperror.Forbidden("нет доступа к файлу")
	}
	return node, nil
}

// Update : переименование и комментарий
func (s *FileService) Update(ctx context.Context, actor model.Actor, id int64, name, comment *string) (*model.StoredFile, error) {
	node, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		validName, err := model.ValidateName(*name)
		if err != nil {
			return nil, err
		}
		name = &validName
	}

	updated, err := s.files.UpdateDetails(ctx, nil, node.ID, name, comment)
	if err != nil {
		return nil, err
	}
	s.links.invalidate(ctx, updated)
	return updated, nil
}

// Delete : первый вызов кладёт узел в корзину, второй удаляет навсегда
func (s *FileService) Delete(ctx context.Context, actor model.Actor, id int64) (string, error) {
	node, err := s.accessible(ctx, actor, id)
	if err != nil {
		return "", err
	}

	action := node.State().OnDelete()
	switch action {
	case model.ActionPurge:
		err = s.trash.Purge(ctx, node)
	default:
		_, err = s.trash.Trash(ctx, node, s.now())
	}
	if err != nil {
		return "", err
	}

	return action.Status(), nil
}

func (s *FileService) Restore(ctx context.Context, actor model.Actor, id int64) (*model.StoredFile, error) {
	node, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.trash.Restore(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// Move : перенос узла в папку parentID или в корень (nil)
func (s *FileService) Move(ctx context.Context, actor model.Actor, id int64, parentID *int64) (*model.StoredFile, error) {
	node, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if node.IsDeleted {
		return nil, apperror.InvalidState("файл в корзине, сначала восстановите его")
	}

	if parentID != nil {
		target, err := s.moveTarget(ctx, *parentID, node.OwnerID)
		if err != nil {
			return nil, err
		}
		if node.IsFolder {
			chain, err := s.ancestry(ctx, target)
			if err != nil {
				return nil, err
			}
			if chain[node.ID] {
				return nil, apperror.InvalidOperation("нельзя переместить папку в саму себя или в её подпапку")
			}
		}
	}

	moved, err := s.files.MoveTo(ctx, nil, node.ID, parentID)
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// moveTarget : папка назначения для переноса узлов владельца ownerID
func (s *FileService) moveTarget(ctx context.Context, parentID, ownerID int64) (*model.StoredFile, error) {
	target, err := s.files.GetByID(ctx, nil, parentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Validation("папка назначения не найдена").WithField("parent", "папка не найдена")
		}
		return nil, err
	}
	if !target.CanHost(ownerID) {
		return nil, apperror.Validation("некорректная папка назначения").
			WithField("parent", "родитель должен быть папкой этого владельца и не находиться в корзине")
	}
	return target, nil
}

// ancestry : id папки и всех её предков, подъём по parent до корня
func (s *FileService) ancestry(ctx context.Context, folder *model.StoredFile) (map[int64]bool, error) {
	chain := map[int64]bool{folder.ID: true}
	current := folder
	for current.ParentID != nil && !chain[*current.ParentID] {
		parent, err := s.files.GetByID(ctx, nil, *current.ParentID)
		if err != nil {
			return nil, err
		}
		chain[parent.ID] = true
		current = parent
	}
	return chain, nil
}

// Download : поток файла для владельца или администратора
func (s *FileService) Download(ctx context.Context, actor model.Actor, id int64) (*model.Download, error) {
	node, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.download(ctx, node)
}

func (s *FileService) download(ctx context.Context, node *model.StoredFile) (*model.Download, error) {
	download, err := s.blobs.Open(ctx, node)
	if err != nil {
		return nil, err
	}
	if err := s.files.TouchDownloaded(ctx, nil, node.ID, s.now()); err != nil {
		_ = download.Content.Close()
		return nil, err
	}
	return download, nil
}

func (s *FileService) IssuePublicLink(ctx context.Context, actor model.Actor, id int64) (*model.PublicLink, error) {
	node, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.links.Issue(ctx, node)
}

func (s *FileService) RevokePublicLink(ctx context.Context, actor model.Actor, id int64) error {
	node, err := s.accessible(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.links.Revoke(ctx, node)
}

// PublicDownload : скачивание по токену без авторизации
func (s *FileService) PublicDownload(ctx context.Context, token string) (*model.Download, error) {
	node, err := s.links.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.download(ctx, node)
}

// PurgeExpired : очистка просроченной корзины. Без ownerID администратор чистит всех,
// обычный пользователь только себя
func (s *FileService) PurgeExpired(ctx context.Context, actor model.Actor, ownerID *int64) (int, error) {
	switch {
	case ownerID != nil && !CanActAs(actor, *ownerID):
		return 0, apperror.Forbidden("очистка чужой корзины доступна только администратору")
	case ownerID == nil && !actor.IsAdmin:
		ownerID = &actor.UserID
	}

	purged, err := s.trash.PurgeExpired(ctx, ownerID, s.now())
	if err != nil {
		return 0, err
	}
	log.Printf("[FileService] очищено просроченных узлов: %d", purged)
	return purged, nil
}

func (s *FileService) Usage(ctx context.Context, actor model.Actor) (*model.Usage, error) {
	return s.quota.Usage(ctx, actor.UserID)
}

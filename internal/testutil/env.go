package testutil

import (
	"os"
	"strings"

	"mycloud/internal/model"
	"mycloud/internal/service"
	"mycloud/internal/storage"

	"github.com/spf13/afero"
)

const (
	AliceID int64 = 1
	BobID   int64 = 2
	AdminID int64 = 3
)

var (
	Alice = model.Actor{UserID: AliceID}
	Bob   = model.Actor{UserID: BobID}
	Admin = model.Actor{UserID: AdminID, IsAdmin: true}
)

// EnvConfig : ограничения хранилища для тестового окружения
type EnvConfig struct {
	MaxUploadBytes int64
	QuotaBytes     int64
}

// Env : FileService поверх репозиториев в памяти и MemMapFs
type Env struct {
	Files   *Files
	Users   *Users
	Cache   *LinkCache
	Fs      afero.Fs
	TempFs  afero.Fs
	Links   *service.LinkService
	Service *service.FileService
}

func NewEnv(cfg EnvConfig) *Env {
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 2 * 1024 * 1024 * 1024
	}
	if cfg.QuotaBytes == 0 {
		cfg.QuotaBytes = 5 * 1024 * 1024 * 1024
	}

	env := &Env{
		Files: NewFiles(),
		Users: NewUsers(
			model.User{ID: AliceID, Username: "alice", Email: "alice@example.com"},
			model.User{ID: BobID, Username: "bob", Email: "bob@example.com"},
			model.User{ID: AdminID, Username: "root", Email: "root@example.com", IsAdmin: true},
		),
		Cache:  NewLinkCache(),
		Fs:     afero.NewMemMapFs(),
		TempFs: afero.NewMemMapFs(),
	}

	store := storage.NewLocalStoreFs(env.Fs)
	blobs := service.NewBlobService(env.Files, env.Users, store, cfg.MaxUploadBytes)
	quota := service.NewQuotaService(env.Files, cfg.QuotaBytes)
	env.Links = service.NewLinkService(env.Files, env.Cache, "http://testserver")
	trash := service.NewTrashService(env.Files, blobs, env.Links)
	env.Service = service.NewFileService(env.Files, env.Users, blobs, quota, trash, env.Links, service.FileServiceConfig{
		DefaultPageSize: 20,
		MaxPageSize:     100,
		TempFs:          env.TempFs,
		TempDir:         "/tmp",
	})
	return env
}

// BlobExists : есть ли блоб узла в хранилище
func (e *Env) BlobExists(node *model.StoredFile) bool {
	exists, _ := afero.Exists(e.Fs, "/"+node.RelPath())
	return exists
}

// Leftovers : временные файлы загрузок и архивов, которые должны были быть удалены
func (e *Env) Leftovers() []string {
	var found []string
	for _, fs := range []afero.Fs{e.Fs, e.TempFs} {
		_ = afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() && (strings.HasSuffix(path, ".tmp") || strings.HasSuffix(path, ".zip")) {
				found = append(found, path)
			}
			return nil
		})
	}
	return found
}

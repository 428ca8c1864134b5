package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mycloud/config"
	_ "mycloud/docs"
	"mycloud/internal/handler"
	"mycloud/internal/middleware"
	"mycloud/internal/ports"
	"mycloud/internal/repository"
	"mycloud/internal/security"
	"mycloud/internal/service"
	"mycloud/internal/storage"

	_ "github.com/lib/pq"
)

// @title mycloud
// @version 1.0
// @description REST API личного облачного хранилища: файлы, папки, корзина и публичные ссылки

// @host localhost:8080

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	db, err := config.SetupDatabase(cfg.DatabaseConfig.DSN)
	if err != nil {
		log.Fatalf("Не удалось подключиться к БД: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка при закрытии БД: %v", err)
		}
	}()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Не удалось подготовить схему БД: %v", err)
	}

	var linkCache ports.CacheRepository
	if cfg.RedisConfig.Addr != "" {
		redisClient, err := config.SetupRedis(&cfg.RedisConfig)
		if err != nil {
			log.Fatalf("Ошибка подключения к Redis: %v", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("Ошибка при закрытии Redis: %v", err)
			}
		}()
		linkCache = repository.NewCacheRepository(redisClient, time.Duration(cfg.TTL.PublicLinkCache)*time.Second)
	} else {
		log.Println("Redis не настроен, публичные ссылки читаются из БД")
	}

	store, err := setupBlobStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Ошибка инициализации хранилища: %v", err)
	}

	srv, router := config.SetupServer(cfg.Server.Addr)

	userRepo := repository.NewUserRepository(db)
	jwtRepo := repository.NewJWTRepository(db)
	fileRepo := repository.NewStoredFileRepository(db)

	jwtService := security.NewJWTService(&cfg.JWT)
	userService := service.NewUserService(userRepo)
	authService := service.NewAuthenticationService(jwtRepo, jwtService, userRepo)

	blobService := service.NewBlobService(fileRepo, userRepo, store, cfg.Storage.MaxUploadBytes)
	quotaService := service.NewQuotaService(fileRepo, cfg.Storage.QuotaBytes)
	linkService := service.NewLinkService(fileRepo, linkCache, cfg.Server.PublicBaseURL)
	trashService := service.NewTrashService(fileRepo, blobService, linkService)
	fileService := service.NewFileService(fileRepo, userRepo, blobService, quotaService, trashService, linkService, service.FileServiceConfig{
		DefaultPageSize: cfg.Storage.DefaultPageSize,
		MaxPageSize:     cfg.Storage.MaxPageSize,
		TempDir:         cfg.Storage.TempDir,
	})

	if err := userService.EnsureInitialAdmin(ctx, cfg.Admin); err != nil {
		log.Fatalf("Не удалось создать администратора: %v", err)
	}

	handler.Router{
		Files:          handler.NewFileHandler(fileService, cfg.Storage.MaxUploadBytes),
		Auth:           handler.NewAuthenticationHandler(authService, userService),
		Users:          handler.NewUserHandler(userService),
		Authenticate:   security.JWTMiddleware([]byte(cfg.JWT.SecretKey), jwtRepo, jwtService),
		PublicLimiter:  middleware.NewRateLimiter(cfg.RateLimit),
		RequestTimeout: cfg.RequestTimeout(),
		TrustProxy:     cfg.RateLimit.TrustProxy,
	}.Mount(router)

	runServer(ctx, srv)
}

func setupBlobStore(ctx context.Context, cfg *config.AppConfig) (ports.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		log.Printf("Блобы хранятся в S3, бакет %s", cfg.S3Config.Bucket)
		return storage.NewS3Store(ctx, &cfg.S3Config, cfg.Storage.TempDir)
	default:
		log.Printf("Блобы хранятся локально в %s", cfg.Storage.Root)
		return storage.NewLocalStore(cfg.Storage.Root)
	}
}

func runServer(ctx context.Context, server *http.Server) {
	serverErrors := make(chan error, 1)
	go func() {
		log.Println("сервер запущен на " + server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Fatalf("ошибка работы сервера: %v", err)
		}
	case sig := <-signalChannel:
		log.Printf("получен сигнал %v остановки работы сервера ", sig)
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		log.Printf("ошибка при остановке сервера: %v", err)
	} else {
		log.Println("Сервер успешно остановлен")
	}
}

package handler

import (
	"net/http"
	"time"

	"mycloud/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router : всё, что нужно для сборки маршрутов
type Router struct {
	Files *FileHandler
	Auth  *AuthenticationHandler
	Users *UserHandler
	// Authenticate : security.JWTMiddleware
	Authenticate   func(http.Handler) http.Handler
	PublicLimiter  *middleware.RateLimiter
	RequestTimeout time.Duration
	// TrustProxy : подключает chi RealIP, иначе адресом клиента считается RemoteAddr
	TrustProxy bool
}

// Mount : регистрирует маршруты API. Загрузки, скачивания и архивы работают без таймаута запроса
func (rt Router) Mount(r chi.Router) {
	r.Use(chimiddleware.RequestID)
	if rt.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(chimiddleware.Timeout(rt.RequestTimeout))
			r.Post("/", rt.Auth.Login)
			r.Post("/login", rt.Auth.Login)
			r.Post("/register", rt.Users.RegisterUser)
			r.Post("/refresh", rt.Auth.RefreshToken)

			r.Group(func(r chi.Router) {
				r.Use(rt.Authenticate)
				r.Post("/logout", rt.Auth.Logout)
				r.Get("/me", rt.Auth.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.Authenticate)
			r.Post("/files", rt.Files.UploadFile)
			r.Get("/files/{id}/download", rt.Files.DownloadFile)
			r.Post("/files/archive", rt.Files.Archive)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.Authenticate)
			r.Use(chimiddleware.Timeout(rt.RequestTimeout))

			r.Get("/files", rt.Files.ListFiles)
			r.Post("/folders", rt.Files.CreateFolder)
			r.Get("/storage/usage", rt.Files.Usage)

			r.Post("/files/bulk/trash", rt.Files.BulkTrash)
			r.Post("/files/bulk/move", rt.Files.BulkMove)
			r.Post("/files/trash/purge", rt.Files.PurgeTrash)

			r.Patch("/files/{id}", rt.Files.UpdateFile)
			r.Delete("/files/{id}", rt.Files.DeleteFile)
			r.Post("/files/{id}/delete", rt.Files.DeleteFile)
			r.Post("/files/{id}/restore", rt.Files.RestoreFile)
			r.Post("/files/{id}/move", rt.Files.MoveFile)
			r.Post("/files/{id}/public-link", rt.Files.IssuePublicLink)
			r.Delete("/files/{id}/public-link", rt.Files.RevokePublicLink)
			r.Post("/files/{id}/public-link/delete", rt.Files.RevokePublicLink)
		})
	})

	r.With(rt.PublicLimiter.Middleware).Get("/d/{token}", rt.Files.PublicDownload)
}

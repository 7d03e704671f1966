// Package api is the HTTP JSON interface of the loan tracker.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"pretgo/internal/config"
	"pretgo/internal/database"
	"pretgo/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Store is the part of the database the handlers use directly.
type Store interface {
	PingContext(ctx context.Context) error
	WriteArchive(ctx context.Context, w io.Writer, layout database.ArchiveLayout) (*database.ArchiveSummary, error)
	RestoreArchive(ctx context.Context, r io.ReaderAt, size int64, layout database.ArchiveLayout) (*database.ArchiveSummary, error)
}

// Services groups what the handlers delegate to.
type Services struct {
	Loans     *service.LoanService
	People    *service.PersonService
	Inventory *service.InventoryService
	Settings  *service.SettingsService
	Alerts    *service.AlertService
	Labels    *service.LabelService
}

// Server routes HTTP requests to the services.
type Server struct {
	cfg      config.APIConfig
	svc      Services
	store    Store
	auth     *AdminAuth
	limiter  *rateLimiter
	layout   database.ArchiveLayout
	imageDir string
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewServer(cfg config.APIConfig, svc Services, store Store, auth *AdminAuth, layout database.ArchiveLayout, imageDir string, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		svc:      svc,
		store:    store,
		auth:     auth,
		limiter:  newRateLimiter(cfg.RateLimit),
		layout:   layout,
		imageDir: imageDir,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Server) maxUpload() int64 {
	mb := s.cfg.MaxUploadMB
	if mb <= 0 {
		mb = 100
	}
	return mb << 20
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)

	if s.imageDir != "" {
		r.Handle("/uploads/materiel/*", http.StripPrefix("/uploads/materiel/", http.FileServer(http.Dir(s.imageDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/scan", s.handleScan)

		r.Get("/loans", s.handleListLoans)
		r.Post("/loans", s.handleCreateLoan)
		r.Post("/loans/return", s.handleReturnMany)
		r.Get("/loans/{id}", s.handleGetLoan)
		r.Post("/loans/{id}/return", s.handleReturnLoan)

		r.Get("/people", s.handleListPeople)
		r.Get("/person-categories", s.handleListPersonCategories)
		r.Get("/items", s.handleListItems)
		r.Get("/item-categories", s.handleListItemCategories)
		r.Get("/locations", s.handleListLocations)

		r.Get("/labels/zpl", s.handlePreviewLabels)
		r.Post("/labels/print", s.handlePrintLabels)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.auth.handleLogin)
			r.Post("/logout", s.auth.handleLogout)
			r.Post("/recover", s.auth.handleRecover)
			r.Get("/status", s.auth.handleStatus)

			r.Group(func(r chi.Router) {
				r.Use(s.auth.Require)
				r.Post("/setup", s.auth.handleSetup)
				r.Get("/backup", s.handleBackup)
				r.Post("/restore", s.handleRestore)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require)

			r.Put("/loans/{id}", s.handleUpdateLoan)
			r.Delete("/loans/{id}", s.handleDeleteLoan)

			r.Post("/people", s.handleCreatePerson)
			r.Post("/people/import", s.handleImportPeople)
			r.Get("/people/{id}", s.handleGetPerson)
			r.Put("/people/{id}", s.handleUpdatePerson)
			r.Delete("/people/{id}", s.handleDeletePerson)
			r.Get("/people/{id}/history", s.handlePersonHistory)

			r.Post("/person-categories", s.handleCreatePersonCategory)
			r.Put("/person-categories/{id}", s.handleUpdatePersonCategory)
			r.Delete("/person-categories/{id}", s.handleDeletePersonCategory)

			r.Post("/items", s.handleCreateItem)
			r.Post("/items/import", s.handleImportItems)
			r.Get("/items/next-number", s.handleNextNumber)
			r.Get("/items/{id}", s.handleGetItem)
			r.Put("/items/{id}", s.handleUpdateItem)
			r.Delete("/items/{id}", s.handleDeleteItem)
			r.Get("/items/{id}/history", s.handleItemHistory)

			r.Post("/item-categories", s.handleCreateItemCategory)
			r.Put("/item-categories/{id}", s.handleUpdateItemCategory)
			r.Delete("/item-categories/{id}", s.handleDeleteItemCategory)

			r.Post("/locations", s.handleCreateLocation)
			r.Put("/locations/{id}", s.handleUpdateLocation)
			r.Delete("/locations/{id}", s.handleDeleteLocation)

			r.Get("/images", s.handleListImages)
			r.Post("/images", s.handleUploadImage)
			r.Delete("/images/{name}", s.handleDeleteImage)

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handleUpdateSettings)
			r.Post("/settings/password", s.auth.handleChangePassword)

			r.Get("/export/loans.xlsx", s.handleExportWorkbook)
			r.Get("/export/{kind}.csv", s.handleExportCSV)
			r.Get("/templates/{kind}.csv", s.handleTemplate)
		})
	})

	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.PingContext(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

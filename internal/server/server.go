// Package server is the composition root: it opens the database, builds
// services and handlers, and mounts them on a chi router.
//
// Middleware order:
//  1. RequestID, RealIP
//  2. Logger, Metrics (see every response, including recovered panics)
//  3. Recoverer
//  4. CORS
//  5. auth.Identify (attaches the actor when a valid token is present)
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/auth"
	"github.com/sakif/formbuilder/internal/handler"
	"github.com/sakif/formbuilder/internal/markdown"
	"github.com/sakif/formbuilder/internal/metrics"
	"github.com/sakif/formbuilder/internal/middleware"
	sqliteRepo "github.com/sakif/formbuilder/internal/repository/sqlite"
	"github.com/sakif/formbuilder/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port   int
	DBPath string

	JWTSecret string
	TokenTTL  time.Duration
	// SecureCookies marks auth cookies Secure; enable behind HTTPS.
	SecureCookies bool

	CORSOrigins []string
	// StaticDir optionally holds the built SPA. Unknown non-API paths
	// fall back to its index.html.
	StaticDir string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server owns the router and the database connection.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *metrics.Metrics
}

// New opens the database and wires every layer.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}
	s.setupRoutes(tokens)

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

func (s *Server) setupRoutes(tokens *auth.TokenService) {
	// === Services ===
	// s.db implements every repository interface.
	var github service.GitHubExchanger
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	} else {
		s.logger.Info("GitHub sign-in disabled: GITHUB_CLIENT_ID or GITHUB_CLIENT_SECRET not set")
	}

	notifier := service.NewNotificationService(s.db, s.metrics, s.logger)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), github, s.logger)
	userService := service.NewUserService(s.db, s.logger)
	templateService := service.NewTemplateService(s.db, s.db, s.db, s.db, notifier, s.metrics, s.logger)
	formService := service.NewFormService(s.db, s.db, s.db, notifier, s.metrics, s.logger)
	commentService := service.NewCommentService(s.db, s.db, s.db, s.logger)
	reportService := service.NewReportService(s.db, s.db, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, tokens.TTL(), s.config.SecureCookies, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	templateHandler := handler.NewTemplateHandler(templateService, markdown.New(), s.logger)
	formHandler := handler.NewFormHandler(formService, s.logger)
	commentHandler := handler.NewCommentHandler(commentService, s.logger)
	reportHandler := handler.NewReportHandler(reportService, s.logger)
	notificationHandler := handler.NewNotificationHandler(notifier, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(auth.Identify(tokens, authService, handler.WriteError))

	// === Operational Routes ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RecordDBPoolStats(s.db.Stats())
		s.metrics.Handler().ServeHTTP(w, r)
	})

	requireActor := auth.RequireActor(handler.WriteError)

	// === API Routes ===
	// Anonymous callers reach the read routes; services decide what they
	// may see. Routes that only make sense for a signed-in user sit behind
	// requireActor.
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		})

		r.With(requireActor).Get("/me", authHandler.HandleMe)
		r.With(requireActor).Patch("/me/preferences", authHandler.HandleUpdatePreferences)

		r.Route("/users", func(r chi.Router) {
			r.Use(auth.RequireAdmin(handler.WriteError))
			r.Get("/", userHandler.HandleList)
			r.Patch("/{id}/status", userHandler.HandleSetStatus)
			r.Patch("/{id}/admin", userHandler.HandleSetAdmin)
			r.Delete("/{id}", userHandler.HandleDelete)
		})

		r.Get("/tags", templateHandler.HandleTags)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.HandleList)
			r.With(requireActor).Post("/", templateHandler.HandleCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", templateHandler.HandleGet)
				r.Put("/", templateHandler.HandleUpdate)
				r.Delete("/", templateHandler.HandleDelete)

				r.Post("/questions", templateHandler.HandleAddQuestion)
				r.Put("/questions/order", templateHandler.HandleReorder)
				r.Patch("/questions/{questionID}", templateHandler.HandleUpdateQuestion)
				r.Delete("/questions/{questionID}", templateHandler.HandleDeleteQuestion)

				r.Get("/forms", formHandler.HandleListForTemplate)
				r.Post("/forms", formHandler.HandleSubmit)

				r.Get("/aggregate", reportHandler.HandleAggregate)
				r.Get("/export.csv", reportHandler.HandleExportCSV)

				r.Get("/comments", commentHandler.HandleList)
				r.Post("/comments", commentHandler.HandleCreate)

				r.Post("/like", commentHandler.HandleLike)
				r.Delete("/like", commentHandler.HandleUnlike)
			})
		})

		r.Delete("/comments/{id}", commentHandler.HandleDelete)

		r.Route("/forms", func(r chi.Router) {
			r.Use(requireActor)
			r.Get("/mine", formHandler.HandleListMine)
			r.Get("/{id}", formHandler.HandleGet)
			r.Put("/{id}", formHandler.HandleUpdate)
			r.Delete("/{id}", formHandler.HandleDelete)
		})

		r.With(requireActor).Get("/notifications", notificationHandler.HandleList)
	})

	// === Static SPA ===
	if s.config.StaticDir != "" {
		s.router.NotFound(spaHandler(s.config.StaticDir))
	}
}

// spaHandler serves files from dir and falls back to index.html so the
// SPA's client-side routes survive a reload. /api paths keep their 404.
func spaHandler(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			handler.WriteError(w, r, errRouteNotFound(r))
			return
		}
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}

// Start runs the HTTP server until SIGINT or SIGTERM, then drains
// in-flight requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func errRouteNotFound(r *http.Request) error {
	return apperror.NotFound("route", r.URL.Path)
}

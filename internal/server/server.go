// Package server is the composition root: it opens the store and the
// optional backends, builds services and handlers, and mounts the routes.
//
// OPTIONAL BACKENDS:
//   - Redis (REDIS_ADDR): movie cache. Unset or unreachable → no cache.
//   - RabbitMQ (AMQP_URL): reset notices. Unset → notices are logged.
//   - Recommender (RECOMMENDER_URL): unset → /api/recommendations answers 503.
//
// None of them is needed to serve the catalog.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/cache"
	"github.com/sakif/moviecatalog/internal/config"
	"github.com/sakif/moviecatalog/internal/handler"
	"github.com/sakif/moviecatalog/internal/middleware"
	"github.com/sakif/moviecatalog/internal/notify"
	"github.com/sakif/moviecatalog/internal/recommend"
	"github.com/sakif/moviecatalog/internal/repository/sqldb"
	"github.com/sakif/moviecatalog/internal/serialize"
	"github.com/sakif/moviecatalog/internal/service"
)

// purgeInterval is how often stale reset tokens are swept.
const purgeInterval = time.Hour

// Server owns the database and cache connections; Start closes them on
// shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqldb.DB
	redis  *redis.Client // nil when caching is off

	resets *service.PasswordResetService
}

// New opens the store, connects the optional backends and mounts the routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqldb.Open(ctx, sqldb.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DBDSN,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if cfg.RedisAddr != "" {
		s.redis = cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	}

	if err := s.setupRoutes(); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) movieCache() cache.MovieCache {
	if s.redis == nil {
		return cache.Nop{}
	}
	return cache.NewRedisMovieCache(s.redis, s.config.CacheTTL)
}

func (s *Server) notifier() notify.ResetNotifier {
	if s.config.AMQPURL == "" {
		s.logger.Warn("AMQP_URL not set, reset notices are only logged")
		return notify.NewLogNotifier(s.logger)
	}
	return notify.NewAMQPPublisher(s.config.AMQPURL, s.logger)
}

func (s *Server) recommender() service.Recommender {
	if s.config.RecommenderURL == "" {
		s.logger.Warn("RECOMMENDER_URL not set, recommendations are disabled")
		return nil
	}
	return recommend.NewClient(s.config.RecommenderURL, nil)
}

// setupRoutes wires the dependency chain and mounts every route.
//
// ROUTES:
//
//	GET    /healthz
//	POST   /api/auth/login                  POST /api/auth/logout
//	GET    /api/users                       (admin)
//	POST   /api/users                       GET  /api/users/{id}[?include=]
//	GET    /api/users/{id}/lists
//	GET    /api/me   PUT /api/me   DELETE /api/me   GET /api/me/ratings
//	GET    /api/movies[?genre=&limit=&offset=]
//	GET    /api/movies/{id}   /stats   /ratings
//	PUT    /api/movies/{id}                 (admin)
//	DELETE /api/movies/{id}                 (admin)
//	GET|PUT|DELETE /api/movies/{id}/rating
//	POST   /api/lists   GET|PUT|DELETE /api/lists/{id}
//	POST   /api/lists/{id}/items            DELETE /api/lists/{id}/items/{movieId}
//	POST   /api/password-reset   /validate   /confirm
//	GET    /api/recommendations   /api/recommendations/more
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWTSecret, auth.DefaultSessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)
	ser := serialize.New(serialize.Config{MaxDepth: s.config.SerializeMaxDepth, ElideCycles: true})

	// === Services ===
	userService := service.NewUserService(s.db, passwords, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	catalogService := service.NewCatalogService(s.db, s.db, s.movieCache(), s.recommender(), s.logger)
	ratingService := service.NewRatingService(s.db, s.logger)
	listService := service.NewListService(s.db, s.logger)
	s.resets = service.NewPasswordResetService(s.db, s.db, passwords, s.notifier(), s.config.ResetTokenTTL, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, ser, auth.DefaultSessionTTL, s.logger)
	userHandler := handler.NewUserHandler(userService, ratingService, listService, ser, s.logger)
	movieHandler := handler.NewMovieHandler(catalogService, ratingService, ser, s.logger)
	listHandler := handler.NewListHandler(listService, ser, s.logger)
	resetHandler := handler.NewResetHandler(s.resets, s.logger)
	recommendHandler := handler.NewRecommendHandler(catalogService, ser, s.logger)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Public, with the identity attached when a token is present.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))

			r.Post("/auth/login", authHandler.HandleLogin)
			r.Post("/auth/logout", authHandler.HandleLogout)

			r.Post("/users", userHandler.HandleRegister)
			r.Get("/users/{id}", userHandler.HandleGet)
			r.Get("/users/{id}/lists", userHandler.HandleUserLists)

			r.Get("/movies", movieHandler.HandleList)
			r.Get("/movies/{id}", movieHandler.HandleGet)
			r.Get("/movies/{id}/stats", movieHandler.HandleStats)
			r.Get("/movies/{id}/ratings", movieHandler.HandleRatings)

			r.Get("/lists/{id}", listHandler.HandleGet)

			r.Post("/password-reset", resetHandler.HandleRequest)
			r.Post("/password-reset/validate", resetHandler.HandleValidate)
			r.Post("/password-reset/confirm", resetHandler.HandleConfirm)
		})

		// Signed-in only.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/users", userHandler.HandleList)
			r.Get("/me", userHandler.HandleMe)
			r.Put("/me", userHandler.HandleUpdateMe)
			r.Delete("/me", userHandler.HandleDeleteMe)
			r.Get("/me/ratings", userHandler.HandleMyRatings)

			r.Put("/movies/{id}", movieHandler.HandleImport)
			r.Delete("/movies/{id}", movieHandler.HandleDelete)
			r.Get("/movies/{id}/rating", movieHandler.HandleMyRating)
			r.Put("/movies/{id}/rating", movieHandler.HandleRate)
			r.Delete("/movies/{id}/rating", movieHandler.HandleUnrate)

			r.Post("/lists", listHandler.HandleCreate)
			r.Put("/lists/{id}", listHandler.HandleUpdate)
			r.Delete("/lists/{id}", listHandler.HandleDelete)
			r.Post("/lists/{id}/items", listHandler.HandleAddItem)
			r.Delete("/lists/{id}/items/{movieId}", listHandler.HandleRemoveItem)

			r.Get("/recommendations", recommendHandler.HandleGet)
			r.Get("/recommendations/more", recommendHandler.HandleMore)
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":%q,"database":%q}`, status, s.db.Dialect())
}

// purgeLoop sweeps reset tokens that expired more than a day ago.
func (s *Server) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.resets.PurgeStale(ctx, 24*time.Hour); err != nil {
				s.logger.Warn("reset token purge failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Server) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the backends.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.purgeLoop(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.db.Dialect()),
			slog.Bool("cache", s.redis != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

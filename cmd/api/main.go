package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/banana-studio/banana-api/internal/config"
	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/auth"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/dashboard"
	"github.com/banana-studio/banana-api/internal/domain/generation"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/domain/recharge"
	"github.com/banana-studio/banana-api/internal/domain/user"
	"github.com/banana-studio/banana-api/internal/middleware"
	"github.com/banana-studio/banana-api/internal/pkg/database"
	"github.com/banana-studio/banana-api/internal/pkg/email"
	"github.com/banana-studio/banana-api/internal/pkg/imaging"
	"github.com/banana-studio/banana-api/internal/pkg/jwt"
	"github.com/banana-studio/banana-api/internal/pkg/logger"
	"github.com/banana-studio/banana-api/internal/pkg/response"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
	"github.com/banana-studio/banana-api/internal/pkg/telegram"
	"github.com/banana-studio/banana-api/internal/pkg/upload"
	"github.com/banana-studio/banana-api/migrations"
)

const version = "1.0.0"

// handlers groups everything the router mounts.
type handlers struct {
	auth       *auth.Handler
	admin      *admin.Handler
	credit     *credit.Handler
	recharge   *recharge.Handler
	generation *generation.Handler
	dashboard  *dashboard.Handler
	realtime   *realtime.Handler

	authz          admin.Authorizer
	authMiddleware func(http.Handler) http.Handler
	authThrottle   func(http.Handler) http.Handler

	allowedOrigins []string
	localUploads   string
	healthCheck    func(ctx context.Context) error
}

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "banana-api"})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Banana API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.RunMigrations {
		if err := migrations.Apply(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	store, err := storage.New(storage.Config{
		Driver:      cfg.StorageDriver,
		S3Endpoint:  cfg.S3Endpoint,
		S3Region:    cfg.S3Region,
		S3Bucket:    cfg.S3Bucket,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
		S3PublicURL: cfg.S3PublicURL,
		LocalPath:   cfg.LocalStoragePath,
		LocalURL:    cfg.LocalStorageURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage")
	}
	uploader := upload.NewService(store, imaging.NewProcessor(imaging.DefaultConfig()))

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	// ---------- Realtime ----------
	hub := realtime.NewHub(redis)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	adminRepo := admin.NewRepository(db)
	creditRepo := credit.NewRepository(db)
	rechargeRepo := recharge.NewRepository(db, creditRepo)
	generationRepo := generation.NewRepository(db, creditRepo)
	dashboardRepo := dashboard.NewRepository(db)

	// ---------- Services ----------
	adminService := admin.NewService(adminRepo, uploader)
	creditService := credit.NewService(creditRepo, adminService, adminService, adminService, hub)

	var notifier recharge.Notifier
	if cfg.TelegramEnabled() {
		tg, err := telegram.New(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			log.Error().Err(err).Msg("Telegram notifications disabled")
		} else {
			notifier = tg
		}
	}
	rechargeService := recharge.NewService(rechargeRepo, recharge.Deps{
		Ledger:    creditService,
		Audit:     adminService,
		Settings:  adminService,
		Payment:   adminService,
		Notifier:  notifier,
		Publisher: hub,
		Uploader:  uploader,
	})

	mailer := email.NewService(email.ResendConfig{
		APIKey:    cfg.ResendAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	})
	defer mailer.Close()

	authDeps := auth.Deps{
		Users:     userRepo,
		Codes:     auth.NewCodeRepository(db),
		JWT:       jwtService,
		Mailer:    mailer,
		Ledger:    creditRepo,
		Committer: creditService,
		Settings:  adminService,
		RunTx: func(ctx context.Context, fn func(*sqlx.Tx) error) error {
			return database.WithTx(ctx, db, fn)
		},
		DashboardURL: cfg.FrontendURL + "/dashboard",
	}
	if redis != nil {
		authDeps.Cooldown = auth.NewRedisCooldown(redis)
		authDeps.Tokens = auth.NewRedisTokenStore(redis)
	}
	authService := auth.NewService(authDeps)

	generationService := generation.NewService(generationRepo, generation.Deps{
		Ledger:    creditService,
		Settings:  adminService,
		Publisher: hub,
		Uploader:  uploader,
		Waker:     generation.NewWaker(redis),
	})

	dashboardService := dashboard.NewService(dashboardRepo)

	h := &handlers{
		auth:       auth.NewHandler(authService),
		admin:      admin.NewHandler(adminService),
		credit:     credit.NewHandler(creditService),
		recharge:   recharge.NewHandler(rechargeService),
		generation: generation.NewHandler(generationService),
		dashboard:  dashboard.NewHandler(dashboardService),
		realtime:   realtime.NewHandler(hub, cfg.AllowedOrigins),

		authz:          adminService,
		authMiddleware: middleware.Auth(jwtService),
		authThrottle:   middleware.NewRateLimiter(redis, "auth", 20, time.Minute).Handler,

		allowedOrigins: cfg.AllowedOrigins,
	}
	h.healthCheck = func(ctx context.Context) error {
		return database.Ping(ctx, db, redis)
	}
	if local, ok := store.(*storage.LocalStorage); ok {
		h.localUploads = local.BasePath()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func newRouter(h *handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(h.allowedOrigins))

	// WebSocket endpoint (before Compress)
	r.With(middleware.QueryToken, h.authMiddleware).Get("/ws", h.realtime.WebSocket)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			status := "ok"
			if h.healthCheck != nil {
				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()
				if err := h.healthCheck(ctx); err != nil {
					status = "degraded"
				}
			}
			response.OK(w, map[string]string{
				"status":  status,
				"version": version,
			})
		})

		if h.localUploads != "" {
			r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.localUploads))))
		}

		r.Route("/api/v1", func(r chi.Router) {
			h.auth.Mount(r, h.authMiddleware, h.authThrottle)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware)

				h.admin.Mount(r)
				h.credit.Mount(r, h.authz)
				h.recharge.Mount(r, h.authz)
				h.generation.Mount(r)

				r.Group(func(r chi.Router) {
					r.Use(admin.RequirePrivilege(h.authz, admin.Admin))
					r.Get("/admin-get-dashboard-stats", h.dashboard.DashboardStats)
					r.Get("/admin-get-system-stats", h.dashboard.SystemStats)
				})
			})
		})
	})

	return r
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vetclinic-backend/internal/appointments"
	"vetclinic-backend/internal/auth"
	"vetclinic-backend/internal/cache"
	"vetclinic-backend/internal/config"
	"vetclinic-backend/internal/db"
	"vetclinic-backend/internal/middleware"
	"vetclinic-backend/internal/pets"
	"vetclinic-backend/internal/validation"
	"vetclinic-backend/internal/vets"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:    []byte(cfg.JWTSecret),
			AccessTTL: time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			Issuer:    "vetclinic-backend",
		}
	} else {
		logger.Warn("JWT_SECRET not set, authenticated routes disabled")
	}

	val := validation.New()

	vetsRepo := vets.NewRepository(cols.Veterinarians)
	petsRepo := pets.NewRepository(cols.Pets)
	apptRepo := appointments.NewRepository(cols.Appointments)

	scheduler := appointments.NewService(apptRepo, vetsRepo, petsRepo, cacheStore, logger, appointments.Options{
		Location:             cfg.Timezone,
		DefaultHoursFallback: cfg.DefaultHoursFallback,
		DefaultDayStart:      cfg.DefaultDayStart,
		DefaultDayEnd:        cfg.DefaultDayEnd,
	})

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	apptHandler := appointments.NewHandler(scheduler, val, cacheStore, cacheTTL, logger)
	vetsHandler := vets.NewHandler(vetsRepo, logger)
	petsHandler := pets.NewHandler(petsRepo, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	bookingLimiter := middleware.NewRateLimiter(cfg.RateLimitBookings, time.Duration(cfg.RateLimitWindowSec)*time.Second)

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireAuth(jwtManager))

			protected.Get("/veterinarians", vetsHandler.List)
			protected.Get("/veterinarians/{id}", vetsHandler.GetByID)

			protected.Get("/pets", petsHandler.List)
			protected.Get("/pets/{id}", petsHandler.GetByID)

			protected.Get("/availability", apptHandler.GetAvailability)
			protected.Get("/availability/next", apptHandler.GetNextAvailability)

			protected.With(bookingLimiter.Middleware).Post("/appointments", apptHandler.Create)
			protected.Get("/appointments", apptHandler.List)
			protected.Get("/appointments/{id}", apptHandler.GetByID)
			protected.Patch("/appointments/{id}", apptHandler.Update)
			protected.Post("/appointments/{id}/confirm", apptHandler.Confirm)
			protected.Post("/appointments/{id}/cancel", apptHandler.Cancel)
			protected.Post("/appointments/{id}/complete", apptHandler.Complete)
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}

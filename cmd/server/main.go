package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/cache"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/notify"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Proctor")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	directoryRepo := repository.NewDirectoryRepository(pool)

	questionCache := cache.NewQuestionCache(rdb, questionRepo, cfg.QuestionCacheTTL, log)

	// ─── Notification Fanout ──────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	fanout := notify.NewFanout(notify.NewRedisBroker(rdb), cfg.FanoutBuffer, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		fanout.Run(workerCtx)
	}()

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	sessionService := service.NewExamSessionService(examRepo, questionCache, sessionRepo, resultRepo, fanout, log)
	violationService := service.NewViolationService(examRepo, sessionRepo, violationRepo, fanout, cfg.DefaultViolationThreshold, log)
	sweeper := worker.NewExpirationSweeper(examRepo, questionCache, sessionRepo, sessionService, fanout, cfg.SweepInterval, log)
	proctorService := service.NewProctorService(examRepo, sessionRepo, violationRepo, sweeper, fanout, cfg.DefaultViolationThreshold, log)
	analyticsService := service.NewAnalyticsService(examRepo, questionCache, sessionRepo, resultRepo, violationRepo, directoryRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		StudentExam: handler.NewStudentExamHandler(sessionService, violationService, log),
		Proctor:     handler.NewProctorHandler(proctorService, analyticsService, log),
		Monitor:     handler.NewMonitorHandler(rdb, analyticsService, log),
		WS:          handler.NewWSHandler(rdb, sessionService, violationService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweeper.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	limiter := middleware.NewRateLimiter(workerCtx, cfg.RateLimitPerMinute, time.Minute)
	r := router.SetupRouter(authService, limiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the sweeper and let the fanout drain pending events.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

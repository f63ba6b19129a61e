package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/therapy-match-api/api/swagger"
	"github.com/noah-isme/therapy-match-api/internal/handler"
	"github.com/noah-isme/therapy-match-api/internal/matching"
	"github.com/noah-isme/therapy-match-api/internal/middleware"
	"github.com/noah-isme/therapy-match-api/internal/repository"
	"github.com/noah-isme/therapy-match-api/internal/service"
	"github.com/noah-isme/therapy-match-api/internal/triage"
	"github.com/noah-isme/therapy-match-api/pkg/cache"
	"github.com/noah-isme/therapy-match-api/pkg/config"
	"github.com/noah-isme/therapy-match-api/pkg/crypto"
	"github.com/noah-isme/therapy-match-api/pkg/database"
	"github.com/noah-isme/therapy-match-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/therapy-match-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/therapy-match-api/pkg/middleware/requestid"
	"github.com/noah-isme/therapy-match-api/pkg/storage"
)

// @title Therapy Match API
// @version 0.1.0
// @description Triage, therapist matching and consent-gated dossiers for Austrian psychotherapy clients.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("postgres unavailable", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and event streaming disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	therapistRepo := repository.NewTherapistRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sessionRepo := repository.NewTriageSessionRepository(db)
	consentRepo := repository.NewConsentRepository(db)
	dossierRepo := repository.NewDossierRepository(db)

	var cacheRepo service.CacheRepository
	var streams service.StreamAppender = logStream{logger: logr}
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		streams = repository.NewStreamRepository(redisClient, cfg.Events.MaxLen)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Directory.CacheTTL, logr, cfg.Directory.CacheEnabled && cacheRepo != nil)

	events := service.NewEventService(streams, service.EventServiceConfig{
		Stream:     cfg.Events.Stream,
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.BufferSize,
		MaxRetries: cfg.Events.MaxRetries,
	}, metrics, logr)
	events.Start(context.Background())

	geocoder := service.NewGeocodingService(service.GeocodingConfig{
		Enabled:           cfg.Geocoder.Enabled,
		BaseURL:           cfg.Geocoder.BaseURL,
		UserAgent:         cfg.Geocoder.UserAgent,
		Timeout:           cfg.Geocoder.Timeout,
		RequestsPerSecond: cfg.Geocoder.RequestsPerSecond,
		CacheTTL:          cfg.Geocoder.CacheTTL,
	}, cacheSvc, metrics, logr)

	catalog := service.NewTherapistCatalog(therapistRepo, cacheSvc, cfg.Directory.CacheTTL, logr)
	engine := matching.NewEngine(matchingWeights(cfg.Matching), cfg.Matching.Limit)
	recommendations := service.NewRecommendationService(catalog, courseRepo, engine, metrics, logr)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	triageSvc := service.NewTriageService(sessionRepo, triage.NewValidator(validate), recommendations, events, metrics, logr)
	directorySvc := service.NewDirectoryService(catalog, therapistRepo, geocoder, validate, logr)
	therapistSvc := service.NewTherapistService(therapistRepo, catalog, geocoder, auditRepo, validate, logr)

	sealer, err := crypto.NewSealer(cfg.Dossier.EncryptionKey)
	if err != nil {
		logr.Fatal("dossier encryption key invalid", zap.Error(err))
	}
	artifacts, err := storage.NewLocalStorage(cfg.Dossier.StorageDir)
	if err != nil {
		logr.Fatal("dossier storage unavailable", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Dossier.SignedURLSecret, cfg.Dossier.SignedURLTTL)
	dossierSvc := service.NewDossierService(dossierRepo, sessionRepo, consentRepo, sealer, artifacts, signer,
		events, metrics, auditRepo, validate, logr, service.DossierConfig{
			TTL:          cfg.Dossier.TTL,
			DownloadPath: cfg.APIPrefix + "/dossiers/download/",
		})
	go cleanupArtifacts(ctx, artifacts, cfg.Dossier.TTL, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg.APIPrefix, cfg.Env != config.EnvProduction, authSvc, handlers{
		auth:      handler.NewAuthHandler(authSvc),
		triage:    handler.NewTriageHandler(triageSvc),
		directory: handler.NewDirectoryHandler(directorySvc),
		therapist: handler.NewTherapistHandler(therapistSvc),
		dossier:   handler.NewDossierHandler(dossierSvc),
		metrics:   handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	events.Stop(shutdownCtx)
}

func matchingWeights(cfg config.MatchingConfig) matching.Weights {
	return matching.Weights{
		DefaultRating:           cfg.DefaultRating,
		TherapistPreference:     cfg.TherapistPreference,
		TherapistElevatedRisk:   cfg.TherapistElevatedRisk,
		TherapistFormatMatch:    cfg.TherapistFormatMatch,
		TherapistShortTermSlots: cfg.TherapistShortTermSlots,
		CoursePreference:        cfg.CoursePreference,
		CourseStructuredProgram: cfg.CourseStructuredProgram,
		CourseFormatMatch:       cfg.CourseFormatMatch,
	}
}

func readinessChecks(db *sqlx.DB, client *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// cleanupArtifacts removes rendered dossier PDFs once every link to them has expired.
func cleanupArtifacts(ctx context.Context, store *storage.LocalStorage, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(ttl)
			if err != nil {
				logr.Warn("dossier artifact cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("dossier artifacts removed", zap.Int("count", len(removed)))
			}
		}
	}
}

// logStream stands in for the Redis stream when Redis is unreachable.
type logStream struct {
	logger *zap.Logger
}

func (s logStream) Append(_ context.Context, stream string, values map[string]interface{}) (string, error) {
	s.logger.Info("event", zap.String("stream", stream), zap.Any("values", values))
	return "", nil
}

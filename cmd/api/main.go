package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trueface/internal/api"
	"trueface/internal/attendance"
	"trueface/internal/auth"
	"trueface/internal/cloudinary"
	"trueface/internal/config"
	"trueface/internal/faceclient"
	"trueface/internal/logger"
	"trueface/internal/queue"
	"trueface/internal/store"
	"trueface/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, zl); err != nil {
		zl.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	medium, err := store.OpenMedium(ctx, cfg)
	if err != nil {
		return err
	}
	zl.Info("store opened", zap.String("backend", medium.Backend))

	svc := attendance.Open(medium, attendance.Options{
		Latency:              cfg.MockLatency,
		MarkLatency:          cfg.MockMarkLatency,
		DemoLoginFallback:    cfg.DemoLoginFallback,
		AllowDuplicateEmails: !cfg.UniqueEmails,
		Recognizer:           newRecognizer(ctx, cfg, zl),
		Logger:               zl.Named("attendance"),
	})
	defer func() {
		if err := svc.Close(); err != nil {
			zl.Warn("close store", zap.Error(err))
		}
	}()
	if cfg.DemoLoginFallback {
		zl.Warn("demo login fallback enabled: unmatched credentials log in as the demo teacher")
	}

	events, closeQueue, err := store.OpenQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeQueue() }()
	if _, ok := events.(*queue.InMemory); ok {
		// nothing else can see an in-process queue, so drain it here
		go func() {
			if _, err := worker.Run(ctx, events, zl.Named("events")); err != nil {
				zl.Warn("event consumer stopped", zap.Error(err))
			}
		}()
	}

	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
	h := api.NewHandler(svc, issuer, events, zl, cfg.MaxUploadBytes)
	r := api.NewRouter(h, api.RouterConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Backend:         medium.Backend,
		Healthy:         medium.Healthy,
	}, zl)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	zl.Info("shutting down server")

	// give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server forced shutdown", zap.Error(err))
	}
	zl.Info("server exited")
	return nil
}

// newRecognizer picks the mock recognizer unless FACE_SKIP=false.
func newRecognizer(ctx context.Context, cfg config.App, zl *zap.Logger) attendance.Recognizer {
	if cfg.FaceSkip {
		zl.Info("face service skipped, using mock recognizer")
		return attendance.NewDefaultMockRecognizer()
	}

	client := faceclient.New(cfg.FaceServiceURL)
	if err := client.Health(ctx); err != nil {
		zl.Warn("face service not available", zap.String("url", cfg.FaceServiceURL), zap.Error(err))
	} else {
		zl.Info("face service connected", zap.String("url", cfg.FaceServiceURL))
	}

	var uploader faceclient.Uploader
	if cfg.CloudinaryConfigured() {
		uploader = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		zl.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	} else {
		zl.Info("cloudinary not configured, sending images inline")
	}
	return faceclient.NewRecognizer(client, uploader)
}

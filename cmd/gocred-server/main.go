package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/internal/config"
	"github.com/MrEthical07/goCred/internal/httpapi"
	"github.com/MrEthical07/goCred/internal/logging"
	"github.com/MrEthical07/goCred/metrics/export/prometheus"
	"github.com/MrEthical07/goCred/middleware"
	"github.com/MrEthical07/goCred/notify"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Env, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		log.Error("engine config invalid", "err", err)
		os.Exit(1)
	}

	rdb, err := openRedis(rootCtx, redisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	dir, err := openDirectory(rootCtx, cfg)
	if err != nil {
		log.Error("directory init failed", "driver", cfg.DirectoryDriver, "err", err)
		os.Exit(1)
	}
	defer dir.Close()

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		log.Error("notifier init failed", "err", err)
		os.Exit(1)
	}

	engine, err := goCred.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserDirectory(dir).
		WithNotifier(notifier).
		WithLogger(log).
		Build()
	if err != nil {
		log.Error("engine init failed", "err", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := httpapi.Handlers{
		Engine:    engine,
		Directory: dir,
		Cookie:    middleware.CookieOptions{Insecure: cfg.CookieInsecure},
	}
	if cfg.MetricsEnabled {
		h.Metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.Env, "directory", cfg.DirectoryDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func newNotifier(cfg *config.Config, log *slog.Logger) (goCred.Notifier, error) {
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, notifications are logged instead of sent")
		return notify.LogSender{Logger: log}, nil
	}
	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		return nil, err
	}
	return sender, nil
}

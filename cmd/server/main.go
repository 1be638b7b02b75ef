package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/geo"
	handlers "tourprism/internal/handler"
	"tourprism/pkg/config"
	"tourprism/pkg/i18n"
	"tourprism/pkg/logger"
	"tourprism/pkg/metrics"
	"tourprism/pkg/scheduler"
	"tourprism/pkg/sse"
	"tourprism/pkg/storage"
)

func main() {
	// 1. 加载配置
	if err := config.Load(); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GlobalConfig

	// 2. 日志
	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 3. 设备存储
	store, err := storage.NewStore(storage.Config{
		Driver: cfg.StorageDriver,
		DSN:    cfg.StorageDSN,
		Redis: storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	})
	if err != nil {
		logger.Error("open storage failed", zap.String("driver", cfg.StorageDriver), zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	tr, err := i18n.NewI18nSupport(cfg.LanguageDefault)
	if err != nil {
		logger.Error("load messages failed", zap.Error(err))
		os.Exit(1)
	}

	m := metrics.NewMetrics()
	metrics.SetGlobal(m)

	var geoip *geoip2.Reader
	if cfg.GeoIPDB != "" {
		geoip, err = geoip2.Open(cfg.GeoIPDB)
		if err != nil {
			logger.Warn("geoip database unavailable, network location disabled", zap.String("path", cfg.GeoIPDB), zap.Error(err))
		} else {
			defer geoip.Close()
		}
	}

	cron := scheduler.NewCron(time.Local)
	cron.Start()
	defer cron.Stop()
	sched := scheduler.New()
	defer sched.Stop()

	hub := sse.NewHub(0)
	h, err := handlers.NewHandlers(handlers.Options{
		Config:    cfg,
		Client:    api.New(cfg.BackendURL, api.WithMetrics(m)),
		Store:     store,
		I18n:      tr,
		Metrics:   m,
		GeoIP:     geoip,
		Places:    geo.NewPlaces(cfg.PlacesURL, cfg.PlacesAPIKey, nil),
		Geocoder:  geo.NewNominatim(cfg.GeocoderURL, nil),
		Cron:      cron,
		Scheduler: sched,
		Hub:       hub,
	})
	if err != nil {
		logger.Error("build handlers failed", zap.Error(err))
		os.Exit(1)
	}
	defer h.Close()

	engine := gin.New()
	engine.Use(gin.Recovery())
	h.Register(engine)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("tourprism web client listening", zap.String("addr", cfg.Addr), zap.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	// 等待退出信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// SSE 连接不会自己结束，先关掉
	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

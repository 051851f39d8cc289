package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threadspire/internal/config"
	"threadspire/internal/db"
	"threadspire/internal/logger"
	"threadspire/internal/observability"
	"threadspire/internal/realtime"
	"threadspire/internal/router"
	"threadspire/internal/scheduler"
	"threadspire/internal/search"
	"threadspire/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOTel(ctx, log, router.ServiceName)

	conn, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("database init failed", "error", err)
	}

	opts := services.Options{}
	hub := realtime.NewHub(log)
	opts.Broker = hub
	if cfg.Redis.URL != "" {
		broker, err := realtime.NewRedisBroker(cfg.Redis.URL, cfg.Redis.Channel, hub, log)
		if err != nil {
			log.Warn("redis unavailable, realtime stays in-process", "error", err)
		} else if err := broker.StartForwarder(ctx); err != nil {
			log.Warn("redis forwarder failed, realtime stays in-process", "error", err)
			_ = broker.Close()
		} else {
			defer broker.Close()
			opts.Broker = broker
		}
	}
	if cfg.Search.MeiliURL != "" {
		engine := search.NewMeili(cfg.Search.MeiliURL, cfg.Search.MeiliAPIKey, log)
		defer engine.Close()
		opts.Engine = engine
	}

	svc := services.New(conn, log, opts)
	svc.Ranking.Start(ctx)

	sched, err := scheduler.New(cfg.Ranking.Timezone, log)
	if err != nil {
		log.Fatal("scheduler init failed", "error", err)
	}
	if err := sched.AddJob("recompute-trend-scores", cfg.Ranking.Cron, svc.Ranking.RecomputeRecent); err != nil {
		log.Fatal("scheduler job failed", "error", err)
	}
	sched.Start()

	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	renderer, err := router.LoadTemplates(cfg.TemplatesDir)
	if err != nil {
		log.Fatal("template load failed", "error", err)
	}
	engine := router.New(router.Options{
		Config:     cfg,
		Services:   svc,
		Log:        log,
		HTMLRender: renderer,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		// Long-lived streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info("threadspire server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	<-sched.Stop().Done()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "error", err)
	}
}

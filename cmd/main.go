// 程序入口：读取配置、构造依赖（数据库、订阅、渲染端）并启动同步引擎与 HTTP 服务
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"parking-live/internal/api"
	"parking-live/internal/config"
	"parking-live/internal/engine"
	"parking-live/internal/feed"
	"parking-live/internal/logger"
	"parking-live/internal/metrics"
	"parking-live/internal/middleware"
	"parking-live/internal/migrate"
	"parking-live/internal/sink"
	"parking-live/internal/snapshot"
	"parking-live/internal/store"
	"parking-live/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.FromEnv()
	l.Debug("config_loaded", "addr", cfg.Addr, "api_base", cfg.APIBase, "feed", cfg.FeedDriver)

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	if cfg.MigrateOnStart {
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
	}
	st := store.AttachDB(db)

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	filter := feed.Filter{Schema: cfg.FeedSchema, Table: cfg.FeedTable}
	var sub feed.Subscriber
	switch cfg.FeedDriver {
	case config.DriverRedis:
		if rc == nil {
			l.Error("feed_redis_requires_redis", "hint", "REDIS_ENABLE=true")
			os.Exit(1)
		}
		sub = feed.NewRedis(rc, cfg.FeedChannel, filter, cfg.FeedBuffer)
	default:
		pg := feed.NewPostgres(utils.BuildPostgresDSNFromEnv(), cfg.FeedChannel, filter, cfg.FeedBuffer)
		pg.Fetch = st.FetchRecord
		sub = pg
	}

	latest := sink.NewLatest()
	hub := sink.NewHub(latest)
	hub.AllowOrigins(cfg.WSAllowedOrigins...)
	sinks := []sink.Sink{latest, hub}
	if rc != nil {
		sinks = append(sinks, sink.NewRedis(rc, cfg.SinkRedisKey, cfg.SinkRedisChannel))
	}
	eng := engine.New(snapshot.NewLoader(st), sub, sink.NewMulti(sinks...))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, api.BuildRoutes(eng, latest, hub)))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	handler := logger.AccessMiddleware(l)(mux)
	if cfg.RateLimitEnabled {
		handler = middleware.RateLimit(cfg.RateLimitQPS)(handler)
	}
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		l.Info("listening", "addr", cfg.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http_serve_error", "err", err)
			stop()
		}
	}()

	runErr := eng.Run(ctx)
	if runErr != nil {
		l.Error("engine_error", "err", runErr)
	}
	eng.Close()
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Shutdown(shutdownCtx)
	l.Info("shutdown_done")
	if runErr != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daybook/src-client/engine"
	"daybook/src-client/metric"
	"daybook/src-client/remote"
	"daybook/src-client/utils"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	config := utils.NewConfig()

	sqldb, err := sql.Open(sqliteshim.ShimName, config.GetCachePath())
	if err != nil {
		slog.Error("can't open cache database", "path", config.GetCachePath(), "error", err)
		os.Exit(1)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	defer bunDB.Close()

	registry := prometheus.NewRegistry()
	metrics := metric.New(registry)

	svc := remote.NewClient(
		config.GetRemoteBaseURL(),
		config.GetRemoteToken(),
		config.GetUserID(),
	)

	ctx := context.Background()
	calendar, err := engine.New(ctx, bunDB, svc, metrics, engine.Options{
		UserID:            config.GetUserID(),
		ViewerEmail:       config.GetUserID(),
		Location:          config.GetLocation(),
		BufferMonths:      config.GetBufferMonths(),
		EnsureCooldown:    config.GetEnsureCooldown(),
		PendingSyncTTL:    config.GetPendingSyncTTL(),
		OverrideTolerance: config.GetOverrideTolerance(),
	})
	if err != nil {
		slog.Error("can't assemble calendar engine", "error", err)
		os.Exit(1)
	}
	defer calendar.Close()

	if err := calendar.Bootstrap(ctx); err != nil {
		slog.Warn("bootstrap fetch failed, continuing with cached data", "error", err)
	}

	// Periodic background revalidation of the visible range; absent
	// entities are kept until a foreground fetch confirms their removal.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(config.GetRefreshCron(), func() {
		bg, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		now := time.Now().In(config.GetLocation())
		if err := calendar.FetchEventsForRange(bg, now.AddDate(0, -1, 0), now.AddDate(0, 2, 0), true, true); err != nil {
			slog.Warn("background refresh failed", "error", err)
		}
	}); err != nil {
		slog.Error("invalid refresh cron spec", "spec", config.GetRefreshCron(), "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		for sig := range calendar.Signals() {
			slog.Warn("mutation signal", "kind", sig.Kind, "op", sig.Op, "id", sig.EventID, "error", sig.Err)
		}
	}()

	go func() {
		muxer := http.NewServeMux()
		muxer.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		muxer.HandleFunc("GET /export.ics", func(w http.ResponseWriter, r *http.Request) {
			body, err := calendar.ExportICS()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/calendar")
			if _, err := w.Write([]byte(body)); err != nil {
				slog.Warn("can't write ics response", "error", err)
			}
		})
		if err := http.ListenAndServe(":"+config.GetMetricsPort(), muxer); err != nil {
			slog.Error("cannot start HTTP server", "error", err)
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit")

	closeChan := make(chan os.Signal, 1)
	signal.Notify(closeChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-closeChan

	slog.Info("Gracefully shutting down...")
}

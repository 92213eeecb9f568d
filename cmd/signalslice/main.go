// SignalSlice samples live busyness for a fixed set of Arlington venues,
// distills it into the Pizza Index and the Gay Bar Index, and serves a live
// dashboard over websocket push and HTTP polling.
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

	"github.com/go-chi/chi/v5"

	"github.com/ljmasx/SignalSlice/dashboard"
	"github.com/ljmasx/SignalSlice/location"
	"github.com/ljmasx/SignalSlice/sampler"
	"github.com/ljmasx/SignalSlice/scanner"
	"github.com/ljmasx/SignalSlice/store"
)

func main() {
	port := env("PORT", "8080")
	locationsFile := env("LOCATIONS_FILE", "locations.yml")
	historyDB := env("HISTORY_DB", "db/history.db")
	samplerMode := env("SAMPLER", "gmaps")
	browserURL := env("BROWSER_URL", "")
	timezone := env("SCAN_TIMEZONE", "America/New_York")
	logLevel := env("LOG_LEVEL", "info")

	interval, err := time.ParseDuration(env("SCAN_INTERVAL", "1h"))
	if err != nil {
		slog.Error("invalid SCAN_INTERVAL", "error", err)
		os.Exit(1)
	}
	autostart := env("AUTOSTART", "true") == "true"

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Location set.
	set, err := location.Load(locationsFile)
	if err != nil {
		slog.Error("load locations", "file", locationsFile, "error", err)
		os.Exit(1)
	}
	slog.Info("locations loaded", "file", locationsFile, "count", set.Active())

	// Dashboard state and hub.
	dashStore := dashboard.NewStore(dashboard.Config{ActiveLocations: set.Active()})
	hub := dashboard.NewHub(dashStore, logger)
	go hub.Run(ctx)

	// Busyness source.
	var smp sampler.Sampler
	switch samplerMode {
	case "static":
		// Demo mode: fixed mid-range busyness, no browser needed.
		values := make(map[string]int, set.Active())
		for i, loc := range set.Locations {
			values[loc.ID] = 30 + (i*17)%50
		}
		smp = &sampler.Static{Values: values}
	default:
		gmaps, err := sampler.NewGMaps(sampler.GMapsConfig{
			RemoteURL: browserURL,
			Timezone:  timezone,
			Logger:    logger,
		})
		if err != nil {
			slog.Error("init sampler", "error", err)
			os.Exit(1)
		}
		defer gmaps.Close()
		smp = gmaps
	}

	// Optional scan archive.
	var archiver scanner.Archiver
	if historyDB != "" {
		db, err := store.Open(historyDB)
		if err != nil {
			slog.Error("open history db", "path", historyDB, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		archiver = store.New(db)
		slog.Info("scan archive enabled", "path", historyDB)
	}

	svc := scanner.New(scanner.Config{
		Interval:    interval,
		InitialScan: true,
		AlignHourly: true,
		Logger:      logger,
	}, set, smp, dashStore, hub, archiver)

	dashStore.AddActivity(dashboard.KindInit, "SignalSlice online", dashboard.LevelSuccess)

	if autostart {
		if err := svc.StartScanner(); err != nil {
			slog.Error("start scanner", "error", err)
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	api := dashboard.NewAPI(dashStore, hub, svc)
	api.Register(r)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	if err := svc.StopScanner(); err != nil && !errors.Is(err, scanner.ErrNotRunning) {
		slog.Error("stop scanner", "error", err)
	}
	svc.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"eventpoints/internal/backend"
	"eventpoints/internal/capture"
	"eventpoints/internal/civil"
	"eventpoints/internal/config"
	"eventpoints/internal/ics"
	appLog "eventpoints/internal/log"
	"eventpoints/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath  string
	listen      string
	debug       bool
	capturePath string
	icsPath     string
}

func main() {
	flags := parseFlags()

	appLog.Configure(flags.debug)
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	if err := run(flags); err != nil {
		appLog.Error("eventpoints failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	appLog.Info("eventpoints starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	zone, err := civil.NewResolver(conf.Zone())
	if err != nil {
		return err
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"offsets", len(conf.Offsets),
		"backend_url", conf.BackendURL,
		"cache_path", conf.CachePath,
		"refresh", conf.RefreshCron,
		"default_points", conf.DefaultPoints,
		"max_instances", conf.MaxInstances,
	)

	cache, err := backend.OpenCache(conf.CachePath)
	if err != nil {
		// Run uncached rather than not at all.
		appLog.Error("backend cache unavailable", err, "path", conf.CachePath)
		cache = nil
	}
	defer cache.Close()
	client := backend.NewClient(conf.BackendURL, conf.BackendToken, cache)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.icsPath != "" {
		return exportICS(ctx, client, zone, flags.icsPath)
	}

	server := web.NewServer(conf, zone, client)
	if err := server.Refresh(ctx); err != nil {
		appLog.Error("initial backend refresh failed", err)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		if err := server.Refresh(ctx); err != nil {
			appLog.Error("scheduled backend refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen, "debug", flags.debug)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if flags.capturePath != "" {
		err := capture.KioskPNG(ctx, capture.Options{
			URL:        kioskURL(conf),
			OutputPath: flags.capturePath,
		})
		shutdown(httpSrv)
		return err
	}

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	shutdown(httpSrv)
	appLog.Info("eventpoints exiting")
	return nil
}

func exportICS(ctx context.Context, client *backend.Client, zone *civil.Resolver, path string) error {
	events, err := client.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	feed := ics.Feed{Name: "Events", Timezone: zone.Zone().Name, Now: time.Now()}
	if err := feed.Write(f, events); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("ics exported", "path", path, "events", len(events))
	return nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
}

// kioskURL is the configured kiosk URL or this server's own /kiosk.
func kioskURL(conf *config.Config) string {
	if conf.KioskURL != "" {
		return conf.KioskURL
	}
	host, port, err := net.SplitHostPort(conf.Listen)
	if err != nil {
		return "http://" + strings.TrimPrefix(conf.Listen, "http://") + "/kiosk"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/kiosk"
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/eventpoints/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging")
	flag.StringVar(&cfg.capturePath, "capture", "", "Capture the kiosk page to this PNG and exit")
	flag.StringVar(&cfg.icsPath, "ics", "", "Export all events to this .ics file and exit")

	flag.Parse()

	return cfg
}

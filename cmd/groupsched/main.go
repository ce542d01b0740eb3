package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"groupsched/internal/capture"
	"groupsched/internal/config"
	appLog "groupsched/internal/log"
	"groupsched/internal/schedule"
	"groupsched/internal/state"
	"groupsched/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	snapshot   bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		hashPassword(os.Args[2:])
		return
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	appLog.Info("groupsched starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"api_base_url", conf.APIBaseURL,
		"timezone", conf.Timezone,
		"day_window", conf.DayWindow.Back+conf.DayWindow.Ahead+1,
		"dedup_key", conf.DedupKey,
		"refresh", conf.RefreshCron,
		"state_path", conf.StatePath,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("groupsched failed", err)
		os.Exit(1)
	}
	appLog.Info("groupsched exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	store, err := state.Open(conf.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	client := schedule.NewClient(conf.APIBaseURL, conf.RequestTimeout)
	coord := schedule.NewCoordinator(client, schedule.KeyFor(conf.DedupKey))
	policy := schedule.Policy{Back: conf.DayWindow.Back, Ahead: conf.DayWindow.Ahead}
	nav := schedule.NewNavigator(coord, policy, store, conf.Location())

	if err := nav.Restore(ctx); err != nil {
		// Start with the group form rather than refusing to start.
		appLog.Error("failed to restore session", err)
	}

	srv := web.NewServer(conf, nav, coord, store, flags.debug)
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Listen before serving so a snapshot never races the server start.
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return err
	}
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen, "debug", flags.debug)
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if flags.snapshot {
		err := takeSnapshot(ctx, conf)
		shutdown(httpSrv)
		return err
	}

	scheduler, err := startRefresh(ctx, conf, nav)
	if err != nil {
		shutdown(httpSrv)
		return err
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	if scheduler != nil {
		// Wait for a running reload to finish before closing the store.
		<-scheduler.Stop().Done()
	}
	shutdown(httpSrv)
	return err
}

// startRefresh schedules a full reload of the current session on
// conf.RefreshCron. It returns nil when no schedule is configured.
func startRefresh(ctx context.Context, conf *config.Config, nav *schedule.Navigator) (*cron.Cron, error) {
	if conf.RefreshCron == "" {
		return nil, nil
	}

	c := cron.New(cron.WithLocation(conf.Location()), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(conf.RefreshCron, func() {
		if err := nav.Reload(ctx); err != nil {
			if errors.Is(err, schedule.ErrNoGroup) {
				appLog.Debug("scheduled reload skipped; no group selected")
				return
			}
			appLog.Error("scheduled reload failed", err)
			return
		}
		appLog.Info("scheduled reload done", "group", nav.State().Group)

		if conf.SnapshotOnRefresh {
			if err := takeSnapshot(ctx, conf); err != nil {
				appLog.Error("snapshot after reload failed", err)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("scheduled reload enabled", "refresh", conf.RefreshCron)
	return c, nil
}

// takeSnapshot captures the calendar view of the running server into
// conf.PreviewPath.
func takeSnapshot(ctx context.Context, conf *config.Config) error {
	opts := capture.Options{
		URL:        snapshotURL(conf.Listen),
		OutputPath: conf.PreviewPath,
	}
	if ba := conf.BasicAuth; ba != nil && ba.Username != "" {
		if ba.Password == "" {
			appLog.Info("snapshot may fail: basic auth uses password_hash only")
		} else {
			token := base64.StdEncoding.EncodeToString([]byte(ba.Username + ":" + ba.Password))
			opts.Headers = map[string]string{"Authorization": "Basic " + token}
		}
	}

	started := time.Now()
	if err := capture.SnapshotPNG(ctx, opts); err != nil {
		return err
	}
	appLog.Info("calendar snapshot written", "path", conf.PreviewPath, "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

func snapshotURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/?view=calendar"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/?view=calendar"
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Restore the session, capture a calendar snapshot and exit")

	flag.Parse()

	return cfg
}

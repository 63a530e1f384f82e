package cmd

import (
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"net"
	"net/http"
	"os"
	"os/signal"
	"smoothstreamd/internal/api"
	"smoothstreamd/internal/catalog"
	"smoothstreamd/internal/config"
	"smoothstreamd/internal/logger"
	"smoothstreamd/internal/metrics"
	"smoothstreamd/internal/origin"
	"smoothstreamd/internal/subtitle"
	"smoothstreamd/internal/telemetry"
	"syscall"
	"time"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fragment server",
	Long: `Start the fragment server.

The listener is bound first so the chosen port is known. With catalog.patch
enabled the host's video list is then rewritten to point at this server. Local
tracks are indexed and subtitle overrides loaded before requests are accepted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "listen port (0 picks a free port)")
	serveCmd.Flags().Bool("offline", false, "answer 406 instead of proxying when no local copy exists")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	defer log.Close()
	core := log.Named("core")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		core.Warnf("Tracing disabled: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			core.Warnf("Failed to flush traces: %v", err)
		}
	}()

	listener, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	fs := afero.NewOsFs()
	videos := loadVideoList(fs, cfg, port, log.Named("videolist"))

	cat, err := catalog.Load(ctx, catalog.Options{
		Fs:           fs,
		EpisodesRoot: cfg.Paths.Episodes,
		Parallelism:  cfg.Server.MaxThreads,
		Logger:       log.Named("catalog"),
	}, videos)
	if err != nil {
		listener.Close()
		return err
	}
	store := subtitle.LoadStore(fs, cfg.Paths.Episodes, cat.Episodes(), log.Named("subtitles"))
	engine := subtitle.NewEngine(store, subtitle.Options{
		ClosedCaptioning: cfg.Subtitles.ClosedCaptioning,
		MusicNotes:       cfg.Subtitles.MusicNotes,
		EpisodeTitles:    cfg.Subtitles.EpisodeTitles,
	}, log.Named("subtitles"))

	health := func() map[string]int {
		episodes, streams, tracks := cat.Stats()
		overrideEpisodes, overrides := engine.Store().Stats()
		return map[string]int{
			"episodes":          episodes,
			"streams":           streams,
			"tracks":            tracks,
			"override_episodes": overrideEpisodes,
			"overrides":         overrides,
		}
	}
	logSummary(core, cfg, engine.Options(), health())

	options := []api.ServerOption{
		api.WithLogger(log.Named("network")),
		api.WithOfflineMode(cfg.Server.OfflineMode),
		api.WithWorkerPool(cfg.Server.MaxThreads, cfg.Server.MaxQueued),
		api.WithRateLimit(cfg.Server.RateLimit),
		api.WithHealth(health),
	}
	if cfg.Server.Metrics {
		metrics.Register(prometheus.DefaultRegisterer)
		for kind, n := range health() {
			metrics.CatalogSize.WithLabelValues(kind).Set(float64(n))
		}
		options = append(options, api.WithMetrics(prometheus.DefaultGatherer))
	}

	client := origin.NewClient(log.Named("origin"), origin.WithTimeout(cfg.Remote.Timeout))
	server := &http.Server{
		Handler:           api.NewServer(cat, client, engine, options...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Every response closes its connection.
	server.SetKeepAlivesEnabled(false)

	serveErr := make(chan error, 1)
	go func() {
		core.Infof("Server listening on http://%s", listener.Addr())
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	core.Infof("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	core.Infof("Server exited gracefully")
	return nil
}

// loadVideoList returns the pristine video list, patching the host copy first when enabled.
// A missing or unreadable list leaves the server running with an empty catalog.
func loadVideoList(fs afero.Fs, cfg *config.Config, port int, log logger.Logger) catalog.VideoList {
	var (
		videos catalog.VideoList
		err    error
	)
	if cfg.Catalog.Patch {
		videos, err = catalog.Patch(fs, cfg.Paths.VideoList, cfg.Paths.PatchedVideoList, port)
		if err == nil {
			log.Infof("Patched %s for %d episodes on port %d", cfg.Paths.PatchedVideoList, len(videos), port)
		}
	} else {
		videos, err = catalog.LoadVideoList(fs, cfg.Paths.VideoList)
	}
	if err != nil {
		log.Errorf("Failed to load video list: %v", err)
		return catalog.VideoList{}
	}
	return videos
}

func logSummary(log logger.Logger, cfg *config.Config, toggles subtitle.Options, counts map[string]int) {
	log.Infof("Loaded %d episodes, %d ready for offline playback (%d tracks)",
		counts["episodes"], counts["streams"], counts["tracks"])
	log.Infof("Loaded subtitle overrides for %d tracks across %d episodes",
		counts["overrides"], counts["override_episodes"])
	log.Infof("Closed captioning: %t, music notes: %t, episode titles: %t",
		toggles.ClosedCaptioning, toggles.MusicNotes, toggles.EpisodeTitles)
	log.Infof("Offline mode: %t, workers: %d, queue: %d",
		cfg.Server.OfflineMode, cfg.Server.MaxThreads, cfg.Server.MaxQueued)
}

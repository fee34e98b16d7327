package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lacquerai/dashwire/internal/server"
	"github.com/lacquerai/dashwire/internal/store"
	"github.com/lacquerai/dashwire/internal/style"
)

var (
	// Serve command flags
	servePort       int
	serveHost       string
	serveMetrics    bool
	serveCORS       bool
	serveMinRefresh time.Duration
	serveWatch      bool
)

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Start an HTTP server exposing the stored dashboard.

The server provides:
- REST API for managing widgets and exploring API responses
- Background refresh of every widget on its own interval
- WebSocket streaming of widget updates
- Prometheus metrics endpoint`,
	Example: `
  dashwire serve                          # Serve the default dashboard
  dashwire serve --port 9000 --host 0.0.0.0
  dashwire serve --store sqlite --store-path ./dash.db
  dashwire serve --watch                  # Reload when the dashboard file changes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "server port")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "server host")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "enable Prometheus metrics endpoint")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", true, "enable CORS headers")
	serveCmd.Flags().DurationVar(&serveMinRefresh, "min-refresh", time.Second, "shortest refresh interval honored for any widget")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload the dashboard when its file changes (file store only)")
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := newEngine()
	if err != nil {
		return err
	}

	config := server.DefaultConfig()
	config.Host = serveHost
	config.Port = servePort
	config.EnableMetrics = serveMetrics
	config.EnableCORS = serveCORS
	config.MinRefreshInterval = serveMinRefresh

	srv, err := server.New(config, st, server.WithEngine(engine), server.WithFetcher(newFetcher()))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if serveWatch {
		path, ok := filePath()
		if !ok {
			return fmt.Errorf("--watch requires the file store")
		}
		stop, err := watchDashboard(ctx, path, st)
		if err != nil {
			return err
		}
		defer stop()
	}

	if !viper.GetBool("quiet") {
		w := cmd.OutOrStdout()
		style.Success(w, fmt.Sprintf("dashwire serving %d widgets on http://%s:%d", st.Len(), serveHost, servePort))
		fmt.Fprintf(w, "  API:     http://%s:%d/api/v1/widgets\n", serveHost, servePort)
		fmt.Fprintf(w, "  Stream:  ws://%s:%d/api/v1/stream\n", serveHost, servePort)
		if serveMetrics {
			fmt.Fprintf(w, "  Metrics: http://%s:%d/metrics\n", serveHost, servePort)
		}
	}

	if err := srv.StartWithGracefulShutdown(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// watchDashboard reloads st whenever the file at path is written. The
// directory is watched rather than the file so atomic renames are seen.
func watchDashboard(ctx context.Context, path string, st *store.Store) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				if err := st.Load(ctx); err != nil {
					log.Error().Err(err).Str("path", path).Msg("Failed to reload dashboard")
					continue
				}
				log.Info().Str("path", path).Int("widgets", st.Len()).Msg("Dashboard reloaded")

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Dashboard watcher error")
			}
		}
	}()

	return func() {
		cancel()
		_ = watcher.Close()
		<-done
	}, nil
}

// Command studio serves the podx run orchestration API: pipeline run
// admission and execution, live progress streaming, artifact downloads,
// and preset management.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/podstudio-labs/podstudio-go/internal/config"
	"github.com/podstudio-labs/podstudio-go/internal/logging"
	"github.com/podstudio-labs/podstudio-go/internal/pipeline"
	"github.com/podstudio-labs/podstudio-go/internal/platform/httpserver"
	"github.com/podstudio-labs/podstudio-go/internal/progress"
	"github.com/podstudio-labs/podstudio-go/internal/repo/jsonfile"
	"github.com/podstudio-labs/podstudio-go/internal/service/runs"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfgFile string
	addr    string
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:           "studio",
	Short:         "Podcast pipeline run orchestration service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("studio " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "studio.toml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address, overrides the configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "state directory, overrides the configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("studio {{.Version}}\n")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	history := jsonfile.NewHistoryStore(cfg.HistoryPath(), cfg.Storage.MaxHistory, logger)
	presets, err := jsonfile.NewPresetStore(cfg.PresetsPath(), logger)
	if err != nil {
		return fmt.Errorf("opening preset store: %w", err)
	}

	rules := progress.Default()
	if cfg.Pipeline.RulesFile != "" {
		rules, err = progress.LoadRules(cfg.Pipeline.RulesFile)
		if err != nil {
			return fmt.Errorf("loading progress rules: %w", err)
		}
	}

	var runner pipeline.Runner
	if cfg.Pipeline.Simulated {
		logger.Info("pipeline simulation enabled, no external binary will run")
		runner = pipeline.NewSimRunner(500 * time.Millisecond)
	} else {
		runner = pipeline.NewCommandRunner(cfg.Pipeline.Binary, pipelineDefaults(cfg.Defaults), logger)
	}

	registry := runs.NewRegistry(cfg.Runs.MaxConcurrent)
	broadcaster := runs.NewBroadcaster(logger)
	svc := runs.NewService(ctx, logger, registry, broadcaster, runner, history, progress.NewNormalizer(rules))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", httpserver.Healthz("studio"))
	mux.HandleFunc("GET /readyz", httpserver.ReadyzWithChecks("studio", httpserver.ReadinessCheck{
		Name:  "data_dir",
		Check: dataDirWritable(cfg.Storage.DataDir),
	}))

	api := newStudioAPI(logger, svc, presets, cfg.Defaults)
	api.register(mux)
	if cfg.HTTP.StaticDir != "" {
		registerStatic(mux, cfg.HTTP.StaticDir)
	}

	serverCfg := httpserver.Config{
		Service:         "studio",
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}
	return httpserver.Run(ctx, logger, serverCfg, httpserver.Wrap(logger, "studio", mux))
}

// dataDirWritable probes that the state directory accepts writes, which
// is what run completion needs.
func dataDirWritable(dir string) func(context.Context) error {
	return func(context.Context) error {
		f, err := os.CreateTemp(dir, ".readyz-*")
		if err != nil {
			return err
		}
		f.Close()
		return os.Remove(f.Name())
	}
}

// registerStatic serves the bundled web UI. Asset requests map straight
// into the static directory and the root path returns the shell page.
func registerStatic(mux *http.ServeMux, dir string) {
	fs := http.FileServer(http.Dir(dir))
	mux.Handle("GET /assets/", fs)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}

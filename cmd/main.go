package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/okian/rota/internal/adapters/database/postgres"
	_ "github.com/okian/rota/internal/adapters/database/sqlite"
	"github.com/okian/rota/internal/config"
	"github.com/okian/rota/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	// Go and process collectors duplicate the system gauges we publish.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var demo bool

	root := &cobra.Command{
		Use:   "rota",
		Short: "Task matching and fair-rotation assignment engine",
		Long: `rota assigns open tasks to verified operators. Candidates are scored by
how much a task stretches them, and the winner is drawn from the top of the
ranking so newer operators keep getting work.

Run without a subcommand to start the HTTP server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), demo)
		},
	}
	root.Flags().BoolVar(&demo, "demo", false, "seed the store with a synthetic marketplace")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newSimulateCmd())
	return root
}

// bootstrap loads configuration and initializes the global logger from it.
func bootstrap(ctx context.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't available yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return nil, nil, err
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return nil, nil, err
	}
	l := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		l.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, l, nil
}

func syncLogger() {
	if err := logger.Sync(); err != nil {
		os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
	}
}

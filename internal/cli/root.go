// Package cli implements the scanforge command-line interface: start,
// status, report, and version subcommands over a shared scheduler and
// persistence backend. A running scan also serves its own Prometheus
// metrics endpoint for the duration of the job.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/store"
	"github.com/scanforge/scanforge/internal/store/postgresstore"
	"github.com/scanforge/scanforge/internal/store/sqlitestore"
	"github.com/scanforge/scanforge/internal/version"
)

var (
	cfgFile string
	cfg     *config.Config
	v       = viper.New()

	rootCmd = &cobra.Command{
		Use:   "scanforge",
		Short: "scanforge orchestrates multi-tool penetration-test scans as a growing task graph",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			loaded, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded

			var level slog.Level
			if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("driver", "sqlite", "persistence backend: sqlite or postgres")
	rootCmd.PersistentFlags().String("dsn", "scanforge.db", "data source name for the chosen driver")
	rootCmd.PersistentFlags().Int("max-parallel-tasks", 5, "maximum concurrently running tasks per job")
	rootCmd.PersistentFlags().String("metrics-addr", ":9090", "address the metrics server listens on")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	bind(rootCmd, "driver", "driver")
	bind(rootCmd, "dsn", "dsn")
	bind(rootCmd, "max-parallel-tasks", "max_parallel_tasks")
	bind(rootCmd, "metrics-addr", "metrics_addr")
	bind(rootCmd, "log-level", "log_level")

	rootCmd.AddCommand(startCmd, statusCmd, reportCmd, versionCmd)
}

func bind(cmd *cobra.Command, flag, key string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openGateway opens the configured persistence backend and ensures its schema exists.
func openGateway(ctx context.Context, driver, dsn string) (store.Gateway, error) {
	var gw store.Gateway
	var err error
	switch driver {
	case "postgres":
		gw, err = postgresstore.Open(dsn)
	default:
		gw, err = sqlitestore.Open(dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", driver, err)
	}
	if err := gw.EnsureSchema(ctx); err != nil {
		_ = gw.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return gw, nil
}

var versionFull bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the scanforge version",
	Run: func(cmd *cobra.Command, args []string) {
		if versionFull {
			fmt.Println(version.StringFull())
			return
		}
		fmt.Println(version.String())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "include commit, branch, and build time")
}

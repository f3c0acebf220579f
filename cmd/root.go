package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/jgd-go/internal/config"
	"github.com/wegman-software/jgd-go/internal/grid"
	"github.com/wegman-software/jgd-go/internal/gridfile"
	"github.com/wegman-software/jgd-go/internal/logger"
	"github.com/wegman-software/jgd-go/internal/proj"
)

var (
	cfg        = config.DefaultConfig()
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "jgd-go",
	Short: "Convert coordinates between Tokyo Datum, JGD2000 and JGD2011",
	Long: `jgd-go converts latitude/longitude between the Japanese geodetic datums
using the GSI correction grids.

  Tokyo (EPSG:4301) --TKY2JGD--> JGD2000 (EPSG:4612) --PatchJGD--> JGD2011 (EPSG:6668)

Grids are read from GSI .par files or from files built with "jgd-go compile".
Settings come from defaults, then --config (YAML), then .env and JGD_*
environment variables, then command line flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadSettings(cmd.Flags()); err != nil {
			return err
		}
		logger.Init(logger.Options{Debug: cfg.Verbose, File: cfg.LogFile, Stderr: true})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with JGD_* variables (ignored if missing)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval, "Interval for system metrics logging during batch runs (0 disables)")

	// Grid flags
	rootCmd.PersistentFlags().StringVar(&cfg.TKY2JGDPath, "tky2jgd", cfg.TKY2JGDPath, "TKY2JGD grid (.par or compiled)")
	rootCmd.PersistentFlags().StringVar(&cfg.PatchJGDPath, "patchjgd", cfg.PatchJGDPath, "PatchJGD touhokutaiheiyouoki2011 grid (.par or compiled)")
	rootCmd.PersistentFlags().BoolVar(&cfg.StrictGrid, "strict", cfg.StrictGrid, "Reject grids with duplicate mesh codes")
	rootCmd.PersistentFlags().Float64Var(&cfg.InverseTolerance, "tolerance", cfg.InverseTolerance, "Inverse transform convergence threshold in arc-seconds")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, "Inverse transform iteration limit")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Number of parallel workers")

	// Database flags (persistent so they're available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
	rootCmd.PersistentFlags().StringVar(&cfg.DBTable, "db-table", cfg.DBTable, "PostgreSQL table for batch output")
}

// loadSettings overlays the config file and environment on cfg, then
// re-applies flags given on the command line so they take precedence.
func loadSettings(flags *pflag.FlagSet) error {
	changed := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return err
		}
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return err
	}

	for name, value := range changed {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("invalid --%s: %w", name, err)
		}
	}
	return nil
}

// loadChain loads the grids needed between from and to and builds the
// transform chain. Grids whose steps are not on the path are not read.
func loadChain(ctx context.Context, from, to proj.Datum) (*proj.Chain, error) {
	var opts []grid.Option
	if cfg.StrictGrid {
		opts = append(opts, grid.WithStrict())
	}

	var tky2jgd, patchjgd *grid.Grid
	paths := map[proj.Datum]struct {
		path string
		dst  **grid.Grid
	}{
		proj.Tokyo:   {cfg.TKY2JGDPath, &tky2jgd},
		proj.JGD2000: {cfg.PatchJGDPath, &patchjgd},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, step := range proj.NewChain(nil, nil).Path(from, to) {
		src := paths[min(step.From, step.To)]
		if src.path == "" {
			continue
		}
		g.Go(func() error {
			loaded, err := gridfile.Load(gctx, src.path, opts...)
			if err != nil {
				return err
			}
			*src.dst = loaded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return proj.NewChain(tky2jgd, patchjgd,
		proj.WithTolerance(cfg.InverseTolerance),
		proj.WithMaxIterations(cfg.MaxIterations),
	), nil
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}

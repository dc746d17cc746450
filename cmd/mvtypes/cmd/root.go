package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jengzang/mvtypes-go/internal/config"
	"github.com/jengzang/mvtypes-go/internal/logging"
	"github.com/jengzang/mvtypes-go/internal/service"
)

var (
	v      = config.New()
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mvtypes PATH OUTPUT",
	Short: "Classify the movement types of a GPS trace",
	Long: `mvtypes reads a CSV trace with id, lat, lng, alt and time columns, splits it
into clusters at time gaps, drops stuck fixes, estimates a speed for every
interior fix and bins the speeds at the valleys of their density.

The annotated trace is written to OUTPUT with cluster, velocity and mvtypes
columns appended. An OUTPUT ending in .db, .sqlite or .sqlite3 is written as
a SQLite table instead.`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(v); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.LogLevel, cfg.LogFormat); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := service.NewClassifyService(cfg.Options(), nil, cfg.DBTable, logger)
		report, err := svc.ClassifyFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d fixes, %d clusters, %d removed, %d degenerate\n",
			report.Fixes, len(report.Clusters), report.Removed, report.Degenerate)
		fmt.Fprintf(cmd.OutOrStdout(), "boundaries (km/h): %v\n", report.Boundaries)
		for _, c := range report.Classes {
			fmt.Fprintf(cmd.OutOrStdout(), "  mvtype %d: %d fixes, mean %.1f km/h\n", c.Label, c.Count, c.MeanSpeed)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Float64("threshold", v.GetFloat64("threshold"), "minutes between fixes that start a new cluster")
	flags.Int("inepsg", v.GetInt("in_epsg"), "EPSG code of the input coordinates")
	flags.Int("outepsg", v.GetInt("out_epsg"), "EPSG code of the planar system speeds are measured in")
	flags.Int("classify-num", v.GetInt("classify_num"), "maximum number of class boundaries")
	flags.Int("bootstrap", v.GetInt("bootstrap"), "bootstrap resamples for the density confidence band, 0 selects 1000")
	flags.Uint64("seed", v.GetUint64("seed"), "seed of the bootstrap resampler")
	flags.String("table", v.GetString("db_table"), "table name for SQLite output")
	flags.String("log-level", v.GetString("log_level"), "log level: debug, info, warn or error")

	bind("threshold", "threshold")
	bind("inepsg", "in_epsg")
	bind("outepsg", "out_epsg")
	bind("classify-num", "classify_num")
	bind("bootstrap", "bootstrap")
	bind("seed", "seed")
	bind("table", "db_table")
	bind("log-level", "log_level")

	rootCmd.AddCommand(gpx2csvCmd, serveCmd, tokenCmd)
}

// bind lets a persistent flag override the config key
func bind(name, key string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

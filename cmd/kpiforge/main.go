package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kpiforge/kpiforge/internal/config"
	"github.com/kpiforge/kpiforge/internal/domain/measure"
	"github.com/kpiforge/kpiforge/internal/domain/roster"
	"github.com/kpiforge/kpiforge/internal/loader"
	"github.com/kpiforge/kpiforge/internal/platform/telemetry"
	"github.com/kpiforge/kpiforge/internal/scenario"
	"github.com/kpiforge/kpiforge/internal/server"
	"github.com/kpiforge/kpiforge/internal/sink"
	"github.com/kpiforge/kpiforge/internal/synth"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kpiforge",
		Short: "Synthetic healthcare provider KPI dataset generator",
	}

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(measuresCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a provider KPI dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("seed") {
				cfg.Seed, _ = flags.GetInt64("seed")
			}
			if flags.Changed("weeks") {
				cfg.Weeks, _ = flags.GetInt("weeks")
			}
			if flags.Changed("scenario") {
				cfg.ScenarioPath, _ = flags.GetString("scenario")
			}
			if flags.Changed("out") {
				cfg.OutPath, _ = flags.GetString("out")
			}
			if flags.Changed("format") {
				cfg.Format, _ = flags.GetString("format")
			}
			if flags.Changed("compress") {
				cfg.Compress, _ = flags.GetBool("compress")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sc, err := resolveScenario(cfg, flags.Changed("weeks"))
			if err != nil {
				return err
			}
			if flags.Changed("reference-date") {
				sc.ReferenceDate, _ = flags.GetString("reference-date")
				if err := sc.Validate(); err != nil {
					return err
				}
			}

			ds, err := synth.New(sc).Generate()
			if err != nil {
				return err
			}

			out := outPathFor(cfg.OutPath, cfg.Format, cfg.Compress)
			snk, err := buildSink(cfg, out)
			if err != nil {
				return err
			}

			ctx := context.Background()
			if err := snk.Write(ctx, ds); err != nil {
				return err
			}

			if cfg.Format == "postgres" {
				fmt.Printf("Generated %d rows (seed %d) into Postgres table %s.\n",
					ds.Summary.Rows, ds.Seed, sink.KPITable)
				return nil
			}
			fmt.Printf("Generated %d rows (seed %d) in %s.\n", ds.Summary.Rows, ds.Seed, out)

			if cfg.S3Bucket != "" {
				key, _ := flags.GetString("s3-key")
				if key == "" {
					key = filepath.Base(out)
				}
				uploader, err := sink.NewS3Uploader(ctx, cfg.S3Bucket, sink.S3Config{
					Region:       cfg.S3Region,
					Endpoint:     cfg.S3Endpoint,
					UsePathStyle: cfg.S3PathStyle,
				})
				if err != nil {
					return err
				}
				if err := uploader.Upload(ctx, out, key); err != nil {
					return err
				}
				fmt.Printf("Uploaded %s to s3://%s/%s.\n", out, cfg.S3Bucket, key)
			}
			return nil
		},
	}

	cmd.Flags().Int64("seed", 0, "Random seed (0 picks a time-based seed)")
	cmd.Flags().Int("weeks", scenario.DefaultWeeks, "Weeks of history per provider/measure pair")
	cmd.Flags().String("reference-date", "", "Week-ending date of the final week (YYYY-MM-DD, default today)")
	cmd.Flags().String("scenario", "", "Path to a scenario YAML file")
	cmd.Flags().String("out", sink.DefaultCSVName, "Output path")
	cmd.Flags().String("format", "csv", "Output format: csv, ndjson, parquet, sqlite, postgres")
	cmd.Flags().Bool("compress", false, "Snappy-compress ndjson output")
	cmd.Flags().String("s3-key", "", "Object key for the S3 upload (default: output file name)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scenario.yaml]",
		Short: "Validate a scenario file without generating",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				path = cfg.ScenarioPath
			}
			if path == "" {
				return fmt.Errorf("no scenario file given; pass a path or set KPIFORGE_SCENARIO_PATH")
			}

			sc, err := scenario.Load(path)
			if err != nil {
				return err
			}

			fmt.Printf("Scenario %q is valid: %d clinics, %d providers, %d measures, %d weeks (%d rows).\n",
				sc.Name, len(sc.Clinics), roster.ProviderCount(sc.Clinics),
				len(sc.Measures), sc.Weeks, sc.ExpectedRows())
			return nil
		},
	}
}

func measuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "measures",
		Short: "List the builtin measure catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MEASURE\tDIRECTION\tBENCHMARK\tTREND\tPANEL")
			for _, m := range measure.BuiltinMeasures {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%d\n",
					m.Name, m.Direction, m.Benchmark, m.Trend, m.BasePanel)
			}
			return w.Flush()
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dataset generation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <export.csv>",
		Short: "Bulk-load a CSV export into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			url, _ := cmd.Flags().GetString("database-url")
			if url == "" {
				url = cfg.DatabaseURL
			}
			if url == "" {
				return fmt.Errorf("no database url given; pass --database-url or set KPIFORGE_DATABASE_URL")
			}

			n, err := loader.LoadPostgres(context.Background(), args[0], url)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d rows from %s into %s.\n", n, args[0], sink.KPITable)
			return nil
		},
	}
	cmd.Flags().String("database-url", "", "Postgres connection string (overrides KPIFORGE_DATABASE_URL)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kpiforge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("kpiforge", version)
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	sc, err := resolveScenario(cfg, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve scenario")
	}

	metrics := telemetry.New()
	srv := server.New(cfg, logger, metrics, sc)
	e := srv.Router()

	// Scenario hot reload
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.ScenarioPath != "" {
		go func() {
			if err := scenario.Watch(watchCtx, logger, cfg.ScenarioPath, srv.SetScenario); err != nil {
				logger.Error().Err(err).Msg("scenario watcher stopped")
			}
		}()
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("scenario", sc.Name).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// resolveScenario builds the generation plan: the scenario file when one is
// configured, the builtin scenario otherwise. Config seed and weeks layer on
// top, except that a scenario file's weeks stands unless the flag was given
// explicitly.
func resolveScenario(cfg *config.Config, weeksSet bool) (*scenario.Scenario, error) {
	var sc *scenario.Scenario
	if cfg.ScenarioPath != "" {
		s, err := scenario.Load(cfg.ScenarioPath)
		if err != nil {
			return nil, err
		}
		sc = s
		if weeksSet {
			sc.Weeks = cfg.Weeks
		}
	} else {
		sc = scenario.Default()
		sc.Weeks = cfg.Weeks
	}
	if cfg.Seed != 0 {
		sc.Seed = cfg.Seed
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// outPathFor adjusts the default output name to match the chosen format.
// Caller-supplied paths are kept as-is; postgres writes no local file.
func outPathFor(path, format string, compress bool) string {
	if format == "postgres" {
		return ""
	}
	if path != sink.DefaultCSVName {
		return path
	}
	base := strings.TrimSuffix(path, ".csv")
	switch format {
	case "ndjson":
		if compress {
			return base + ".ndjson.sz"
		}
		return base + ".ndjson"
	case "parquet":
		return base + ".parquet"
	case "sqlite":
		return base + ".db"
	}
	return path
}

// buildSink maps the configured format to the sink that writes it. out is
// the resolved output path; the postgres sink ignores it.
func buildSink(cfg *config.Config, out string) (sink.Sink, error) {
	switch cfg.Format {
	case "csv":
		return sink.CSVFile{Path: out}, nil
	case "ndjson":
		return sink.NDJSONFile{Path: out, Compress: cfg.Compress}, nil
	case "parquet":
		return sink.ParquetFile{Path: out}, nil
	case "sqlite":
		return sink.SQLiteFile{Path: out}, nil
	case "postgres":
		return sink.Postgres{URL: cfg.DatabaseURL}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

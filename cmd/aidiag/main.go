package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/aidiag/internal/model"
	"github.com/pavelanni/aidiag/internal/scoring"
	"github.com/pavelanni/aidiag/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "aidiag",
		Short:   "AI capability self-assessment and diagnosis service",
		Version: version,
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), scoreCmd(), catalogCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `aidiag --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export locally stored diagnoses as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "aidiag.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("AIDIAG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("aidiag")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/aidiag")
	v.AddConfigPath("/etc/aidiag")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadCatalog resolves a catalog flag: empty selects the scheme's own
// catalog, a value ending in .json is read from disk, anything else names
// an embedded catalog.
func loadCatalog(value string, scheme scoring.Scheme) (*scoring.Catalog, error) {
	switch {
	case value == "":
		return scoring.LoadCatalog(scheme.CatalogName)
	case strings.HasSuffix(value, ".json"):
		return scoring.LoadCatalogFile(value)
	default:
		return scoring.LoadCatalog(value)
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAllDiagnoses(context.Background())
	if err != nil {
		return fmt.Errorf("export diagnoses: %w", err)
	}
	slog.Info("exporting diagnoses", "count", export.Count, "source", export.Source)
	return writeJSONOutput(v.GetString("output"), export)
}

func writeJSONOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

// checkInstance records the scoring setup on first start and warns when
// the database was written under a different one.
func checkInstance(ctx context.Context, db *store.Store, scheme scoring.Scheme, catalog *scoring.Catalog) error {
	info, err := db.GetInstanceInfo(ctx)
	if err != nil {
		return err
	}
	current := model.InstanceInfo{
		Scheme:         scheme.Name,
		CatalogName:    catalog.Name(),
		CatalogVersion: catalog.Version(),
		AppVersion:     version,
	}
	if info.Scheme == "" {
		return db.SetInstanceInfo(ctx, current)
	}
	if info.Scheme != current.Scheme || info.CatalogName != current.CatalogName {
		slog.Warn("database was written with a different scoring setup; stored scores are not comparable",
			"stored_scheme", info.Scheme, "stored_catalog", info.CatalogName,
			"scheme", current.Scheme, "catalog", current.CatalogName)
	}
	return nil
}

// Command recovery runs the photo recovery pipeline: scan ingests
// recovered files into the database, run executes the classification
// and deduplication stages, status reports the resulting counts.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/benbc/recovery"
	"github.com/benbc/recovery/store"
)

var (
	dbPath     string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Deduplicate and classify a recovered photo collection",
	Long: `recovery sorts a large, disordered collection of recovered image
files into keep / reject / needs-separate-handling, using content
checksums, perceptual-hash similarity clustering, and ordered rules.`,
	SilenceUsage: true,
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "photos.db", "path to the pipeline database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

// loadConfig builds the engine config from the --config file, or
// defaults when none is given.
func loadConfig() (*recovery.Config, error) {
	if configPath == "" {
		return &recovery.Config{}, nil
	}
	cfg, err := recovery.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the pipeline database named by --db.
func openStore() (*store.DB, error) {
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

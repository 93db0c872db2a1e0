// Command deckxlate submits slide-deck translation jobs to an in-process
// internal/job.Manager and reports on them: one process per invocation,
// no daemon, no HTTP surface. A job's live state is mirrored to a JSON
// record file under --state-dir so status/cancel/result/glossary issued
// from another terminal while submit is still running can see it.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "deckxlate/internal/config"
)

var (
	flagConfigPath string
	flagStateDir   string
)

var rootCmd = &cobra.Command{
	Use:   "deckxlate",
	Short: "Translate PowerPoint decks while preserving run-level formatting",
	Long: `deckxlate extracts the translatable text of a .pptx deck, translates it
through a pluggable backend, re-splits the result across the original
run formatting, and writes a new deck byte-identical to the original
everywhere it didn't change.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "JSON config file (default: ./deckxlate.json if present)")
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", ".deckxlate/jobs", "directory job status records are written to")

	rootCmd.AddCommand(submitCmd, statusCmd, cancelCmd, resultCmd, glossaryCmd, initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEffectiveConfig runs the Defaults -> JSON -> env cascade. CLI-flag
// overlays are applied by each subcommand on top of the result.
func loadEffectiveConfig() (cfgpkg.Config, error) {
	_ = loadDotEnv(".env")

	cfg := cfgpkg.Defaults()

	path := flagConfigPath
	if path == "" {
		if s := os.Getenv("DECKXLATE_CONFIG_FILE"); s != "" {
			path = s
		} else if _, err := os.Stat("deckxlate.json"); err == nil {
			path = "deckxlate.json"
		}
	}
	if path != "" {
		loaded, err := cfgpkg.LoadJSON(path, nil)
		if err != nil {
			return cfgpkg.Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = cfgpkg.Merge(cfg, loaded)
	}

	env, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfgpkg.Config{}, fmt.Errorf("env overlay: %w", err)
	}
	cfg = cfgpkg.Merge(cfg, env)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return cfg, nil
}

func ensureStateDir() (string, error) {
	dir := flagStateDir
	if dir == "" {
		dir = ".deckxlate/jobs"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

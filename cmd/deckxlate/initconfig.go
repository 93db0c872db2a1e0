package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "deckxlate/internal/config"
)

var initConfigForce bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config [dir]",
	Short: "Write a runnable default deckxlate.json and .env template",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("init-config: %w", err)
		}

		cfg := cfgpkg.DefaultTemplateConfig()
		cfgPath := filepath.Join(dir, "deckxlate.json")
		if err := writeTemplateFile(cfgPath, cfg, initConfigForce); err != nil {
			return fmt.Errorf("init-config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgPath)

		envPath := filepath.Join(dir, ".env")
		if err := writeDotEnvTemplate(envPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "note: .env template not written: %v\n", err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", envPath)
		}
		return nil
	},
}

func init() {
	initConfigCmd.Flags().BoolVar(&initConfigForce, "force", false, "overwrite an existing deckxlate.json")
}

func writeTemplateFile(path string, cfg cfgpkg.Config, force bool) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	_, err = f.Write([]byte("\n"))
	return err
}

// writeDotEnvTemplate leaves an existing .env untouched; it only fills
// in a starting point for a fresh directory.
func writeDotEnvTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	var b strings.Builder
	b.WriteString("# deckxlate .env template\n")
	b.WriteString("# precedence: CLI flags > env/.env > deckxlate.json\n\n")
	b.WriteString("# config source\n")
	b.WriteString("DECKXLATE_CONFIG_FILE=\n\n")
	b.WriteString("# run overrides\n")
	b.WriteString("DECKXLATE_CONCURRENCY=\n")
	b.WriteString("DECKXLATE_MAX_TOKENS=\n")
	b.WriteString("DECKXLATE_MAX_RETRIES=\n")
	b.WriteString("DECKXLATE_SOURCE_LANG=\n")
	b.WriteString("DECKXLATE_TARGET_LANG=\n")
	b.WriteString("DECKXLATE_BACKEND=\n\n")
	b.WriteString("# component selection\n")
	b.WriteString("DECKXLATE_COMPONENTS_ALIGNER=\n")
	b.WriteString("DECKXLATE_COMPONENTS_MERGER=\n")
	b.WriteString("DECKXLATE_COMPONENTS_WRITER=\n\n")
	b.WriteString("# provider credentials, e.g. for a provider named \"openai\"\n")
	b.WriteString("DECKXLATE_PROVIDER__openai__CLIENT=\n")
	b.WriteString("DECKXLATE_PROVIDER__openai__OPTIONS_JSON=\n")

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

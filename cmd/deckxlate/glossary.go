package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"deckxlate/pkg/contract"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary <job-id>",
	Short: "Print the glossary entries a job loaded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stateDir, err := ensureStateDir()
		if err != nil {
			return err
		}
		rec, err := loadRecord(stateDir, args[0])
		if err != nil {
			return err
		}
		entries := rec.Glossary
		if entries == nil {
			entries = []contract.GlossaryEntry{}
		}
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

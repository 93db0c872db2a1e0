package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Print a job's last known status",
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
		b, err := json.MarshalIndent(rec.Status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

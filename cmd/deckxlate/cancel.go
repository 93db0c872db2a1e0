package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request that a running job stop at its next checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stateDir, err := ensureStateDir()
		if err != nil {
			return err
		}
		id := args[0]
		rec, err := loadRecord(stateDir, id)
		if err != nil {
			return err
		}
		if rec.PID == 0 || isTerminalState(rec.Status.State) {
			fmt.Fprintf(cmd.OutOrStdout(), "job %s: already %s\n", id, rec.Status.State)
			return nil
		}
		if err := signalCancel(rec.PID); err != nil {
			return fmt.Errorf("job %s: signal pid %d: %w", id, rec.PID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "job %s: cancel requested\n", id)
		return nil
	},
}

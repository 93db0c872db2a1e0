package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var resultTimeout time.Duration

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Wait for a job to reach a terminal state, then print its status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stateDir, err := ensureStateDir()
		if err != nil {
			return err
		}
		id := args[0]

		deadline := time.Now().Add(resultTimeout)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		for {
			rec, err := loadRecord(stateDir, id)
			if err != nil {
				return err
			}
			if isTerminalState(rec.Status.State) {
				b, err := json.MarshalIndent(rec.Status, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			if resultTimeout > 0 && time.Now().After(deadline) {
				return fmt.Errorf("job %s: timed out after %s waiting for a terminal state", id, resultTimeout)
			}
			<-ticker.C
		}
	},
}

func init() {
	resultCmd.Flags().DurationVar(&resultTimeout, "timeout", 0, "give up after this long (0 waits indefinitely)")
}

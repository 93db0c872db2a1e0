package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"deckxlate/pkg/contract"
)

// record is the on-disk mirror of one job's state, letting status,
// cancel, result and glossary run as separate CLI invocations against a
// submit that is still in flight in another terminal.
type record struct {
	Status   contract.JobStatus       `json:"status"`
	Glossary []contract.GlossaryEntry `json:"glossary,omitempty"`
	PID      int                      `json:"pid,omitempty"`
}

func recordPath(stateDir, id string) string {
	return filepath.Join(stateDir, id+".json")
}

// saveRecord writes r atomically: a temp file plus rename, so a reader
// never observes a half-written record.
func saveRecord(stateDir string, r record) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	dest := recordPath(stateDir, r.Status.ID)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

func loadRecord(stateDir, id string) (record, error) {
	var r record
	b, err := os.ReadFile(recordPath(stateDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return r, fmt.Errorf("job %s: no record in %s", id, stateDir)
		}
		return r, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("job %s: corrupt record: %w", id, err)
	}
	return r, nil
}

func isTerminalState(s contract.JobState) bool {
	switch s {
	case contract.JobCompleted, contract.JobFailed, contract.JobCancelled:
		return true
	default:
		return false
	}
}

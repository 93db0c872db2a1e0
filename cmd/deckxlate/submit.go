package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"deckxlate/internal/config"
	"deckxlate/internal/diag"
	"deckxlate/internal/job"
	"deckxlate/pkg/contract"
	fswriter "deckxlate/plugins/writer/filesystem"
)

var (
	submitInput       string
	submitOutput      string
	submitSourceLang  string
	submitTargetLang  string
	submitBackend     string
	submitAligner     string
	submitGlossary    string
	submitConcurrency int
	submitMaxTokens   int
	submitMaxRetries  int
	submitCharts      bool
	submitQuiet       bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Translate one deck and wait for the result",
	RunE:  runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitInput, "input", "", "source .pptx path (required)")
	f.StringVar(&submitOutput, "output", "", "artifact ID the configured writer stores the result under (required)")
	f.StringVar(&submitSourceLang, "source-lang", "", "override source_lang")
	f.StringVar(&submitTargetLang, "target-lang", "", "override target_lang")
	f.StringVar(&submitBackend, "backend", "", "override the provider used for translation")
	f.StringVar(&submitAligner, "aligner", "", "override the run aligner (semantic|llmmap)")
	f.StringVar(&submitGlossary, "glossary", "", "glossary file path")
	f.IntVar(&submitConcurrency, "concurrency", 0, "override concurrency")
	f.IntVar(&submitMaxTokens, "max-tokens", 0, "override max_tokens")
	f.IntVar(&submitMaxRetries, "max-retries", -1, "override max_retries (0 disables retry)")
	f.BoolVar(&submitCharts, "translate-charts", false, "also translate chart/series labels")
	f.BoolVar(&submitQuiet, "quiet", false, "suppress terminal progress output")
	_ = submitCmd.MarkFlagRequired("input")
	_ = submitCmd.MarkFlagRequired("output")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}
	if submitMaxRetries >= 0 {
		cfg.MaxRetries = submitMaxRetries
	}
	stateDir, err := ensureStateDir()
	if err != nil {
		return err
	}

	logger := diag.NewLogger(genCorrID(), cfg.Logging.Level)
	if !submitQuiet {
		diag.SetTerminal(diag.NewTerminal(os.Stderr, true))
		defer diag.SetTerminal(nil)
	}

	sidecar, err := sidecarWriterFor(cfg)
	if err != nil {
		return err
	}
	mgr := job.NewManager(cfg, logger, sidecar)

	id, err := mgr.Submit(contract.JobOptions{
		InputPath:            submitInput,
		OutputPath:           submitOutput,
		SourceLang:           submitSourceLang,
		TargetLang:           submitTargetLang,
		Backend:              submitBackend,
		Aligner:              submitAligner,
		GlossaryPath:         submitGlossary,
		Concurrency:          submitConcurrency,
		MaxTokens:            submitMaxTokens,
		MaxRetries:           submitMaxRetries,
		TranslateChartLabels: submitCharts,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	if t := diag.GetTerminal(); t != nil {
		t.JobStart(id)
	}
	_ = saveRecord(stateDir, record{Status: contract.JobStatus{ID: id, State: contract.JobPending}, PID: os.Getpid()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = mgr.Cancel(id)
	}()

	stopPoll := make(chan struct{})
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopPoll:
				return
			case <-ticker.C:
				st, err := mgr.Status(id)
				if err != nil {
					continue
				}
				if t := diag.GetTerminal(); t != nil {
					t.Milestone(st.Milestone)
					t.Progress(st.ParagraphsDone, st.ParagraphsTotal, st.ErrorsCount)
				}
				_ = saveRecord(stateDir, record{Status: st, PID: os.Getpid()})
			}
		}
	}()

	status, resultErr := mgr.Result(context.Background(), id)
	close(stopPoll)
	<-pollDone

	entries, _ := mgr.GlossaryEntries(id)
	_ = saveRecord(stateDir, record{Status: status, Glossary: entries})

	if t := diag.GetTerminal(); t != nil {
		t.JobFinish(status.State, status.FinishedAt.Sub(status.StartedAt))
	}

	b, _ := json.MarshalIndent(status, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	if resultErr != nil {
		return resultErr
	}
	if status.State != contract.JobCompleted {
		return fmt.Errorf("job %s: %s", status.State, status.Err)
	}
	return nil
}

// sidecarWriterFor builds the writer a job's JSONL artifact trail flows
// through. Only the "fs" writer is understood here; other writers leave
// the sidecar unset, and the merged deck is still produced normally.
func sidecarWriterFor(cfg config.Config) (contract.Writer, error) {
	if cfg.Components.Writer != "fs" {
		return nil, nil
	}
	var opts fswriter.Options
	if len(cfg.Options.Writer) > 0 {
		if err := json.Unmarshal(cfg.Options.Writer, &opts); err != nil {
			return nil, fmt.Errorf("writer options: %w", err)
		}
	}
	w, err := fswriter.New(&opts)
	if err != nil {
		return nil, fmt.Errorf("writer init: %w", err)
	}
	return w, nil
}

// Package job implements the in-process job manager (C9's external
// surface): Submit/Status/Cancel/Result/GlossaryEntries over an
// async-run pipeline, state machine pending/running/completed/failed/
// cancelled. There is no persistence layer; a process restart loses
// in-flight and finished job records, same scope as a one-shot CLI
// tool that happens to run several jobs concurrently.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"deckxlate/internal/config"
	"deckxlate/internal/diag"
	"deckxlate/internal/pipeline"
	"deckxlate/pkg/contract"
)

// ErrNotFound is returned by Status/Cancel/Result/GlossaryEntries for an
// unknown job ID.
var ErrNotFound = errors.New("job: not found")

// entry is a job's live state plus the handle needed to cancel it.
type entry struct {
	mu       sync.Mutex
	status   contract.JobStatus
	cancel   context.CancelFunc
	done     chan struct{}
	glossary contract.Glossary
}

// Manager owns every job submitted in this process's lifetime, running
// each through internal/config.Assemble and internal/pipeline.Run on
// its own goroutine.
type Manager struct {
	base    config.Config
	logger  *diag.Logger
	sidecar contract.Writer

	mu   sync.Mutex
	jobs map[string]*entry
	wg   sync.WaitGroup
}

// NewManager builds a Manager. base is the process-wide configuration
// cascade (Defaults/JSON/env/CLI already merged); sidecar, when non-nil,
// receives each job's JSONL artifact trail at "<job-id>.jsonl".
func NewManager(base config.Config, logger *diag.Logger, sidecar contract.Writer) *Manager {
	return &Manager{base: base, logger: logger, sidecar: sidecar, jobs: map[string]*entry{}}
}

// Submit validates opts against the process configuration, assigns a
// job ID, and starts the job asynchronously. It returns as soon as the
// job is queued, before any extraction or translation runs.
func (m *Manager) Submit(opts contract.JobOptions) (string, error) {
	if opts.InputPath == "" {
		return "", fmt.Errorf("%w: input_path required", contract.ErrInvalidInput)
	}
	if opts.OutputPath == "" {
		return "", fmt.Errorf("%w: output_path required", contract.ErrInvalidInput)
	}

	cfg := config.Merge(m.base, overrideFromJob(opts))
	if err := config.Validate(cfg); err != nil {
		return "", err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		status: contract.JobStatus{
			ID:          id,
			State:       contract.JobPending,
			Milestone:   contract.MilestoneQueued,
			SubmittedAt: time.Now(),
			OutputPath:  opts.OutputPath,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[id] = e
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx, id, e, cfg, opts)

	return id, nil
}

// Status returns the current snapshot of a job's progress.
func (m *Manager) Status(id string) (contract.JobStatus, error) {
	e, err := m.get(id)
	if err != nil {
		return contract.JobStatus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, nil
}

// Cancel requests that a running job stop at its next checkpoint. It is
// a no-op, not an error, on a job that has already finished.
func (m *Manager) Cancel(id string) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}
	e.cancel()
	return nil
}

// Result blocks until the job reaches a terminal state, then returns
// its final status. A context deadline on the caller's side bounds the
// wait; ctx.Err() is returned if it expires first.
func (m *Manager) Result(ctx context.Context, id string) (contract.JobStatus, error) {
	e, err := m.get(id)
	if err != nil {
		return contract.JobStatus{}, err
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return contract.JobStatus{}, ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, nil
}

// GlossaryEntries returns the glossary a running or finished job loaded,
// empty when the job was submitted without one.
func (m *Manager) GlossaryEntries(id string) ([]contract.GlossaryEntry, error) {
	e, err := m.get(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	g := e.glossary
	e.mu.Unlock()
	if g == nil {
		return nil, nil
	}
	return g.PhrasePairs(), nil
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

func (m *Manager) run(ctx context.Context, id string, e *entry, cfg config.Config, opts contract.JobOptions) {
	defer m.wg.Done()
	defer close(e.done)

	e.mu.Lock()
	e.status.State = contract.JobRunning
	e.status.StartedAt = time.Now()
	e.mu.Unlock()

	comp, set, _, _, err := config.Assemble(cfg, opts)
	if err != nil {
		m.finish(e, ctx, err)
		return
	}
	e.mu.Lock()
	e.glossary = comp.Glossary
	e.mu.Unlock()

	set.Sidecar = m.sidecar
	set.SidecarPath = id + ".jsonl"

	onProgress := func(ms contract.Milestone, done, total, errs int) {
		e.mu.Lock()
		e.status.Milestone = ms
		e.status.ParagraphsDone = done
		e.status.ParagraphsTotal = total
		e.status.ErrorsCount = errs
		e.mu.Unlock()
	}

	_, runErr := pipeline.Run(ctx, comp, set, m.logger, onProgress)
	m.finish(e, ctx, runErr)
}

func (m *Manager) finish(e *entry, ctx context.Context, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.FinishedAt = time.Now()
	switch {
	case err == nil:
		e.status.State = contract.JobCompleted
		e.status.Milestone = contract.MilestoneDone
		if m.sidecar != nil {
			e.status.ArtifactPath = e.status.ID + ".jsonl"
		}
	case ctx.Err() != nil:
		e.status.State = contract.JobCancelled
		e.status.Err = ctx.Err().Error()
	default:
		e.status.State = contract.JobFailed
		e.status.Err = err.Error()
	}
}

// overrideFromJob turns a Submit-time request into a Config overlay,
// the same shape config.Merge already applies for JSON/env/CLI layers.
func overrideFromJob(opts contract.JobOptions) config.Config {
	over := config.Config{
		SourceLang:           opts.SourceLang,
		TargetLang:           opts.TargetLang,
		GlossaryPath:         opts.GlossaryPath,
		Concurrency:          opts.Concurrency,
		MaxTokens:            opts.MaxTokens,
		MaxRetries:           -1,
		TranslateChartLabels: opts.TranslateChartLabels,
		Backend:              opts.Backend,
	}
	if opts.MaxRetries > 0 {
		over.MaxRetries = opts.MaxRetries
	}
	if opts.Aligner != "" {
		over.Components.Aligner = opts.Aligner
	}
	return over
}

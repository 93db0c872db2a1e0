// Package pipeline implements the orchestrator (C9): extraction, paragraph
// translation, run alignment, slide-context building, chart/table
// translation and merge/write, reporting progress through nine named
// milestones. A single layer owns concurrency and backpressure; every
// component it calls is a synchronous, non-concurrent unit.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"deckxlate/internal/charttable"
	"deckxlate/internal/diag"
	"deckxlate/internal/prompt"
	"deckxlate/internal/rate"
	"deckxlate/internal/slidecontext"
	"deckxlate/pkg/contract"
)

// Components aggregates every pluggable implementation a job needs.
type Components struct {
	Extractor contract.Extractor
	Glossary  contract.Glossary // nil when the job has no glossary
	Backend   contract.TranslationBackend
	Aligner   contract.Aligner
	Merger    contract.Merger
	Writer    contract.Writer
}

// Settings is the run-time-immutable per-job configuration.
type Settings struct {
	InputPath            string
	OutputPath           string
	SourceLang           string
	TargetLang           string
	Concurrency          int
	MaxTokens            int
	BytesPerToken        int
	MaxRetries           int
	TranslateChartLabels bool
	Gate                 rate.Gate
	GateKey              rate.LimitKey
	// Sidecar, when non-nil, receives one JSON line per translated
	// element, the job's crash-safe artifact trail, at SidecarPath.
	Sidecar     contract.Writer
	SidecarPath string
}

// sidecarRecord is one line of the job's JSONL artifact trail.
type sidecarRecord struct {
	Kind       string `json:"kind"`
	SlideIndex int    `json:"slide_index"`
	ShapeID    string `json:"shape_id"`
	Row        int    `json:"row,omitempty"`
	Col        int    `json:"col,omitempty"`
	LabelKey   string `json:"label_key,omitempty"`
	Text       string `json:"text"`
}

// ProgressFunc is invoked by Run as the job advances: on every milestone
// transition, and periodically while translating paragraphs/labels.
type ProgressFunc func(m contract.Milestone, done, total, errs int)

// Result summarizes one run.
type Result struct {
	ElementsTotal int
	ElementsDone  int
	ErrorsCount   int
}

// translated is the accumulator Run fills in and hands to the merger.
type translated struct {
	mu     sync.Mutex
	runs   map[contract.ElementID][]contract.Run
	labels map[contract.ElementID]string
	errs   int
}

func newTranslated() *translated {
	return &translated{runs: map[contract.ElementID][]contract.Run{}, labels: map[contract.ElementID]string{}}
}

// Run executes Extract → translate paragraphs/cells → align runs → build
// slide context → translate chart labels → merge → write.
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger, onProgress ProgressFunc) (Result, error) {
	if err := sanity(comp, set); err != nil {
		return Result{}, fmt.Errorf("sanity: %w", err)
	}
	if onProgress == nil {
		onProgress = func(contract.Milestone, int, int, int) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	onProgress(contract.MilestoneExtracting, 0, 0, 0)
	etimer := (*diag.Timer)(nil)
	if logger != nil {
		etimer = logger.Start("extractor", "extract")
	}
	deck, err := comp.Extractor.Extract(ctx, set.InputPath)
	if err != nil {
		if logger != nil {
			logger.Error("extractor", diag.Classify(err), "extract failed", nil)
			diag.IncOp("extractor", "extract", "error")
			diag.IncError("extractor", diag.Classify(err))
		}
		return Result{}, fmt.Errorf("%w: %v", contract.ErrDeckMalformed, err)
	}
	if etimer != nil {
		etimer.Finish("extract", int64(len(deck.Paragraphs)))
		diag.IncOp("extractor", "extract", "success")
	}

	onProgress(contract.MilestoneGlossaryLoaded, 0, 0, 0)

	units := collectUnits(deck)
	tr := newTranslated()

	onProgress(contract.MilestoneTranslatingParagraphs, 0, len(units), 0)
	if err := translateUnits(ctx, cancel, comp, set, logger, units, tr, onProgress); err != nil {
		return Result{ElementsTotal: len(units), ElementsDone: len(units), ErrorsCount: tr.errs}, err
	}

	onProgress(contract.MilestoneAligningRuns, len(units), len(units), tr.errs)

	onProgress(contract.MilestoneBuildingSlideContext, 0, 0, 0)
	ctxByslide := slidecontext.Build(deck, tr.runs, set.BytesPerToken)

	if set.TranslateChartLabels && len(deck.ChartLabels) > 0 {
		onProgress(contract.MilestoneTranslatingChartsTables, 0, len(deck.ChartLabels), tr.errs)
		if err := translateChartLabels(ctx, comp, set, logger, deck, ctxByslide, tr, onProgress); err != nil {
			return Result{ElementsTotal: len(units) + len(deck.ChartLabels), ElementsDone: len(units), ErrorsCount: tr.errs}, err
		}
	}

	onProgress(contract.MilestoneMerging, len(units), len(units), tr.errs)
	td := contract.TranslatedDeck{Paragraphs: map[contract.ElementID][]contract.Run{}, TableCells: map[contract.ElementID][]contract.Run{}, ChartLabels: tr.labels}
	for id, runs := range tr.runs {
		if id.Kind == contract.KindTableCell {
			td.TableCells[id] = runs
		} else {
			td.Paragraphs[id] = runs
		}
	}

	if set.Sidecar != nil && set.SidecarPath != "" {
		if err := writeSidecar(ctx, set, tr); err != nil && logger != nil {
			logger.Error("job", diag.Classify(err), "sidecar write failed", nil)
		}
	}
	mtimer := (*diag.Timer)(nil)
	if logger != nil {
		mtimer = logger.Start("merger", "merge")
	}
	rd, err := comp.Merger.Merge(ctx, set.InputPath, td)
	if err != nil {
		if logger != nil {
			logger.Error("merger", diag.Classify(err), "merge failed", nil)
			diag.IncOp("merger", "merge", "error")
		}
		return Result{}, fmt.Errorf("merger merge: %w", err)
	}
	if mtimer != nil {
		mtimer.Finish("merge", 0)
		diag.IncOp("merger", "merge", "success")
	}

	wtimer := (*diag.Timer)(nil)
	if logger != nil {
		wtimer = logger.Start("writer", "write")
	}
	if err := comp.Writer.Write(ctx, contract.ArtifactID(set.OutputPath), rd); err != nil {
		if logger != nil {
			logger.Error("writer", diag.Classify(err), "write failed", nil)
			diag.IncOp("writer", "write", "error")
		}
		return Result{}, fmt.Errorf("%w: %v", contract.ErrWriterIO, err)
	}
	if wtimer != nil {
		wtimer.Finish("write", 0)
		diag.IncOp("writer", "write", "success")
	}

	onProgress(contract.MilestoneDone, len(units), len(units), tr.errs)
	return Result{ElementsTotal: len(units) + len(deck.ChartLabels), ElementsDone: len(units) + len(deck.ChartLabels), ErrorsCount: tr.errs}, nil
}

// unit is one translatable text block: a paragraph, or a non-merge-anchor
// table cell paragraph.
type unit struct {
	id   contract.ElementID
	runs []contract.Run
	base contract.Formatting
}

func collectUnits(deck *contract.Deck) []unit {
	units := make([]unit, 0, len(deck.Paragraphs))
	for _, p := range deck.Paragraphs {
		units = append(units, unit{id: p.ID, runs: p.Runs, base: p.BaseFormat})
	}
	for _, c := range charttable.TranslatableCells(deck.TableCells) {
		for _, p := range c.Paragraphs {
			units = append(units, unit{id: p.ID, runs: p.Runs, base: p.BaseFormat})
		}
	}
	return units
}

// translateUnits runs the paragraph/cell hot loop through a bounded,
// hand-rolled channel+WaitGroup worker pool because it is the highest
// call volume stage.
func translateUnits(ctx context.Context, cancel context.CancelFunc, comp Components, set Settings, logger *diag.Logger, units []unit, tr *translated, onProgress ProgressFunc) error {
	if len(units) == 0 {
		return nil
	}
	nWorkers := set.Concurrency
	if nWorkers < 1 {
		nWorkers = 1
	}
	inCh := make(chan unit, nWorkers*2)
	type res struct {
		id   contract.ElementID
		runs []contract.Run
		err  error
	}
	outCh := make(chan res, nWorkers*2)

	var wg sync.WaitGroup
	wg.Add(nWorkers)
	for i := 0; i < nWorkers; i++ {
		go func() {
			defer wg.Done()
			for u := range inCh {
				runs, err := translateOne(ctx, comp, set, logger, u)
				outCh <- res{id: u.id, runs: runs, err: err}
			}
		}()
	}
	go func() {
		defer close(inCh)
		for _, u := range units {
			select {
			case <-ctx.Done():
				return
			case inCh <- u:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(outCh)
	}()

	var firstFatal error
	done := 0
	for r := range outCh {
		done++
		if r.err != nil {
			tr.mu.Lock()
			tr.errs++
			tr.mu.Unlock()
			if diag.IsFatal(r.err) && firstFatal == nil {
				firstFatal = r.err
				cancel()
			}
			if logger != nil {
				logger.ErrorWith("paragraph", diag.Classify(r.err), "translate failed", nil, r.id.ShapeID, "")
			}
			diag.IncOp("paragraph", "translate", "error")
			diag.IncError("paragraph", diag.Classify(r.err))
			// Record-level failure: the element passes through
			// untranslated rather than being dropped.
			tr.mu.Lock()
			tr.runs[r.id] = u0Runs(units, r.id)
			tr.mu.Unlock()
		} else {
			tr.mu.Lock()
			tr.runs[r.id] = r.runs
			tr.mu.Unlock()
			diag.IncOp("paragraph", "translate", "success")
		}
		onProgress(contract.MilestoneTranslatingParagraphs, done, len(units), tr.errs)
		if t := diag.GetTerminal(); t != nil {
			t.Progress(done, len(units), tr.errs)
		}
	}
	return firstFatal
}

func u0Runs(units []unit, id contract.ElementID) []contract.Run {
	for _, u := range units {
		if u.id == id {
			return u.runs
		}
	}
	return nil
}

func translateOne(ctx context.Context, comp Components, set Settings, logger *diag.Logger, u unit) ([]contract.Run, error) {
	source := concatRuns(u.runs)
	if source == "" {
		return u.runs, nil
	}
	var glossaryFragment string
	if comp.Glossary != nil {
		glossaryFragment = comp.Glossary.PromptFragment(source)
	}

	attempts := set.MaxRetries + 1
	var lastErr error
	var target string
	for attempt := 0; attempt < attempts; attempt++ {
		if set.Gate != nil {
			if err := set.Gate.Wait(ctx, rate.Ask{Key: set.GateKey, Requests: 1, Tokens: estimateTokens(source, set.BytesPerToken)}); err != nil {
				return nil, err
			}
		}
		ttimer := (*diag.Timer)(nil)
		if logger != nil {
			ttimer = logger.StartWith("backend", "translate", u.id.ShapeID, "")
		}
		resp, err := comp.Backend.Translate(ctx, contract.TranslateRequest{
			Text:             source,
			SourceLang:       set.SourceLang,
			TargetLang:       set.TargetLang,
			GlossaryFragment: glossaryFragment,
		})
		if err != nil {
			lastErr = err
			if attempt+1 < attempts && shouldRetryTranslate(err) {
				// Exponential backoff from 200ms, plus up to 50% random jitter.
				d := (200 * time.Millisecond) << attempt
				d += time.Duration(rand.Int63n(int64(d)/2 + 1))
				_ = sleepWithCtx(ctx, d)
				continue
			}
			break
		}
		if ttimer != nil {
			ttimer.Finish("translate", int64(len(resp.Text)))
		}
		target = resp.Text
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, lastErr
	}

	runs, err := comp.Aligner.Align(ctx, u.runs, target, u.base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrAlignmentDegenerate, err)
	}
	return runs, nil
}

func translateChartLabels(ctx context.Context, comp Components, set Settings, logger *diag.Logger, deck *contract.Deck, ctxByslide map[int]contract.SlideContext, tr *translated, onProgress ProgressFunc) error {
	sem := semaphore.NewWeighted(int64(maxInt(set.Concurrency, 1)))
	g, gctx := errgroup.WithContext(ctx)
	done := 0
	var mu sync.Mutex
	for _, lbl := range deck.ChartLabels {
		lbl := lbl
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			sc := ctxByslide[lbl.ID.SlideIndex]
			resp, err := comp.Backend.Translate(gctx, contract.TranslateRequest{
				Text:         lbl.Text,
				SourceLang:   set.SourceLang,
				TargetLang:   set.TargetLang,
				SlideContext: sc.Summary,
			})
			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				tr.errs++
				if logger != nil {
					logger.ErrorWith("charttable", diag.Classify(err), "translate label failed", nil, lbl.ID.ShapeID, "")
				}
				tr.labels[lbl.ID] = lbl.Text
			} else {
				tr.labels[lbl.ID] = charttable.CleanLabel(resp.Text)
			}
			onProgress(contract.MilestoneTranslatingChartsTables, done, len(deck.ChartLabels), tr.errs)
			return nil
		})
	}
	return g.Wait()
}

// writeSidecar renders one JSON line per translated element, paragraphs
// and table cells first, then chart labels, and hands the buffer to the
// job's artifact writer. Within each group lines follow map iteration
// order, which is not defined. A line is flushed only once fully built,
// so a reader stops cleanly at the last complete line.
func writeSidecar(ctx context.Context, set Settings, tr *translated) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for id, runs := range tr.runs {
		kind := string(id.Kind)
		if id.Kind == contract.KindTableCell {
			kind = "cell"
		}
		rec := sidecarRecord{
			Kind:       kind,
			SlideIndex: id.SlideIndex,
			ShapeID:    id.ShapeID,
			Row:        id.Row,
			Col:        id.Col,
			Text:       concatRuns(runs),
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	for id, text := range tr.labels {
		rec := sidecarRecord{
			Kind:       string(id.Kind),
			SlideIndex: id.SlideIndex,
			ShapeID:    id.ShapeID,
			LabelKey:   id.LabelKey,
			Text:       text,
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return set.Sidecar.Write(ctx, contract.NormalizeArtifactPath(set.SidecarPath), &buf)
}

func concatRuns(runs []contract.Run) string {
	out := make([]byte, 0, 64)
	for _, r := range runs {
		out = append(out, r.Text...)
	}
	return string(out)
}

func estimateTokens(s string, bytesPerToken int) int {
	return prompt.MakeEstimator(bytesPerToken)(s)
}

func sanity(c Components, s Settings) error {
	if c.Extractor == nil || c.Backend == nil || c.Aligner == nil || c.Merger == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if s.InputPath == "" || s.OutputPath == "" {
		return errors.New("pipeline: empty input/output path")
	}
	return nil
}

// shouldRetryTranslate decides whether a translation error is worth a
// retry: cancellation is never retried, budget/network errors are,
// anything else is permanent.
func shouldRetryTranslate(err error) bool {
	if err == nil {
		return false
	}
	switch diag.Classify(err) {
	case diag.CodeCancel:
		return false
	case diag.CodeBudget, diag.CodeNetwork:
		return true
	default:
		return false
	}
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package llmmap implements the 4.5.b run aligner: it asks the shared
// translation backend, reflectively, which substring of the translated
// text corresponds to each formatted source span, then projects that
// span's formatting onto the returned substring.
package llmmap

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"deckxlate/pkg/contract"
)

// Options configures the LLM-mapping aligner.
type Options struct {
	// MaxSpans caps how many formatted spans are sent to the backend per
	// paragraph, guarding against pathological runs-per-paragraph counts.
	// Default 12.
	MaxSpans int `json:"max_spans"`
}

// Aligner implements contract.Aligner and contract.BackendAware.
type Aligner struct {
	maxSpans int
	backend  contract.TranslationBackend
}

// New constructs an Aligner from raw JSON options.
func New(raw json.RawMessage) (contract.Aligner, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("llmmap aligner options: %w", err)
		}
	}
	if o.MaxSpans <= 0 {
		o.MaxSpans = 12
	}
	return &Aligner{maxSpans: o.MaxSpans}, nil
}

// SetBackend injects the job's shared TranslationBackend.
func (a *Aligner) SetBackend(b contract.TranslationBackend) { a.backend = b }

type formattedSpan struct {
	text   string
	format contract.Formatting
}

// placed is a source span's projected [start,end) rune range in the
// translated text, with the formatting it carries forward.
type placed struct {
	start, end int
	format     contract.Formatting
}

// Align implements the formatted-span / backend-mapping / gap-fill /
// coalesce pipeline.
func (a *Aligner) Align(ctx context.Context, sourceRuns []contract.Run, target string, base contract.Formatting) ([]contract.Run, error) {
	source := concatRuns(sourceRuns)
	if target == "" {
		return []contract.Run{{Text: source, Format: base}}, nil
	}
	if len(sourceRuns) == 0 {
		return []contract.Run{{Text: target, Format: base}}, nil
	}

	spans := formattedSpans(sourceRuns, base)
	if len(spans) > a.maxSpans {
		spans = spans[:a.maxSpans]
	}

	var placements []placed
	used := make([]bool, len([]rune(target)))
	for _, fs := range spans {
		if a.backend == nil {
			break
		}
		sub, err := a.mapSpan(ctx, source, target, fs.text)
		if err != nil || sub == "" {
			continue
		}
		start := strings.Index(target, sub)
		if start < 0 {
			continue
		}
		startRune := len([]rune(target[:start]))
		endRune := startRune + len([]rune(sub))
		if overlaps(used, startRune, endRune) {
			continue
		}
		mark(used, startRune, endRune)
		placements = append(placements, placed{startRune, endRune, fs.format})
	}

	sortPlacements(placements)

	tgtRunes := []rune(target)
	runs := make([]contract.Run, 0, len(placements)+1)
	cursor := 0
	lastFormat := base
	haveLast := false
	for _, p := range placements {
		if p.start > cursor {
			f := base
			if haveLast {
				f = lastFormat
			}
			runs = append(runs, contract.Run{Text: string(tgtRunes[cursor:p.start]), Format: f})
		}
		runs = append(runs, contract.Run{Text: string(tgtRunes[p.start:p.end]), Format: p.format})
		lastFormat = p.format
		haveLast = true
		cursor = p.end
	}
	if cursor < len(tgtRunes) {
		f := base
		if haveLast {
			f = lastFormat
		}
		runs = append(runs, contract.Run{Text: string(tgtRunes[cursor:]), Format: f})
	}

	runs = coalesce(runs)
	if err := contract.ValidateRunCoverage(target, runs); err != nil {
		return []contract.Run{{Text: target, Format: base}}, nil
	}
	return runs, nil
}

// mapSpan asks the backend which substring of target corresponds to
// sourceSpan, given full source/target context. The instruction to return
// only the substring is sent as the request text itself; anything not
// found verbatim in target is treated as
// unmatched, per spec.
func (a *Aligner) mapSpan(ctx context.Context, source, target, sourceSpan string) (string, error) {
	prompt := fmt.Sprintf(
		"Source: %s\nTranslation: %s\nReturn only the substring of Translation that corresponds to this exact source span, with no extra words: %q",
		source, target, sourceSpan,
	)
	resp, err := a.backend.Translate(ctx, contract.TranslateRequest{Text: prompt, SourceLang: "span-map", TargetLang: "span-map"})
	if err != nil {
		return "", err
	}
	candidate := strings.TrimSpace(resp.Text)
	if candidate == "" || !strings.Contains(target, candidate) {
		return "", nil
	}
	return candidate, nil
}

func formattedSpans(runs []contract.Run, base contract.Formatting) []formattedSpan {
	out := make([]formattedSpan, 0, len(runs))
	for _, r := range runs {
		if isWhitespace(r.Text) {
			continue
		}
		if r.Format != base {
			out = append(out, formattedSpan{text: r.Text, format: r.Format})
		}
	}
	return out
}

func isWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func concatRuns(runs []contract.Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

func overlaps(used []bool, start, end int) bool {
	for i := start; i < end && i < len(used); i++ {
		if used[i] {
			return true
		}
	}
	return false
}

func mark(used []bool, start, end int) {
	for i := start; i < end && i < len(used); i++ {
		used[i] = true
	}
}

func sortPlacements(p []placed) {
	sort.Slice(p, func(i, j int) bool { return p[i].start < p[j].start })
}

func coalesce(runs []contract.Run) []contract.Run {
	if len(runs) == 0 {
		return runs
	}
	out := make([]contract.Run, 0, len(runs))
	cur := runs[0]
	for _, r := range runs[1:] {
		if r.Format == cur.Format {
			cur.Text += r.Text
			continue
		}
		out = append(out, cur)
		cur = r
	}
	out = append(out, cur)
	return out
}

var (
	_ contract.Aligner      = (*Aligner)(nil)
	_ contract.BackendAware = (*Aligner)(nil)
)

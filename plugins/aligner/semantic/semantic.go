// Package semantic implements the 4.5.a run aligner: a multilingual
// sentence-embedding strategy that aligns n-gram phrases across source and
// target text, then projects source formatting onto the matched target
// spans.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"deckxlate/pkg/contract"
)

// Options configures the embedding-based aligner.
type Options struct {
	// MaxNgram bounds candidate phrase length in runes. Default 4.
	MaxNgram int `json:"max_ngram"`
	// Threshold is the minimum score a candidate pair needs to be
	// accepted. Default 0.3.
	Threshold float64 `json:"threshold"`
}

// weight coefficients for the scoring function.
const (
	wCosine   = 0.30
	wGlossary = 0.40
	wLength   = 0.15
	wOverlap  = 0.15
)

// Aligner implements contract.Aligner, contract.EmbedderAware and
// contract.GlossaryAware.
type Aligner struct {
	maxNgram  int
	threshold float64
	embedder  contract.Embedder
	glossary  contract.Glossary
}

// New constructs an Aligner from raw JSON options.
func New(raw json.RawMessage) (contract.Aligner, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("semantic aligner options: %w", err)
		}
	}
	if o.MaxNgram <= 0 {
		o.MaxNgram = 4
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.3
	}
	return &Aligner{maxNgram: o.MaxNgram, threshold: o.Threshold}, nil
}

// SetEmbedder injects the job's shared Embedder. Without one, scoring
// uses only the glossary, length-ratio and character-overlap terms.
func (a *Aligner) SetEmbedder(e contract.Embedder) { a.embedder = e }

// SetGlossary injects the job's shared Glossary, scored as the
// phrase_pairs bonus term.
func (a *Aligner) SetGlossary(g contract.Glossary) { a.glossary = g }

type span struct {
	start, end int // rune offsets, end exclusive
}

type candidate struct {
	span
	text string
}

// Align implements the candidate-generation / embedding / scoring /
// greedy-matching / formatting-projection / gap-filling / coalescing
// pipeline.
func (a *Aligner) Align(ctx context.Context, sourceRuns []contract.Run, target string, base contract.Formatting) ([]contract.Run, error) {
	source := concatRuns(sourceRuns)
	if target == "" {
		return []contract.Run{{Text: source, Format: base}}, nil
	}
	if len(sourceRuns) == 0 {
		return []contract.Run{{Text: target, Format: base}}, nil
	}

	srcRunes := []rune(source)
	tgtRunes := []rune(target)
	srcCands := ngrams(srcRunes, a.maxNgram)
	tgtCands := ngrams(tgtRunes, a.maxNgram)

	var phrasePairs []contract.GlossaryEntry
	if a.glossary != nil {
		phrasePairs = a.glossary.PhrasePairs()
	}

	var srcVecs, tgtVecs [][]float32
	if a.embedder != nil && len(srcCands) > 0 && len(tgtCands) > 0 {
		srcTexts := make([]string, len(srcCands))
		for i, c := range srcCands {
			srcTexts[i] = c.text
		}
		tgtTexts := make([]string, len(tgtCands))
		for i, c := range tgtCands {
			tgtTexts[i] = c.text
		}
		var err error
		srcVecs, err = a.embedder.Embed(ctx, srcTexts)
		if err != nil {
			srcVecs = nil
		}
		tgtVecs, err = a.embedder.Embed(ctx, tgtTexts)
		if err != nil {
			tgtVecs = nil
		}
	}

	type pair struct {
		si, ti int
		score  float64
	}
	pairs := make([]pair, 0, len(srcCands)*len(tgtCands))
	for si, sc := range srcCands {
		for ti, tc := range tgtCands {
			score := scorePair(sc, tc, srcVecs, tgtVecs, si, ti, phrasePairs)
			if score >= a.threshold {
				pairs = append(pairs, pair{si, ti, score})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	srcUsed := make([]bool, len(srcRunes))
	tgtUsed := make([]bool, len(tgtRunes))
	type match struct {
		srcSpan, tgtSpan span
	}
	var matches []match
	for _, p := range pairs {
		ss, ts := srcCands[p.si].span, tgtCands[p.ti].span
		if overlaps(srcUsed, ss) || overlaps(tgtUsed, ts) {
			continue
		}
		mark(srcUsed, ss)
		mark(tgtUsed, ts)
		matches = append(matches, match{ss, ts})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].tgtSpan.start < matches[j].tgtSpan.start })

	runOffsets := runSpans(sourceRuns)
	formatFor := func(ss span) contract.Formatting {
		return majorityFormat(sourceRuns, runOffsets, ss, base)
	}

	runs := make([]contract.Run, 0, len(matches)+1)
	cursor := 0
	var lastFormat = base
	haveLast := false
	for _, m := range matches {
		if m.tgtSpan.start > cursor {
			gapText := string(tgtRunes[cursor:m.tgtSpan.start])
			f := base
			if haveLast {
				f = lastFormat
			}
			runs = append(runs, contract.Run{Text: gapText, Format: f})
		}
		f := formatFor(m.srcSpan)
		runs = append(runs, contract.Run{Text: string(tgtRunes[m.tgtSpan.start:m.tgtSpan.end]), Format: f})
		lastFormat = f
		haveLast = true
		cursor = m.tgtSpan.end
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

func concatRuns(runs []contract.Run) string {
	s := ""
	for _, r := range runs {
		s += r.Text
	}
	return s
}

func ngrams(runes []rune, maxN int) []candidate {
	n := len(runes)
	out := make([]candidate, 0, n*maxN)
	for length := 1; length <= maxN; length++ {
		for start := 0; start+length <= n; start++ {
			end := start + length
			out = append(out, candidate{span: span{start, end}, text: string(runes[start:end])})
		}
	}
	return out
}

func overlaps(used []bool, s span) bool {
	for i := s.start; i < s.end; i++ {
		if used[i] {
			return true
		}
	}
	return false
}

func mark(used []bool, s span) {
	for i := s.start; i < s.end; i++ {
		used[i] = true
	}
}

func scorePair(sc, tc candidate, srcVecs, tgtVecs [][]float32, si, ti int, phrasePairs []contract.GlossaryEntry) float64 {
	cos := 0.0
	if srcVecs != nil && tgtVecs != nil && si < len(srcVecs) && ti < len(tgtVecs) {
		cos = cosine(srcVecs[si], tgtVecs[ti])
	}
	gloss := glossaryBonus(phrasePairs, sc.text, tc.text)
	lenRatio := lengthRatio(len(sc.text), len(tc.text))
	overlap := charOverlap(sc.text, tc.text)
	if srcVecs == nil || tgtVecs == nil {
		// No embedder: drop the cosine term and scale the length-ratio and
		// overlap weights by 1.5 rather than silently scoring everything
		// near zero.
		return wGlossary*gloss + wLength*1.5*lenRatio + wOverlap*1.5*overlap
	}
	return wCosine*cos + wGlossary*gloss + wLength*lenRatio + wOverlap*overlap
}

// glossaryBonus is 1 when sourceText is a phrase_pairs source term whose
// listed target is targetText, else 0.
func glossaryBonus(phrasePairs []contract.GlossaryEntry, sourceText, targetText string) float64 {
	for _, e := range phrasePairs {
		src, tgt := e.Source, e.Target
		s, t := sourceText, targetText
		if !e.CaseSensitive {
			src, tgt = strings.ToLower(src), strings.ToLower(tgt)
			s, t = strings.ToLower(s), strings.ToLower(t)
		}
		if src == s && tgt == t {
			return 1
		}
	}
	return 0
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if c < 0 {
		return 0
	}
	return c
}

func lengthRatio(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

func charOverlap(a, b string) float64 {
	set := map[rune]bool{}
	for _, r := range a {
		set[r] = true
	}
	hits := 0
	total := 0
	for _, r := range b {
		total++
		if set[r] {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

type runSpan struct {
	span
	idx int
}

func runSpans(runs []contract.Run) []runSpan {
	out := make([]runSpan, 0, len(runs))
	off := 0
	for i, r := range runs {
		n := len([]rune(r.Text))
		out = append(out, runSpan{span: span{off, off + n}, idx: i})
		off += n
	}
	return out
}

// majorityFormat returns the formatting of the source run covering the
// majority of ss; ties break by earliest run index. A whitespace-only run
// never wins: its formatting (e.g. a stray bold/colored space) must not
// leak onto adjoining text it happens to share a matched span with.
func majorityFormat(runs []contract.Run, spans []runSpan, ss span, base contract.Formatting) contract.Formatting {
	best := -1
	bestOverlap := 0
	for _, rs := range spans {
		if isWhitespace(runs[rs.idx].Text) {
			continue
		}
		lo := maxInt(ss.start, rs.start)
		hi := minInt(ss.end, rs.end)
		overlap := hi - lo
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = rs.idx
		}
	}
	if best < 0 {
		return base
	}
	return runs[best].Format
}

func isWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var (
	_ contract.Aligner       = (*Aligner)(nil)
	_ contract.EmbedderAware = (*Aligner)(nil)
	_ contract.GlossaryAware = (*Aligner)(nil)
)

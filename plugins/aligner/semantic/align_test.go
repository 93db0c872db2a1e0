package semantic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckxlate/pkg/contract"
)

// stubEmbedder gives cosine similarity full control over which candidate
// pair wins: texts present in vecs get their vector, anything else gets
// the zero vector (cosine 0 against everything, per semantic.go's cosine).
type stubEmbedder struct {
	vecs map[string][]float32
}

func (e stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vecs[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0}
		}
	}
	return out, nil
}

type stubGlossary struct {
	pairs []contract.GlossaryEntry
}

func (g stubGlossary) LookupMatches(text string) []contract.GlossaryEntry        { return nil }
func (g stubGlossary) PromptFragment(text string) string                        { return "" }
func (g stubGlossary) PhrasePairs() []contract.GlossaryEntry                    { return g.pairs }
func (g stubGlossary) Verify(source, translated string) []contract.GlossaryEntry { return nil }

var (
	defaultFmt = contract.Formatting{FontFamily: "Calibri", FontSizePt: 12}
	boldFmt    = contract.Formatting{FontFamily: "Calibri", FontSizePt: 12, Bold: true}
	redBold    = contract.Formatting{FontFamily: "Calibri", FontSizePt: 12, Bold: true, Color: "FF0000"}
	hyperFmt   = contract.Formatting{FontFamily: "Calibri", FontSizePt: 12, Hyperlink: "http://x"}
)

func wideAligner(t *testing.T) *Aligner {
	t.Helper()
	a, err := New(json.RawMessage(`{"max_ngram":40}`))
	require.NoError(t, err)
	return a.(*Aligner)
}

// S1: a single, unformatted run round-trips as one target run.
func TestAlignSingleRunParagraph(t *testing.T) {
	al := wideAligner(t)

	sourceRuns := []contract.Run{{Text: "Employees attend training.", Format: defaultFmt}}
	target := "Les employés suivent une formation."

	runs, err := al.Align(context.Background(), sourceRuns, target, defaultFmt)
	require.NoError(t, err)
	require.NoError(t, contract.ValidateRunCoverage(target, runs))

	// Every possible matched span carries the same (only) format available,
	// so regardless of which n-grams the greedy pass picks, coalesce must
	// collapse the result to a single run.
	require.Len(t, runs, 1)
	assert.Equal(t, target, runs[0].Text)
	assert.Equal(t, defaultFmt, runs[0].Format)
}

// S2: a bold span in the interior of the paragraph survives alignment and
// the surrounding default-format runs coalesce.
func TestAlignBoldInMiddle(t *testing.T) {
	al := wideAligner(t)
	al.SetEmbedder(stubEmbedder{vecs: map[string][]float32{
		"invisible": {1, 0},
	}})

	sourceRuns := []contract.Run{
		{Text: "Employees with an ", Format: defaultFmt},
		{Text: "invisible", Format: boldFmt},
		{Text: " disability", Format: defaultFmt},
	}
	target := "Les employés ayant un handicap invisible"

	runs, err := al.Align(context.Background(), sourceRuns, target, defaultFmt)
	require.NoError(t, err)
	require.NoError(t, contract.ValidateRunCoverage(target, runs))

	foundBold := false
	for i, r := range runs {
		if r.Format.Bold {
			foundBold = true
			assert.Equal(t, "invisible", r.Text)
		}
		if i > 0 {
			assert.NotEqual(t, runs[i-1].Format, r.Format, "adjacent runs must not share formatting (coalesce)")
		}
	}
	assert.True(t, foundBold, "expected a bold run in %+v", runs)
}

// S3: a run carrying a hyperlink keeps it on the matched target span, and
// the formatting never leaks onto neighboring runs.
func TestAlignHyperlinkPreservation(t *testing.T) {
	al := wideAligner(t)
	al.SetEmbedder(stubEmbedder{vecs: map[string][]float32{
		"report":  {1, 0},
		"rapport": {1, 0},
		".":       {0, 1},
	}})

	sourceRuns := []contract.Run{
		{Text: "See the ", Format: defaultFmt},
		{Text: "report", Format: hyperFmt},
		{Text: ".", Format: defaultFmt},
	}
	target := "Voir le rapport."

	runs, err := al.Align(context.Background(), sourceRuns, target, defaultFmt)
	require.NoError(t, err)
	require.NoError(t, contract.ValidateRunCoverage(target, runs))

	var hyperlinked []contract.Run
	for _, r := range runs {
		if r.Format.Hyperlink != "" {
			hyperlinked = append(hyperlinked, r)
		}
	}
	require.Len(t, hyperlinked, 1, "expected exactly one hyperlinked run in %+v", runs)
	assert.Equal(t, "http://x", hyperlinked[0].Format.Hyperlink)
	assert.Equal(t, "rapport", hyperlinked[0].Text)

	for _, r := range runs {
		if r.Format.Hyperlink == "" {
			assert.NotContains(t, r.Text, "rapport", "hyperlink formatting leaked off its run")
		}
	}
}

// S4: a whitespace-only formatted run must never win majorityFormat; its
// color/bold must not leak onto the target even when a matched span
// overlaps it.
func TestAlignWhitespaceOnlyFormattedRunIsFiltered(t *testing.T) {
	al := wideAligner(t)
	al.SetEmbedder(stubEmbedder{vecs: map[string][]float32{
		"Warning danger":   {1, 0},
		"Attention danger": {1, 0},
	}})

	sourceRuns := []contract.Run{
		{Text: "Warning", Format: defaultFmt},
		{Text: " ", Format: redBold},
		{Text: "danger", Format: defaultFmt},
	}
	target := "Attention danger"

	runs, err := al.Align(context.Background(), sourceRuns, target, defaultFmt)
	require.NoError(t, err)
	require.NoError(t, contract.ValidateRunCoverage(target, runs))

	for _, r := range runs {
		assert.Empty(t, r.Format.Color, "red must not leak from the whitespace-only run: %+v", runs)
		assert.False(t, r.Format.Bold, "bold must not leak from the whitespace-only run: %+v", runs)
	}
}

// S5: a glossary phrase pair lifts the matching candidate's score, and the
// aligner still produces coverage-valid, uniformly-formatted output.
func TestAlignGlossaryTermBonus(t *testing.T) {
	al := wideAligner(t)
	al.SetGlossary(stubGlossary{pairs: []contract.GlossaryEntry{
		{Source: "Senate", Target: "Sénat", CaseSensitive: true, Priority: 10},
	}})

	sourceRuns := []contract.Run{{Text: "The Senate convened.", Format: defaultFmt}}
	target := "Le Sénat s'est réuni."

	runs, err := al.Align(context.Background(), sourceRuns, target, defaultFmt)
	require.NoError(t, err)
	require.NoError(t, contract.ValidateRunCoverage(target, runs))
	for i := 1; i < len(runs); i++ {
		assert.Equal(t, runs[0].Format, runs[i].Format, "single source run must project one formatting across the target")
	}
}

func TestGlossaryBonusExactPairScoresOne(t *testing.T) {
	pairs := []contract.GlossaryEntry{{Source: "Senate", Target: "Sénat", CaseSensitive: true}}
	assert.Equal(t, 1.0, glossaryBonus(pairs, "Senate", "Sénat"))
	assert.Equal(t, 0.0, glossaryBonus(pairs, "Senate", "Congress"))
}

func TestGlossaryBonusCaseFold(t *testing.T) {
	pairs := []contract.GlossaryEntry{{Source: "Senate", Target: "Sénat"}}
	assert.Equal(t, 1.0, glossaryBonus(pairs, "senate", "sénat"))
}

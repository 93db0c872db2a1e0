package slidecontext

import (
	"strings"
	"testing"

	"deckxlate/pkg/contract"
)

func run(text string) []contract.Run {
	return []contract.Run{{Text: text}}
}

func TestBuildGroupsBySlide(t *testing.T) {
	deck := &contract.Deck{SlideCount: 2}
	runs := map[contract.ElementID][]contract.Run{
		{SlideIndex: 0, ShapeID: "a", Kind: contract.KindParagraph}: run("hello"),
		{SlideIndex: 0, ShapeID: "b", Kind: contract.KindParagraph}: run("world"),
		{SlideIndex: 1, ShapeID: "a", Kind: contract.KindParagraph}: run("second slide"),
	}
	ctxBySlide := Build(deck, runs, 4)
	if len(ctxBySlide) != 2 {
		t.Fatalf("expected 2 slide contexts, got %d", len(ctxBySlide))
	}
	s0 := ctxBySlide[0]
	if !strings.Contains(s0.Summary, "hello") || !strings.Contains(s0.Summary, "world") {
		t.Fatalf("slide 0 summary missing paragraphs: %q", s0.Summary)
	}
	if s0.SlideIndex != 0 {
		t.Fatalf("expected SlideIndex 0, got %d", s0.SlideIndex)
	}
	if ctxBySlide[1].Tokens == 0 {
		t.Fatalf("expected non-zero token estimate")
	}
}

func TestBuildSkipsChartLabels(t *testing.T) {
	deck := &contract.Deck{}
	runs := map[contract.ElementID][]contract.Run{
		{SlideIndex: 0, ShapeID: "c1", Kind: contract.KindChartLabel}: run("label only"),
	}
	ctxBySlide := Build(deck, runs, 4)
	if len(ctxBySlide) != 0 {
		t.Fatalf("expected chart labels excluded from slide context, got %+v", ctxBySlide)
	}
}

func TestBuildTruncatesAtCap(t *testing.T) {
	deck := &contract.Deck{}
	runs := map[contract.ElementID][]contract.Run{}
	long := strings.Repeat("x", 2000)
	for i := 0; i < 5; i++ {
		runs[contract.ElementID{SlideIndex: 0, ShapeID: string(rune('a' + i)), Kind: contract.KindParagraph}] = run(long)
	}
	ctxBySlide := Build(deck, runs, 1)
	if ctxBySlide[0].Tokens > maxSummaryTokens {
		t.Fatalf("expected summary capped at %d tokens, got %d", maxSummaryTokens, ctxBySlide[0].Tokens)
	}
}

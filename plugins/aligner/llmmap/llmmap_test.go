package llmmap

import (
	"context"
	"strings"
	"testing"

	"deckxlate/pkg/contract"
)

type stubBackend struct {
	fn func(req contract.TranslateRequest) (string, error)
}

func (s stubBackend) Translate(ctx context.Context, req contract.TranslateRequest) (contract.TranslateResponse, error) {
	text, err := s.fn(req)
	if err != nil {
		return contract.TranslateResponse{}, err
	}
	return contract.TranslateResponse{Text: text}, nil
}

var base = contract.Formatting{FontFamily: "Calibri", FontSizePt: 12}
var bold = contract.Formatting{FontFamily: "Calibri", FontSizePt: 12, Bold: true}

func TestAlignMapsFormattedSpan(t *testing.T) {
	a, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	al := a.(*Aligner)
	al.SetBackend(stubBackend{fn: func(req contract.TranslateRequest) (string, error) {
		if strings.Contains(req.Text, `"world"`) {
			return "monde", nil
		}
		return "", nil
	}})

	sourceRuns := []contract.Run{
		{Text: "hello ", Format: base},
		{Text: "world", Format: bold},
	}
	runs, err := al.Align(context.Background(), sourceRuns, "bonjour monde", base)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if err := contract.ValidateRunCoverage("bonjour monde", runs); err != nil {
		t.Fatalf("coverage: %v", err)
	}
	found := false
	for _, r := range runs {
		if r.Text == "monde" && r.Format == bold {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a bold 'monde' run, got %+v", runs)
	}
}

func TestAlignNoBackendFallsBackToBase(t *testing.T) {
	a, _ := New(nil)
	al := a.(*Aligner)
	sourceRuns := []contract.Run{{Text: "hello", Format: bold}}
	runs, err := al.Align(context.Background(), sourceRuns, "bonjour", base)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if len(runs) != 1 || runs[0].Text != "bonjour" || runs[0].Format != base {
		t.Fatalf("expected single base-format run, got %+v", runs)
	}
}

func TestAlignUnmatchedSpanFallsBackToGap(t *testing.T) {
	a, _ := New(nil)
	al := a.(*Aligner)
	al.SetBackend(stubBackend{fn: func(req contract.TranslateRequest) (string, error) {
		return "not present anywhere", nil
	}})
	sourceRuns := []contract.Run{{Text: "hello", Format: bold}}
	runs, err := al.Align(context.Background(), sourceRuns, "bonjour", base)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if err := contract.ValidateRunCoverage("bonjour", runs); err != nil {
		t.Fatalf("coverage: %v", err)
	}
}

var hyperlinked = contract.Formatting{FontFamily: "Calibri", FontSizePt: 12, Hyperlink: "http://x"}

// S3: a run carrying a hyperlink is mapped as a single span and keeps the
// link target; the unmatched trailing punctuation is gap-filled with the
// preceding span's formatting, so it joins the one hyperlinked run.
func TestAlignHyperlinkPreservation(t *testing.T) {
	a, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	al := a.(*Aligner)
	al.SetBackend(stubBackend{fn: func(req contract.TranslateRequest) (string, error) {
		if strings.Contains(req.Text, `"report"`) {
			return "rapport", nil
		}
		return "", nil
	}})

	sourceRuns := []contract.Run{
		{Text: "See the ", Format: base},
		{Text: "report", Format: hyperlinked},
		{Text: ".", Format: base},
	}
	runs, err := al.Align(context.Background(), sourceRuns, "Voir le rapport.", base)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if err := contract.ValidateRunCoverage("Voir le rapport.", runs); err != nil {
		t.Fatalf("coverage: %v", err)
	}

	var hit int
	for _, r := range runs {
		if r.Format.Hyperlink != "" {
			hit++
			if r.Format.Hyperlink != "http://x" || !strings.Contains(r.Text, "rapport") {
				t.Fatalf("expected the hyperlink run to carry 'rapport', got %+v", r)
			}
		}
	}
	if hit != 1 {
		t.Fatalf("expected exactly one hyperlinked run, got %d in %+v", hit, runs)
	}
}

func TestAlignEmptyTarget(t *testing.T) {
	a, _ := New(nil)
	al := a.(*Aligner)
	runs, err := al.Align(context.Background(), []contract.Run{{Text: "hi", Format: base}}, "", base)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if len(runs) != 1 || runs[0].Text != "hi" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

var (
	_ contract.TranslationBackend = stubBackend{}
)

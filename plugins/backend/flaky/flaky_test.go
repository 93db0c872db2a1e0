package flaky

import (
	"context"
	"errors"
	"testing"

	"deckxlate/pkg/contract"
)

func TestTranslateScriptedFailures(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	req := contract.TranslateRequest{Text: "hi", SourceLang: "en", TargetLang: "fr"}

	if _, err := c.Translate(context.Background(), req); !errors.Is(err, contract.ErrTranslationTransient) {
		t.Fatalf("expected transient error on first call, got %v", err)
	}
	if _, err := c.Translate(context.Background(), req); !errors.Is(err, contract.ErrTranslationPermanent) {
		t.Fatalf("expected permanent error on second call, got %v", err)
	}
	resp, err := c.Translate(context.Background(), req)
	if err != nil {
		t.Fatalf("expected success on third call, got %v", err)
	}
	if resp.Text != "FLAKY: hi" {
		t.Fatalf("unexpected translation: %q", resp.Text)
	}
}

func TestTranslateEmptyText(t *testing.T) {
	c, _ := New(nil)
	if _, err := c.Translate(context.Background(), contract.TranslateRequest{}); err != contract.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

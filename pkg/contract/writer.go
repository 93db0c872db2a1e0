package contract

import (
	"context"
	"io"
)

// Writer streams a finished artifact (the merged deck, or a job's JSONL
// sidecar) to its destination: one method, id-addressed, context-aware.
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// Merger (C8) rewrites a deck's container with translated text substituted
// into the original runs, preserving every other byte unchanged.
type Merger interface {
	Merge(ctx context.Context, srcPath string, translated TranslatedDeck) (io.Reader, error)
}

// TranslatedDeck is C8's input: the original element IDs paired with the
// final, aligned runs (or label/cell text) that should replace them.
type TranslatedDeck struct {
	Paragraphs  map[ElementID][]Run
	TableCells  map[ElementID][]Run
	ChartLabels map[ElementID]string
}

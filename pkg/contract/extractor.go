package contract

import "context"

// Extractor (C3) opens a deck container and yields every translatable unit
// it contains. Implementations own the container format; the rest of the
// pipeline only ever sees the Deck shape.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Deck, error)
}

package contract

import "context"

// TranslateRequest is one record-level call to a TranslationBackend (C2).
type TranslateRequest struct {
	Text             string
	SourceLang       string
	TargetLang       string
	GlossaryFragment string
	SlideContext     string
}

// TranslateResponse is a backend's reply to a TranslateRequest.
type TranslateResponse struct {
	Text string
}

// TranslationBackend is the single point every translated record passes
// through. A job constructs exactly one backend instance and shares it
// across C4 and C7 — never one per call, never one per stage.
type TranslationBackend interface {
	Translate(ctx context.Context, req TranslateRequest) (TranslateResponse, error)
}

// Embedder is an optional capability a TranslationBackend may also expose,
// used by the semantic aligner (4.5.a) to turn source/target spans into
// vectors for cosine-similarity matching. A backend that cannot embed
// simply doesn't implement this interface; callers type-assert for it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

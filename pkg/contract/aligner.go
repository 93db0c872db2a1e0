package contract

import "context"

// Aligner (C5) maps a translated paragraph's text back onto per-run
// formatting, given the original source runs. Implementations must
// satisfy the invariants in spec.md §8: run concatenation equals target
// text, full coverage with no gaps or overlaps, and no invented
// formatting beyond what a source run or the paragraph base format
// supplies.
type Aligner interface {
	Align(ctx context.Context, sourceRuns []Run, target string, base Formatting) ([]Run, error)
}

// EmbedderAware is implemented by aligners that need the job's shared
// Embedder (4.5.a's semantic strategy). internal/config.Assemble injects
// the one backend instance constructed for the job; an aligner must never
// construct its own.
type EmbedderAware interface {
	SetEmbedder(Embedder)
}

// BackendAware is implemented by aligners that reflectively use the job's
// shared TranslationBackend (4.5.b's LLM-mapping strategy) rather than an
// embedding model. Same discipline as EmbedderAware: injected once, never
// self-constructed.
type BackendAware interface {
	SetBackend(TranslationBackend)
}

// GlossaryAware is implemented by aligners that score candidate pairs
// against the job's glossary (4.5.a step 3's phrase-pair bonus). Same
// injected-once discipline as EmbedderAware/BackendAware.
type GlossaryAware interface {
	SetGlossary(Glossary)
}

// ValidateRunCoverage checks the two structural invariants every Aligner
// output must satisfy: concatenation equals target, and no run is empty
// unless target itself is empty.
func ValidateRunCoverage(target string, runs []Run) error {
	if len(runs) == 0 {
		if target == "" {
			return nil
		}
		return ErrAlignmentDegenerate
	}
	got := make([]byte, 0, len(target))
	for _, r := range runs {
		if r.Text == "" {
			return ErrAlignmentDegenerate
		}
		got = append(got, r.Text...)
	}
	if string(got) != target {
		return ErrAlignmentDegenerate
	}
	return nil
}

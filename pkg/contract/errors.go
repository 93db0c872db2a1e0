package contract

import "errors"

// Sentinel errors classified by internal/diag.Classify into the error
// taxonomy spec.md §7 describes. Only ErrDeckMalformed and ErrWriterIO
// are fatal to a job (internal/diag.IsFatal); every other error, a
// backend authentication failure included, is record-level and the
// offending record passes through untranslated.
var (
	// ErrPathInvalid: an artifact ID maps to an invalid or escaping path.
	ErrPathInvalid = errors.New("path invalid")
	// ErrBudgetExceeded: a token or quota budget was exhausted.
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrInvariantViolation: a generic domain invariant sentinel.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDeckMalformed: the input .pptx container or its XML parts could
	// not be parsed into a Deck. Fatal to the job.
	ErrDeckMalformed = errors.New("deck malformed")
	// ErrWriterIO: the merged artifact could not be written. Fatal to the
	// job.
	ErrWriterIO = errors.New("writer io error")
	// ErrGlossaryLoad: the glossary file could not be loaded or parsed.
	// Fatal only when a job explicitly requires a glossary.
	ErrGlossaryLoad = errors.New("glossary load error")

	// ErrTranslationTransient: a record-level translation call failed in
	// a way retries may fix (timeout, 429, 5xx).
	ErrTranslationTransient = errors.New("translation transient error")
	// ErrTranslationPermanent: a record-level translation call failed in
	// a way retries cannot fix (400, content filtered, malformed prompt).
	ErrTranslationPermanent = errors.New("translation permanent error")
	// ErrTranslationCancelled: the job's context was cancelled mid-call.
	ErrTranslationCancelled = errors.New("translation cancelled")
	// ErrTranslationTooLong: the source text exceeds the configured
	// token budget for a single translation call.
	ErrTranslationTooLong = errors.New("translation too long")
	// ErrAlignmentDegenerate: an aligner could not produce any run split
	// that covers the target text (e.g. empty target, zero source runs).
	ErrAlignmentDegenerate = errors.New("alignment degenerate")

	// ErrResponseInvalid: an upstream response could not be decoded into
	// the expected shape.
	ErrResponseInvalid = errors.New("response invalid")
	// ErrRateLimited: an upstream call was rejected for rate limiting.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidInput: a caller passed a malformed argument (empty text,
	// inverted range).
	ErrInvalidInput = errors.New("invalid input")
)

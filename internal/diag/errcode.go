package diag

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"deckxlate/pkg/contract"
)

// Code is the minimal error classification used for log fields and
// metric labels. It is independent of process exit codes.
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeNetwork   Code = "network"
	CodeProtocol  Code = "protocol"
	CodeInvariant Code = "invariant"
	CodeBudget    Code = "budget"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
	CodeDeck      Code = "deck"
	CodeGlossary  Code = "glossary"
	CodeAlignment Code = "alignment"
)

// Classify buckets err using sentinel and stdlib error checks only — no
// string matching.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, contract.ErrTranslationCancelled) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrBudgetExceeded) || errors.Is(err, contract.ErrRateLimited) || errors.Is(err, contract.ErrTranslationTooLong) {
		return CodeBudget
	}
	if errors.Is(err, contract.ErrDeckMalformed) {
		return CodeDeck
	}
	if errors.Is(err, contract.ErrGlossaryLoad) {
		return CodeGlossary
	}
	if errors.Is(err, contract.ErrAlignmentDegenerate) {
		return CodeAlignment
	}
	if errors.Is(err, contract.ErrResponseInvalid) {
		return CodeProtocol
	}
	if errors.Is(err, contract.ErrInvariantViolation) ||
		errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	if errors.Is(err, contract.ErrWriterIO) {
		return CodeIO
	}
	if errors.Is(err, contract.ErrTranslationTransient) {
		return CodeNetwork
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	var upErr contract.UpstreamError
	if errors.As(err, &upErr) {
		return CodeNetwork
	}
	return CodeUnknown
}

// IsFatal reports whether err should abort the whole job rather than be
// recorded against the single offending element.
func IsFatal(err error) bool {
	return errors.Is(err, contract.ErrDeckMalformed) || errors.Is(err, contract.ErrWriterIO)
}

// NowUTC returns the current time formatted RFC3339 in UTC, used for the
// structured log "ts" field.
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

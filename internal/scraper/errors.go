package scraper

import (
	"errors"
	"fmt"

	"github.com/civicdata/consulta-api/internal/challenge"
	"github.com/civicdata/consulta-api/internal/extractor"
	"github.com/civicdata/consulta-api/internal/session"
)

// ErrorKind buckets a failure for classification and for the error log.
type ErrorKind string

const (
	// KindSession covers token negotiation failures and mid-flow token
	// invalidation. Never retried within the same attempt.
	KindSession ErrorKind = "session"

	// KindChallengeTimeout means an anti-bot wall stayed up for the
	// whole monitoring window. Maps to the blocked outcome.
	KindChallengeTimeout ErrorKind = "challenge_timeout"

	// KindNetwork covers transport failures and unexpected status codes.
	KindNetwork ErrorKind = "network"

	// KindParse means a response arrived but its structure was not the
	// one the extractor expects.
	KindParse ErrorKind = "parse"

	// KindNotFound is the authoritative empty answer. Not a failure.
	KindNotFound ErrorKind = "not_found"

	// KindInternal is the catch-all for everything else.
	KindInternal ErrorKind = "internal"
)

// ErrNoResults re-exports the extractor sentinel so the executor and the
// sources agree on what an authoritative empty answer looks like.
var ErrNoResults = extractor.ErrNoResults

// ScrapeError carries the kind alongside the underlying cause so the
// executor can classify outcomes with errors.As.
type ScrapeError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// NewSessionError wraps a session negotiation failure.
func NewSessionError(msg string, err error) *ScrapeError {
	return &ScrapeError{Kind: KindSession, Message: msg, Err: err}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(msg string, err error) *ScrapeError {
	return &ScrapeError{Kind: KindNetwork, Message: msg, Err: err}
}

// NewParseError wraps a malformed response failure.
func NewParseError(msg string, err error) *ScrapeError {
	return &ScrapeError{Kind: KindParse, Message: msg, Err: err}
}

// KindOf extracts the error kind, defaulting to internal. Sentinels
// from the leaf packages are recognized even without a ScrapeError
// wrapper.
func KindOf(err error) ErrorKind {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, challenge.ErrTimedOut):
		return KindChallengeTimeout
	case errors.Is(err, extractor.ErrNoResults):
		return KindNotFound
	case errors.Is(err, extractor.ErrMalformed):
		return KindParse
	case errors.Is(err, session.ErrTokenNotFound):
		return KindSession
	}
	return KindInternal
}

package scraper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicdata/consulta-api/internal/challenge"
	"github.com/civicdata/consulta-api/internal/extractor"
	"github.com/civicdata/consulta-api/internal/session"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"scrape error", NewNetworkError("x", nil), KindNetwork},
		{"wrapped scrape error", fmt.Errorf("ctx: %w", NewSessionError("x", nil)), KindSession},
		{"challenge sentinel", fmt.Errorf("incapsula: %w", challenge.ErrTimedOut), KindChallengeTimeout},
		{"no results sentinel", extractor.ErrNoResults, KindNotFound},
		{"malformed sentinel", extractor.ErrMalformed, KindParse},
		{"token sentinel", session.ErrTokenNotFound, KindSession},
		{"unknown", errors.New("algo"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestScrapeErrorUnwrap(t *testing.T) {
	cause := errors.New("causa")
	err := NewParseError("mensaje", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "parse")
	assert.Contains(t, err.Error(), "mensaje")
}

func TestErrNoResultsAlias(t *testing.T) {
	assert.ErrorIs(t, ErrNoResults, extractor.ErrNoResults)
}

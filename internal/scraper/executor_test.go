package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/consulta-api/internal/challenge"
	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testExecutor(t *testing.T) (*Executor, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewExecutor(st, testLogger()), st
}

func recordsExtraction(n int) *models.Extraction {
	ex := &models.Extraction{}
	for i := 0; i < n; i++ {
		ex.Records = append(ex.Records, models.Record{"id": fmt.Sprintf("%d", i)})
	}
	return ex
}

func countingStrategy(calls *int, ex *models.Extraction, err error) Strategy {
	return func(ctx context.Context, identity string) (*models.Extraction, error) {
		*calls++
		return ex, err
	}
}

func TestExecuteLightweightWins(t *testing.T) {
	e, _ := testExecutor(t)

	lightCalls, heavyCalls := 0, 0
	src := &Source{
		Name:        "fuente",
		Lightweight: countingStrategy(&lightCalls, recordsExtraction(2), nil),
		Heavyweight: countingStrategy(&heavyCalls, recordsExtraction(5), nil),
	}

	result := e.Execute(context.Background(), src, "1710034065")

	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, models.MethodLightweight, result.Method)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 1, lightCalls)
	assert.Equal(t, 0, heavyCalls, "heavyweight must not run after a non-empty lightweight answer")
}

func TestExecuteFallsBackOnEmptyLightweight(t *testing.T) {
	e, _ := testExecutor(t)

	lightCalls, heavyCalls := 0, 0
	src := &Source{
		Name:        "fuente",
		Lightweight: countingStrategy(&lightCalls, &models.Extraction{}, nil),
		Heavyweight: countingStrategy(&heavyCalls, recordsExtraction(1), nil),
	}

	result := e.Execute(context.Background(), src, "1710034065")

	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, models.MethodHeavyweight, result.Method)
	assert.Equal(t, 1, lightCalls)
	assert.Equal(t, 1, heavyCalls)
}

func TestExecuteAbsorbsLightweightFailure(t *testing.T) {
	e, _ := testExecutor(t)

	heavyCalls := 0
	lightCalls := 0
	src := &Source{
		Name:        "fuente",
		Lightweight: countingStrategy(&lightCalls, nil, NewNetworkError("portal caído", nil)),
		Heavyweight: countingStrategy(&heavyCalls, recordsExtraction(1), nil),
	}

	result := e.Execute(context.Background(), src, "1710034065")

	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, heavyCalls)
}

func TestExecuteNotFoundWhenBothEmpty(t *testing.T) {
	e, st := testExecutor(t)

	src := &Source{
		Name: "fuente",
		Lightweight: func(ctx context.Context, identity string) (*models.Extraction, error) {
			return nil, ErrNoResults
		},
		Heavyweight: func(ctx context.Context, identity string) (*models.Extraction, error) {
			return nil, ErrNoResults
		},
	}

	result := e.Execute(context.Background(), src, "1710034065")

	assert.Equal(t, models.OutcomeNotFound, result.Outcome)
	assert.Empty(t, result.Records)

	// The empty answer leaves exactly one informational entry behind.
	entries, err := st.ListErrors(context.Background(), store.ErrorFilter{Service: "fuente"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "not_found", entries[0].Kind)
	assert.Equal(t, "1710034065", entries[0].Identity)
}

func TestExecuteErrorWithoutFallbackTier(t *testing.T) {
	e, st := testExecutor(t)

	src := &Source{
		Name: "fuente",
		Lightweight: func(ctx context.Context, identity string) (*models.Extraction, error) {
			return nil, NewParseError("tabla irreconocible", nil)
		},
	}

	result := e.Execute(context.Background(), src, "1710034065")

	assert.Equal(t, models.OutcomeError, result.Outcome)

	entries, err := st.ListErrors(context.Background(), store.ErrorFilter{Service: "fuente"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "parse", entries[0].Kind)
	assert.Equal(t, "1710034065", entries[0].Identity)
}

func TestExecuteBlockedOnChallengeTimeout(t *testing.T) {
	e, st := testExecutor(t)

	src := &Source{
		Name: "fuente",
		Heavyweight: func(ctx context.Context, identity string) (*models.Extraction, error) {
			return nil, fmt.Errorf("incapsula: %w", challenge.ErrTimedOut)
		},
	}

	result := e.Execute(context.Background(), src, "1710034065")

	assert.Equal(t, models.OutcomeBlocked, result.Outcome)

	entries, err := st.ListErrors(context.Background(), store.ErrorFilter{Kind: "challenge_timeout"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExecutePersistFailure(t *testing.T) {
	e, _ := testExecutor(t)

	src := &Source{
		Name: "fuente",
		Lightweight: func(ctx context.Context, identity string) (*models.Extraction, error) {
			return recordsExtraction(1), nil
		},
		Persist: func(ctx context.Context, st *store.Store, identity string, ex *models.Extraction) (string, error) {
			return "", errors.New("disco lleno")
		},
	}

	result := e.Execute(context.Background(), src, "1710034065")

	assert.Equal(t, models.OutcomeError, result.Outcome)
	// The extracted data still travels back to the caller.
	assert.Len(t, result.Records, 1)
}

func TestExecutePersistMessage(t *testing.T) {
	e, _ := testExecutor(t)

	src := &Source{
		Name: "fuente",
		Lightweight: func(ctx context.Context, identity string) (*models.Extraction, error) {
			return recordsExtraction(3), nil
		},
		Persist: func(ctx context.Context, st *store.Store, identity string, ex *models.Extraction) (string, error) {
			return "consulta exitosa, 3 citaciones nuevas", nil
		},
	}

	result := e.Execute(context.Background(), src, "1710034065")

	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "consulta exitosa, 3 citaciones nuevas", result.Message)
}

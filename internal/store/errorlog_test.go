package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndListErrors(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordError(ctx, "citaciones-judiciales", "1710034065", "network", "timeout"))
	require.NoError(t, s.RecordError(ctx, "datos-iess", "1710034065", "challenge_timeout", "wall"))
	require.NoError(t, s.RecordError(ctx, "citaciones-judiciales", "0910034065", "parse", "bad table"))

	all, err := s.ListErrors(ctx, ErrorFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "parse", all[0].Kind)

	byService, err := s.ListErrors(ctx, ErrorFilter{Service: "citaciones-judiciales"})
	require.NoError(t, err)
	assert.Len(t, byService, 2)

	byIdentity, err := s.ListErrors(ctx, ErrorFilter{Identity: "1710034065"})
	require.NoError(t, err)
	assert.Len(t, byIdentity, 2)

	byKind, err := s.ListErrors(ctx, ErrorFilter{Kind: "challenge_timeout"})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "datos-iess", byKind[0].Service)

	limited, err := s.ListErrors(ctx, ErrorFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestErrorStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordError(ctx, "interpol", "JUAN|PEREZ", "network", "dns"))
	require.NoError(t, s.RecordError(ctx, "interpol", "ANA|DIAZ", "network", "dns"))
	require.NoError(t, s.RecordError(ctx, "sri-deudas", "1710034065001", "parse", "layout"))

	stats, err := s.ErrorStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats["total"])

	byService := stats["by_service"].(map[string]int)
	assert.Equal(t, 2, byService["interpol"])

	byKind := stats["by_kind"].(map[string]int)
	assert.Equal(t, 2, byKind["network"])
}

func TestPurgeErrorsBefore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordError(ctx, "interpol", "x", "network", "old"))

	removed, err := s.PurgeErrorsBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := s.ListErrors(ctx, ErrorFilter{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

package services

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/consulta-api/internal/config"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// poolService builds a pool around pre-made contexts without launching
// any real browser.
func poolService(contexts ...*ChromeBrowserContext) *BrowserService {
	s := &BrowserService{
		config:   config.BrowserConfig{MaxBrowsers: 4, MinBrowsers: 1},
		logger:   testLogger(),
		pool:     make(chan *ChromeBrowserContext, 4),
		contexts: append([]*ChromeBrowserContext{}, contexts...),
	}
	for _, ctx := range contexts {
		s.pool <- ctx
	}
	return s
}

func stubBrowser(id string) *ChromeBrowserContext {
	return &ChromeBrowserContext{id: id, healthy: true}
}

func TestSwapTracksReplacement(t *testing.T) {
	dead := stubBrowser("dead")
	fresh := stubBrowser("fresh")
	s := poolService(dead)

	s.swap(dead, fresh)

	require.Len(t, s.contexts, 1)
	assert.Equal(t, "fresh", s.contexts[0].GetID())
}

func TestSwapDropsDeadWithoutReplacement(t *testing.T) {
	dead := stubBrowser("dead")
	kept := stubBrowser("kept")
	s := poolService(kept, dead)

	s.swap(dead, nil)

	require.Len(t, s.contexts, 1)
	assert.Equal(t, "kept", s.contexts[0].GetID())
}

func TestSwapAppendsUntrackedReplacement(t *testing.T) {
	s := poolService()

	s.swap(stubBrowser("never-tracked"), stubBrowser("fresh"))

	require.Len(t, s.contexts, 1)
	assert.Equal(t, "fresh", s.contexts[0].GetID())
}

func TestCloseShutsDownPoolMembers(t *testing.T) {
	// A pool member the tracked set lost sight of must still be shut
	// down when the pool drains.
	stray := stubBrowser("stray")
	tracked := stubBrowser("tracked")
	s := poolService(tracked)
	s.pool <- stray

	require.NoError(t, s.Close())

	assert.False(t, tracked.IsHealthy())
	assert.False(t, stray.IsHealthy())

	_, err := s.GetBrowser(context.Background())
	assert.Error(t, err)
}

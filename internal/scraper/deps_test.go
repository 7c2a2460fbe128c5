package scraper

import (
	"net/http"

	"github.com/civicdata/consulta-api/internal/config"
)

// newTestDeps points every portal at the same test server.
func newTestDeps(base string, client *http.Client) *Deps {
	return &Deps{
		HTTP: client,
		Portals: config.PortalsConfig{
			JudicialBase:  base,
			PensionBase:   base,
			TransitBase:   base,
			ProcessesBase: base,
			InterpolBase:  base,
		},
		UserAgent: "test-agent",
		Logger:    testLogger(),
	}
}

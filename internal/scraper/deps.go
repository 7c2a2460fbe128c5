package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/challenge"
	"github.com/civicdata/consulta-api/internal/config"
	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/ocr"
	"github.com/civicdata/consulta-api/internal/services"
)

// Deps bundles everything a source needs to build its strategies.
type Deps struct {
	HTTP      *http.Client
	Browser   services.BrowserServiceInterface
	OCR       *ocr.Client
	Portals   config.PortalsConfig
	Challenge config.ChallengeConfig
	UserAgent string
	Logger    *logrus.Logger
}

// withBrowser acquires a pooled browser for the duration of fn and
// always returns it afterwards.
func (d *Deps) withBrowser(ctx context.Context, fn func(ctx context.Context, b services.BrowserContext) (*models.Extraction, error)) (*models.Extraction, error) {
	b, err := d.Browser.GetBrowser(ctx)
	if err != nil {
		return nil, NewNetworkError("acquire browser", err)
	}
	defer d.Browser.ReleaseBrowser(b)
	return fn(ctx, b)
}

// pageProbe samples the current page HTML for challenge monitoring.
func pageProbe(b services.BrowserContext) challenge.Probe {
	return func(ctx context.Context) (string, error) {
		return b.GetHTML(ctx)
	}
}

// pause sleeps for d unless the context ends first. Portal front ends
// re-render asynchronously after interactions, with no event to await.
func pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// awaitChallenges clears the Incapsula and hCaptcha walls in order,
// waiting for out of band resolution when either is present.
func (d *Deps) awaitChallenges(ctx context.Context, b services.BrowserContext) error {
	incapsula := challenge.NewMonitor(d.Challenge.PollInterval, d.Challenge.IncapsulaAttempts, d.Logger)
	if _, err := incapsula.Wait(ctx, "incapsula", pageProbe(b), challenge.IsIncapsula); err != nil {
		return err
	}

	captcha := challenge.NewMonitor(d.Challenge.PollInterval, d.Challenge.CaptchaAttempts, d.Logger)
	if _, err := captcha.Wait(ctx, "hcaptcha", pageProbe(b), challenge.IsHCaptcha); err != nil {
		return err
	}
	return nil
}

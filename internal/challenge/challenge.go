package challenge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTimedOut is returned when a challenge outlives the whole
// monitoring window.
var ErrTimedOut = errors.New("challenge not resolved within monitoring window")

// Verdict is the terminal state of one monitoring window.
type Verdict string

const (
	// Clear means no challenge was present on the first probe.
	Clear Verdict = "clear"

	// Resolved means a challenge was present and went away within the
	// window. Resolution happens out of band over the remote display;
	// the monitor only observes.
	Resolved Verdict = "resolved"

	// TimedOut means the challenge outlived the whole window.
	TimedOut Verdict = "timed_out"
)

// Probe samples the current page and returns its HTML.
type Probe func(ctx context.Context) (string, error)

// Detector reports whether a page snapshot is an interstitial wall.
type Detector func(html string) bool

// IsIncapsula detects the Incapsula interstitial.
func IsIncapsula(html string) bool {
	return strings.Contains(html, "main-iframe") || strings.Contains(html, "Incapsula")
}

// IsHCaptcha detects an hCaptcha widget.
func IsHCaptcha(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "h-captcha") || strings.Contains(lower, "hcaptcha")
}

// Monitor polls a page until a challenge clears or the attempt budget is
// spent. Challenges are never solved programmatically.
type Monitor struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      *logrus.Logger
}

// NewMonitor builds a monitor with the given poll budget.
func NewMonitor(interval time.Duration, maxAttempts int, logger *logrus.Logger) *Monitor {
	return &Monitor{Interval: interval, MaxAttempts: maxAttempts, Logger: logger}
}

// Wait probes once immediately and then once per interval, up to
// MaxAttempts probes in total. It returns Clear if the first probe shows
// no challenge, Resolved if a later probe shows it gone, and TimedOut
// with ErrTimedOut when the budget is exhausted. Context cancellation
// aborts the wait.
func (m *Monitor) Wait(ctx context.Context, name string, probe Probe, detect Detector) (Verdict, error) {
	log := m.Logger.WithField("challenge", name)

	for attempt := 1; attempt <= m.MaxAttempts; attempt++ {
		html, err := probe(ctx)
		if err != nil {
			return TimedOut, fmt.Errorf("challenge probe: %w", err)
		}

		if !detect(html) {
			if attempt == 1 {
				return Clear, nil
			}
			log.WithField("attempt", attempt).Info("Challenge resolved")
			return Resolved, nil
		}

		if attempt == 1 {
			log.WithField("max_attempts", m.MaxAttempts).Warn("Challenge detected, waiting for manual resolution")
		}

		if attempt == m.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return TimedOut, fmt.Errorf("challenge wait: %w", ctx.Err())
		case <-time.After(m.Interval):
		}
	}

	log.Warn("Challenge monitoring window exhausted")
	return TimedOut, fmt.Errorf("%s: %w", name, ErrTimedOut)
}

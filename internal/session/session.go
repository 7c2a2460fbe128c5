package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// ErrTokenNotFound is returned when negotiation cannot locate the server
// state token in the entry page.
var ErrTokenNotFound = errors.New("session token not found in page")

// viewStateRe locates the JSF server state token in an entry page. The
// attribute order varies between portal versions, so only the name/value
// pair is anchored.
var viewStateRe = regexp.MustCompile(`name="javax\.faces\.ViewState"[^>]*value="([^"]+)"`)

// State is the negotiated session handed to every subsequent request of
// one consultation flow. It is a value: callers never mutate it, a new
// negotiation produces a new State.
type State struct {
	ViewState string
	Cookies   []*http.Cookie
}

// CookieHeader renders the session cookies for a raw Cookie header.
func (s *State) CookieHeader() string {
	parts := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Apply attaches the session cookies to an outgoing request.
func (s *State) Apply(req *http.Request) {
	for _, c := range s.Cookies {
		req.AddCookie(c)
	}
}

// Negotiate fetches the portal entry page and extracts the server state
// token plus the session cookies issued alongside it. A page without a
// token yields ErrTokenNotFound; the caller must not proceed with
// guessed or stale tokens.
func Negotiate(ctx context.Context, client *http.Client, entryURL string) (*State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build entry request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch entry page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entry page status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read entry page: %w", err)
	}

	m := viewStateRe.FindSubmatch(body)
	if m == nil {
		return nil, ErrTokenNotFound
	}

	return &State{
		ViewState: string(m[1]),
		Cookies:   resp.Cookies(),
	}, nil
}

// ExtractViewState pulls a state token out of an arbitrary HTML
// fragment. Used when a portal rotates the token inside a partial
// response.
func ExtractViewState(html string) (string, bool) {
	m := viewStateRe.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}
	return m[1], true
}

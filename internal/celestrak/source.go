// Package celestrak fetches single-satellite element sets from the public
// catalog, either directly or through a JSON relay mirror.
package celestrak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultDirectURL is the catalog query; %s is the catalog number.
	DefaultDirectURL = "https://celestrak.org/NORAD/elements/gp.php?CATNR=%s&FORMAT=TLE"
	// DefaultMirrorURL is the relay; %s is the escaped direct URL.
	DefaultMirrorURL = "https://api.allorigins.win/get?url=%s"

	// DefaultTimeout bounds a single fetch attempt.
	DefaultTimeout = 30 * time.Second

	// maxBodyBytes caps a response; a single element set is under 200 bytes.
	maxBodyBytes = 1 << 20
)

// Source fetches the raw text for one catalog number.
type Source interface {
	Name() string
	Fetch(ctx context.Context, noradID string) (string, error)
}

// StatusError is a non-200 response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Direct queries the catalog and returns its plain-text response.
type Direct struct {
	urlTemplate string
	httpClient  *http.Client
}

// NewDirect creates a Direct source. An empty template selects
// DefaultDirectURL; a non-positive timeout selects DefaultTimeout.
func NewDirect(urlTemplate string, timeout time.Duration) *Direct {
	if urlTemplate == "" {
		urlTemplate = DefaultDirectURL
	}
	return &Direct{
		urlTemplate: urlTemplate,
		httpClient:  newClient(timeout),
	}
}

// Name implements Source.
func (d *Direct) Name() string { return "Direct" }

// URL returns the query URL for a catalog number.
func (d *Direct) URL(noradID string) string {
	return fmt.Sprintf(d.urlTemplate, url.QueryEscape(noradID))
}

// Fetch implements Source.
func (d *Direct) Fetch(ctx context.Context, noradID string) (string, error) {
	body, err := get(ctx, d.httpClient, d.URL(noradID))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Mirror fetches the same catalog URL through a relay that wraps the
// upstream body as {"contents": "..."}.
type Mirror struct {
	urlTemplate string
	upstream    *Direct
	httpClient  *http.Client
}

// NewMirror creates a Mirror relaying upstream. An empty template selects
// DefaultMirrorURL.
func NewMirror(urlTemplate string, upstream *Direct, timeout time.Duration) *Mirror {
	if urlTemplate == "" {
		urlTemplate = DefaultMirrorURL
	}
	return &Mirror{
		urlTemplate: urlTemplate,
		upstream:    upstream,
		httpClient:  newClient(timeout),
	}
}

// Name implements Source.
func (m *Mirror) Name() string { return "AllOrigins" }

type relayResponse struct {
	Contents string `json:"contents"`
}

// Fetch implements Source. The relay envelope is removed before returning.
func (m *Mirror) Fetch(ctx context.Context, noradID string) (string, error) {
	target := fmt.Sprintf(m.urlTemplate, url.QueryEscape(m.upstream.URL(noradID)))
	body, err := get(ctx, m.httpClient, target)
	if err != nil {
		return "", err
	}

	var rr relayResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return "", fmt.Errorf("decoding relay response: %w", err)
	}
	if strings.TrimSpace(rr.Contents) == "" {
		return "", errors.New("relay response has no contents")
	}
	return rr.Contents, nil
}

func newClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func get(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching element set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}
	return body, nil
}

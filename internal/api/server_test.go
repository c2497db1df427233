package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/star/passwatch/internal/auth"
	"github.com/star/passwatch/internal/passes"
	"github.com/star/passwatch/internal/snapshot"
	"github.com/star/passwatch/internal/tle"
	"github.com/star/passwatch/internal/transform"
)

var t0 = time.Date(2025, 9, 24, 7, 0, 0, 0, time.UTC)

const (
	issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993"
	issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeTracker reports the satellite overhead for northern stations and a
// pass starting ten minutes out everywhere else.
type fakeTracker struct{}

func (fakeTracker) ElevationAt(obs transform.Observer, t time.Time) (float64, error) {
	if obs.LatRad > 0 {
		return 12, nil
	}
	return -30, nil
}

func (fakeTracker) Events(ctx context.Context, obs transform.Observer, start, end time.Time) ([]passes.Event, error) {
	if obs.LatRad > 0 {
		return []passes.Event{{Time: start.Add(4 * time.Minute), Kind: passes.Set}}, nil
	}
	return []passes.Event{
		{Time: start.Add(10 * time.Minute), Kind: passes.Rise},
		{Time: start.Add(15 * time.Minute), Kind: passes.Culminate},
		{Time: start.Add(20 * time.Minute), Kind: passes.Set},
	}, nil
}

func fakeFactory(set tle.ElementSet) (passes.Tracker, error) {
	if strings.Contains(set.Line1, "BAD") {
		return nil, errors.New("malformed line 1")
	}
	return fakeTracker{}, nil
}

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	if opts.Passes == nil {
		opts.Passes = passes.NewService(passes.Config{
			Tracker: fakeFactory,
			Now:     func() time.Time { return t0 },
		}, testLogger())
	}
	if opts.Snapshots == nil {
		opts.Snapshots = snapshot.NewStore(filepath.Join(t.TempDir(), "tle_data.json"))
	}
	return NewServer(opts, testLogger()).Handler()
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/next_pass_all", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNextPassAll(t *testing.T) {
	h := newTestServer(t, Options{})

	w := post(h, `{"tle1":"1 x","tle2":"2 x","stations":[
		{"name":"Xanthi","lat":41.14,"lng":24.88,"hgt_m":60},
		{"name":"Hobart","lat":-42.88,"lng":147.33,"hgt_m":0}
	]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var got map[string]struct {
		AOS   *time.Time `json:"aos"`
		LOS   *time.Time `json:"los"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d stations", len(got))
	}

	x := got["Xanthi"]
	if x.AOS == nil || !x.AOS.Equal(t0) || x.LOS == nil || !x.LOS.Equal(t0.Add(4*time.Minute)) {
		t.Errorf("Xanthi = %+v", x)
	}
	h2 := got["Hobart"]
	if h2.AOS == nil || !h2.AOS.Equal(t0.Add(10*time.Minute)) || h2.LOS == nil || !h2.LOS.Equal(t0.Add(20*time.Minute)) {
		t.Errorf("Hobart = %+v", h2)
	}
	if !strings.Contains(w.Body.String(), `"aos":"2025-09-24T07:00:00Z"`) {
		t.Errorf("AOS not ISO-8601 UTC: %s", w.Body.String())
	}
}

func TestNextPassAllNullWindow(t *testing.T) {
	h := newTestServer(t, Options{
		Passes: passes.NewService(passes.Config{
			Tracker: func(tle.ElementSet) (passes.Tracker, error) { return quietTracker{}, nil },
			Now:     func() time.Time { return t0 },
		}, testLogger()),
	})

	w := post(h, `{"tle1":"1 x","tle2":"2 x","stations":[{"name":"Pole","lat":-90,"lng":0,"hgt_m":2800}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"Pole":{"aos":null,"los":null}}` {
		t.Errorf("body = %s", got)
	}
}

type quietTracker struct{}

func (quietTracker) ElevationAt(transform.Observer, time.Time) (float64, error) { return -5, nil }
func (quietTracker) Events(context.Context, transform.Observer, time.Time, time.Time) ([]passes.Event, error) {
	return nil, nil
}

func TestNextPassAllBadRequests(t *testing.T) {
	h := newTestServer(t, Options{})

	tests := []struct {
		name    string
		body    string
		want    int
		wantErr string
	}{
		{"malformed json", `{"tle1":`, http.StatusBadRequest, "invalid JSON"},
		{"missing tle2", `{"tle1":"1 x","stations":[]}`, http.StatusBadRequest, "tle1 and tle2"},
		{"missing stations", `{"tle1":"1 x","tle2":"2 x"}`, http.StatusBadRequest, "stations is required"},
		{"station missing hgt_m", `{"tle1":"1 x","tle2":"2 x","stations":[{"name":"A","lat":1,"lng":2}]}`, http.StatusBadRequest, "hgt_m"},
		{"station wrong type", `{"tle1":"1 x","tle2":"2 x","stations":[{"name":"A","lat":"north","lng":2,"hgt_m":0}]}`, http.StatusBadRequest, "invalid JSON"},
		{"empty station name", `{"tle1":"1 x","tle2":"2 x","stations":[{"name":"","lat":1,"lng":2,"hgt_m":0}]}`, http.StatusBadRequest, "no name"},
		{"duplicate station", `{"tle1":"1 x","tle2":"2 x","stations":[{"name":"A","lat":1,"lng":2,"hgt_m":0},{"name":"A","lat":3,"lng":4,"hgt_m":0}]}`, http.StatusBadRequest, "duplicate"},
		{"empty tle line", `{"tle1":"","tle2":"2 x","stations":[]}`, http.StatusBadRequest, "required"},
		{"invalid element set", `{"tle1":"1 BAD","tle2":"2 x","stations":[]}`, http.StatusBadRequest, "invalid element set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(h, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.Contains(resp["error"], tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", resp["error"], tt.wantErr)
			}
		})
	}
}

func TestNextPassAllLimits(t *testing.T) {
	h := newTestServer(t, Options{})

	big := `{"tle1":"1 x","tle2":"2 x","pad":"` + strings.Repeat("x", maxRequestBytes) + `","stations":[]}`
	if w := post(h, big); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d", w.Code)
	}

	var sb strings.Builder
	sb.WriteString(`{"tle1":"1 x","tle2":"2 x","stations":[`)
	for i := 0; i <= maxStations; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(`{"name":"s` + strconv.Itoa(i) + `","lat":1,"lng":1,"hgt_m":0}`)
	}
	sb.WriteString(`]}`)
	w := post(h, sb.String())
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "at most") {
		t.Errorf("too many stations: %d %s", w.Code, w.Body.String())
	}
}

func TestNextPassAllEmptyStations(t *testing.T) {
	h := newTestServer(t, Options{})
	w := post(h, `{"tle1":"1 x","tle2":"2 x","stations":[]}`)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "{}" {
		t.Errorf("got %d %s", w.Code, w.Body.String())
	}
}

func TestNextPassAllRealPropagation(t *testing.T) {
	svc := passes.NewService(passes.Config{
		Now: func() time.Time { return time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC) },
	}, testLogger())
	h := newTestServer(t, Options{Passes: svc})

	body := `{"tle1":"` + issLine1 + `","tle2":"` + issLine2 + `","stations":[{"name":"Xanthi","lat":41.1418,"lng":24.8836,"hgt_m":60}]}`
	w := post(h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var got map[string]passes.Window
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	x, ok := got["Xanthi"]
	if !ok || x.Error != "" {
		t.Fatalf("Xanthi = %+v", x)
	}
	// The ISS passes over mid-latitudes several times a day.
	if x.AOS == nil || x.LOS == nil || !x.LOS.After(*x.AOS) {
		t.Errorf("window = %v / %v", x.AOS, x.LOS)
	}
}

func TestNextPassAllMethod(t *testing.T) {
	h := newTestServer(t, Options{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/next_pass_all", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", w.Code)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tle_data.json")
	store := snapshot.NewStore(path)
	h := newTestServer(t, Options{Snapshots: store})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/tle_data.json", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before load: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before load = %d", w.Code)
	}

	data, err := snapshot.New(t0).Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := snapshot.WriteFile(path, data); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Reload(); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/tle_data.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != string(raw) {
		t.Error("served snapshot differs from file")
	}
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("Pragma") != "no-cache" {
		t.Errorf("cache headers = %q / %q", w.Header().Get("Cache-Control"), w.Header().Get("Pragma"))
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("readyz after load = %d", w.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	static := fstest.MapFS{
		"index.html": {Data: []byte("<html>passwatch</html>")},
		"app.js":     {Data: []byte("console.log('hi')")},
	}
	h := newTestServer(t, Options{Static: static})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "passwatch") {
		t.Errorf("GET / = %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/app.js", nil))
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("GET /app.js = %d, Cache-Control %q", w.Code, w.Header().Get("Cache-Control"))
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Options{Auth: auth.Config{Enabled: true, Token: "s3cret"}})

	req := httptest.NewRequest("OPTIONS", "/next_pass_all", nil)
	req.Header.Set("Origin", "https://ops.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type, authorization")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "content-type, authorization" {
		t.Errorf("Allow-Headers = %q", got)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("Allow-Methods = %q", w.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestAuthProtectsComputeOnly(t *testing.T) {
	h := newTestServer(t, Options{Auth: auth.Config{Enabled: true, Token: "s3cret"}})

	body := `{"tle1":"1 x","tle2":"2 x","stations":[]}`
	if w := post(h, body); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", w.Code)
	}

	req := httptest.NewRequest("POST", "/next_pass_all", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with token: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
}

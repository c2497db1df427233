package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		cfg    Config
		method string
		path   string
		header string
		want   int
	}{
		{"disabled", Config{}, "POST", "/next_pass_all", "", http.StatusNoContent},
		{"missing token", Config{Enabled: true, Token: "s3cret"}, "POST", "/next_pass_all", "", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, "POST", "/next_pass_all", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", Config{Enabled: true, Token: "s3cret"}, "POST", "/next_pass_all", "s3cret", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, "POST", "/next_pass_all", "Bearer s3cret", http.StatusNoContent},
		{"preflight", Config{Enabled: true, Token: "s3cret"}, "OPTIONS", "/next_pass_all", "", http.StatusNoContent},
		{"snapshot public", Config{Enabled: true, Token: "s3cret"}, "GET", "/tle_data.json", "", http.StatusNoContent},
		{"static public", Config{Enabled: true, Token: "s3cret"}, "GET", "/", "", http.StatusNoContent},
		{"probe public", Config{Enabled: true, Token: "s3cret"}, "GET", "/healthz", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Middleware(tt.cfg)(ok).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

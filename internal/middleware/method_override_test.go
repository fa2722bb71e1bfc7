package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestMethodOverrideMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        string
	}{
		{"query PUT", http.MethodPost, "/listings/1?_method=PUT", "multipart/form-data; boundary=x", "", http.MethodPut},
		{"query lowercase delete", http.MethodPost, "/listings/1?_method=delete", "", "", http.MethodDelete},
		{"form field DELETE", http.MethodPost, "/listings/1", "application/x-www-form-urlencoded", url.Values{"_method": {"DELETE"}}.Encode(), http.MethodDelete},
		{"unsupported override", http.MethodPost, "/listings/1?_method=TRACE", "", "", http.MethodPost},
		{"GET is never overridden", http.MethodGet, "/listings/1?_method=DELETE", "", "", http.MethodGet},
		{"no override", http.MethodPost, "/listings", "application/x-www-form-urlencoded", "title=x", http.MethodPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := NewMethodOverrideMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Method
			}))

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("method = %s, want %s", got, tt.want)
			}
		})
	}
}

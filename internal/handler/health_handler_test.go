package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("dial tcp: refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   healthResponse
	}{
		{
			name:       "all healthy",
			checks:     map[string]HealthCheck{"postgres": ok, "mongo": ok},
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok", Checks: map[string]string{"postgres": "ok", "mongo": "ok"}},
		},
		{
			name:       "image store down",
			checks:     map[string]HealthCheck{"postgres": ok, "mongo": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   healthResponse{Status: "unavailable", Checks: map[string]string{"postgres": "ok", "mongo": "unavailable"}},
		},
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HealthHandler(tt.checks)(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var got healthResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Status != tt.wantBody.Status || len(got.Checks) != len(tt.wantBody.Checks) {
				t.Fatalf("body = %+v, want %+v", got, tt.wantBody)
			}
			for k, v := range tt.wantBody.Checks {
				if got.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, got.Checks[k], v)
				}
			}
		})
	}
}

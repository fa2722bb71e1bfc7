package security

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	client := NewSSRFGuard().NewSafeClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout %v, got %v", 5*time.Second, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://images.unsplash.com/photo-1552733407?w=800", false},
		{"http://cdn.example.org/villa.jpg", false},
		{"http://10.0.0.1/a.png", true},
		{"http://172.16.0.1/a.png", true},
		{"http://192.168.1.100/a.png", true},
		{"http://127.0.0.1/a.png", true},
		{"http://localhost/a.png", true},
		{"http://api.localhost/a.png", true},
		{"http://169.254.169.254/latest/meta-data/", true},
		{"http://[::1]/a.png", true},
		{"http://0.0.0.0/a.png", true},
		{"", true},
		{"not-a-url", true},
		{"ftp://example.com/a.png", true},
		{"file:///etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

// allowAll はテスト用に全URLを許可する。
type allowAll struct{}

func (allowAll) ValidateURL(string) error { return nil }

func TestImageFetcher_Fetch(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
		case "/sniff":
			w.Header()["Content-Type"] = nil
			w.Write(png)
		case "/big.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(bytes.Repeat([]byte{1}, 200))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	f := NewImageFetcher(allowAll{}, ts.Client(), 100)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		img, err := f.Fetch(ctx, ts.URL+"/ok.png")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if img.ContentType != "image/png" || !bytes.Equal(img.Data, png) {
			t.Errorf("unexpected image: %s %d bytes", img.ContentType, len(img.Data))
		}
	})

	t.Run("content type is sniffed when missing", func(t *testing.T) {
		img, err := f.Fetch(ctx, ts.URL+"/sniff")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if img.ContentType != "image/png" {
			t.Errorf("ContentType = %q, want image/png", img.ContentType)
		}
	})

	t.Run("too large", func(t *testing.T) {
		if _, err := f.Fetch(ctx, ts.URL+"/big.png"); !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("err = %v, want ErrImageTooLarge", err)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		if _, err := f.Fetch(ctx, ts.URL+"/page"); err == nil {
			t.Error("expected error for html response")
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := f.Fetch(ctx, ts.URL+"/missing"); err == nil {
			t.Error("expected error for 404")
		}
	})
}

func TestImageFetcher_RejectsBlockedURLBeforeRequest(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	f := NewImageFetcher(NewSSRFGuard(), ts.Client(), 100)
	if _, err := f.Fetch(context.Background(), ts.URL+"/x.png"); err == nil {
		t.Fatal("expected loopback URL to be rejected")
	}
	if called {
		t.Error("server must not be contacted for a rejected URL")
	}
}

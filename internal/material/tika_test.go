package material

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTikaExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/tika" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Accept") != "text/plain" {
			t.Errorf("Accept = %q, want text/plain", r.Header.Get("Accept"))
		}
		if r.Header.Get("Content-Type") != "application/pdf" {
			t.Errorf("Content-Type = %q, want application/pdf", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "%PDF" {
			t.Errorf("body = %q", body)
		}
		_, _ = w.Write([]byte("Photosynthesis converts light into chemical energy."))
	}))
	defer server.Close()

	e := NewTikaExtractor(server.URL + "/")
	text, err := e.Extract(context.Background(), []byte("%PDF"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Photosynthesis converts light into chemical energy." {
		t.Errorf("Extract() = %q", text)
	}
}

func TestTikaExtractor_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unprocessable", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	if _, err := NewTikaExtractor(server.URL).Extract(context.Background(), []byte("x")); err == nil {
		t.Fatal("Extract() should fail on 422")
	}
}

func TestTikaExtractor_SizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"at limit", "0123456789", nil},
		{"one byte over", "0123456789X", ErrExtractedTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			text, err := NewTikaExtractor(server.URL, WithTikaMaxBytes(10)).Extract(context.Background(), []byte("%PDF"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Extract() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && text != tt.body {
				t.Errorf("Extract() = %q, want %q", text, tt.body)
			}
		})
	}
}

func TestTikaExtractor_Disabled(t *testing.T) {
	e := NewTikaExtractor("")
	if _, err := e.Extract(context.Background(), []byte("x")); !errors.Is(err, ErrExtractorDisabled) {
		t.Errorf("Extract() error = %v, want ErrExtractorDisabled", err)
	}
	if err := e.HealthCheck(context.Background()); !errors.Is(err, ErrExtractorDisabled) {
		t.Errorf("HealthCheck() error = %v, want ErrExtractorDisabled", err)
	}
}

func TestTikaExtractor_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte("Apache Tika 3.0.0"))
	}))
	defer server.Close()

	if err := NewTikaExtractor(server.URL).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

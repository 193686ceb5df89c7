// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package generate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

const redShader = `@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}`

func newServer(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL+"/api/"), WithHTTPClient(srv.Client())), &calls
}

func TestGenerate(t *testing.T) {
	var got Request
	var header http.Header
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate-shader" {
			http.Error(w, `{"error":"wrong route"}`, http.StatusNotFound)
			return
		}
		header = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{Shader: redShader})
	})

	src, err := c.Generate(context.Background(), "  a red circle\n")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if src != redShader {
		t.Errorf("shader = %q", src)
	}
	if got.Prompt != "a red circle" {
		t.Errorf("prompt sent = %q, want trimmed", got.Prompt)
	}
	if ct := header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := uuid.Parse(header.Get(RequestIDHeader)); err != nil {
		t.Errorf("%s = %q is not a UUID", RequestIDHeader, header.Get(RequestIDHeader))
	}
	if ua := header.Get("User-Agent"); ua != defaultUserAgent {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestGeneratePromptNFC(t *testing.T) {
	var got Request
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(Response{Shader: redShader})
	})
	// "e" followed by a combining acute accent.
	if _, err := c.Generate(context.Background(), "cafe\u0301"); err != nil {
		t.Fatal(err)
	}
	if got.Prompt != "caf\u00e9" {
		t.Errorf("prompt = %q, want NFC form", got.Prompt)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	c, calls := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{Shader: redShader})
	})
	for _, p := range []string{"", "   ", "\n\t"} {
		if _, err := c.Generate(context.Background(), p); !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("Generate(%q) error = %v, want ErrEmptyPrompt", p, err)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("server called %d times", n)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "content length zero",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Length", "0")
				w.WriteHeader(http.StatusOK)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Errorf("error = %v, want ErrEmptyResponse", err)
				}
			},
		},
		{
			name: "content length zero before status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Length", "0")
				w.WriteHeader(http.StatusInternalServerError)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Errorf("error = %v, want ErrEmptyResponse", err)
				}
			},
		},
		{
			name: "service error message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"bad prompt"}`)
			},
			check: func(t *testing.T, err error) {
				var serr *ServiceError
				if !errors.As(err, &serr) {
					t.Fatalf("error = %v, want *ServiceError", err)
				}
				if serr.Message != "bad prompt" || err.Error() != "bad prompt" {
					t.Errorf("message = %q", serr.Message)
				}
				if serr.Status != http.StatusBadRequest {
					t.Errorf("status = %d", serr.Status)
				}
			},
		},
		{
			name: "service error without message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, `<html>bad gateway</html>`)
			},
			check: func(t *testing.T, err error) {
				var serr *ServiceError
				if !errors.As(err, &serr) || serr.Message != "Failed to generate shader" {
					t.Errorf("error = %v, want default service message", err)
				}
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"shader":`)
			},
			check: func(t *testing.T, err error) {
				var serr *ServiceError
				if !errors.As(err, &serr) || serr.Status != http.StatusOK {
					t.Errorf("error = %v, want *ServiceError", err)
				}
			},
		},
		{
			name: "empty shader field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"shader":""}`)
			},
			check: func(t *testing.T, err error) {
				var serr *ServiceError
				if !errors.As(err, &serr) {
					t.Errorf("error = %v, want *ServiceError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newServer(t, tt.handler)
			src, err := c.Generate(context.Background(), "a red circle")
			if err == nil {
				t.Fatalf("Generate() = %q, want error", src)
			}
			tt.check(t, err)
		})
	}
}

func TestGenerateNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(url))
	_, err := c.Generate(context.Background(), "a red circle")
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if got := err.Error(); len(got) < 27 || got[:27] != "Failed to generate shader: " {
		t.Errorf("Error() = %q", got)
	}
}

func TestGenerateCanceled(t *testing.T) {
	release := make(chan struct{})
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Generate(ctx, "slow")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	_, err := c.Generate(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient()
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %v", c.timeout)
	}
	c = NewClient(WithBaseURL("http://example.test/api///"), WithUserAgent("x/1"), WithHTTPClient(nil))
	if c.BaseURL() != "http://example.test/api" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.userAgent != "x/1" || c.httpClient != http.DefaultClient {
		t.Error("options not applied")
	}
}

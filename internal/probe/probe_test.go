package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProber_AnyResponseIsAlive(t *testing.T) {
	codes := []int{http.StatusOK, http.StatusNoContent, http.StatusFound, http.StatusNotFound, http.StatusInternalServerError}

	for _, code := range codes {
		t.Run(http.StatusText(code), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("method = %s, want GET", r.Method)
				}
				if code == http.StatusFound {
					w.Header().Set("Location", "http://127.0.0.1:1/nowhere")
				}
				w.WriteHeader(code)
			}))
			defer ts.Close()

			if err := NewHTTPProber(time.Second).Probe(context.Background(), ts.URL); err != nil {
				t.Errorf("Probe() = %v, want nil", err)
			}
		})
	}
}

func TestHTTPProber_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	start := time.Now()
	err := NewHTTPProber(50*time.Millisecond).Probe(context.Background(), ts.URL)
	if err == nil {
		t.Fatal("Probe() = nil, want timeout failure")
	}

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Probe() error type = %T, want *Failure", err)
	}
	if !f.Timeout {
		t.Errorf("Failure.Timeout = false, want true (err=%v)", f.Err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe took %v, timeout not honoured", elapsed)
	}
}

func TestHTTPProber_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	err := NewHTTPProber(time.Second).Probe(context.Background(), url)
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Probe() = %v, want *Failure", err)
	}
	if f.URL != url {
		t.Errorf("Failure.URL = %q, want %q", f.URL, url)
	}
}

func TestHTTPProber_MalformedURL(t *testing.T) {
	err := NewHTTPProber(time.Second).Probe(context.Background(), "http://bad host/\x7f")
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Probe() = %v, want *Failure", err)
	}
	if f.Timeout {
		t.Error("malformed URL reported as timeout")
	}
}

func TestNewHTTPProber_DefaultTimeout(t *testing.T) {
	if got := NewHTTPProber(0).Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DefaultTimeout)
	}
}

package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Failure is a probe that did not get a response: a transport error, a
// timeout, or a request that could not be built.
type Failure struct {
	URL     string
	Timeout bool
	Err     error
}

func (f *Failure) Error() string {
	if f.Timeout {
		return fmt.Sprintf("probe %s timed out: %v", f.URL, f.Err)
	}
	return fmt.Sprintf("probe %s failed: %v", f.URL, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Prober checks a single URL. A nil error means the target answered.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber issues a GET and treats any HTTP response, whatever its status
// code, as proof of life.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProber returns a prober whose requests give up after timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPProber{
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// The redirect response itself is an answer.
				return http.ErrUseLastResponse
			},
		},
	}
}

// Timeout returns the per-probe deadline.
func (p *HTTPProber) Timeout() time.Duration { return p.timeout }

// Probe implements Prober. Errors are always *Failure.
func (p *HTTPProber) Probe(ctx context.Context, url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Failure{URL: url, Err: fmt.Errorf("panic while probing: %v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return &Failure{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &Failure{URL: url, Timeout: isTimeout(ctx, err), Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
	}()

	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

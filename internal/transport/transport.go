// Package transport provides the outbound HTTP client shared by the
// statistics, token and tile requests.
package transport

import (
	"crypto/tls"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/ndvimap/internal/metrics"
)

// DefaultTimeout bounds every outbound request.
const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP/1.1 client with request logging and metrics.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Transport: &RequestLogger{
			Next: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Timeout: timeout,
	}
}

// RequestLogger is a RoundTripper that logs and measures outbound requests.
type RequestLogger struct {
	Next http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (l *RequestLogger) RoundTrip(r *http.Request) (*http.Response, error) {
	next := l.Next
	if next == nil {
		next = http.DefaultTransport
	}

	start := time.Now()
	resp, err := next.RoundTrip(r)
	elapsed := time.Since(start)

	metrics.UpstreamDuration.WithLabelValues(r.Method, r.URL.Host).Observe(elapsed.Seconds())

	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(r.Method, r.URL.Host, "error").Inc()
		log.Debug().
			Err(err).
			Str("method", r.Method).
			Str("host", r.URL.Host).
			Str("path", r.URL.Path).
			Dur("duration", elapsed).
			Msg("Request failed")
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues(r.Method, r.URL.Host, strconv.Itoa(resp.StatusCode)).Inc()
	log.Debug().
		Str("method", r.Method).
		Str("host", r.URL.Host).
		Str("path", r.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Msg("Request processed")

	return resp, nil
}

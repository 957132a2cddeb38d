package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/engine"
)

const (
	DefaultEndpoint = "https://httpbin.org/ip"
	DefaultProxyURL = "socks5h://127.0.0.1:9050"

	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 5 * time.Second

	// maxBody bounds the echo response read
	maxBody = 64 << 10
)

// HTTPProbe asks an IP echo endpoint for the exit address through a proxy
type HTTPProbe struct {
	client   *http.Client
	endpoint string
	proxy    string
	attempts int
	backoff  time.Duration
	clock    Clock
	log      *zap.Logger
}

// HTTPOption configures an HTTPProbe
type HTTPOption func(*HTTPProbe)

// WithRetry sets the attempt count and the fixed wait between attempts
func WithRetry(attempts int, backoff time.Duration) HTTPOption {
	return func(p *HTTPProbe) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if backoff >= 0 {
			p.backoff = backoff
		}
	}
}

// WithProbeLogger attaches a logger
func WithProbeLogger(log *zap.Logger) HTTPOption {
	return func(p *HTTPProbe) {
		if log != nil {
			p.log = log
		}
	}
}

// WithProbeClock sets the timestamp source
func WithProbeClock(c Clock) HTTPOption {
	return func(p *HTTPProbe) {
		if c != nil {
			p.clock = c
		}
	}
}

// NewHTTPProbe builds a probe routed through proxyURL; an empty proxyURL connects directly
// socks5h is accepted and mapped to socks5, which already resolves names on the proxy
func NewHTTPProbe(proxyName, proxyURL, endpoint string, timeout time.Duration, opts ...HTTPOption) (*HTTPProbe, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if u.Scheme == "socks5h" {
			u.Scheme = "socks5"
		}
		transport.Proxy = http.ProxyURL(u)
	}

	p := &HTTPProbe{
		client:   &http.Client{Transport: transport, Timeout: timeout},
		endpoint: endpoint,
		proxy:    proxyName,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		clock:    engine.NewMonotonicTimeProvider(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type echoResponse struct {
	Origin string `json:"origin"`
}

// ProbeIdentity fetches the exit address, retrying failed attempts
// Location is not resolved and stays empty
func (p *HTTPProbe) ProbeIdentity(ctx context.Context) (Identity, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		start := p.clock.Now()
		addr, err := p.fetch(ctx)
		if err == nil {
			return Identity{
				ID:        uuid.New(),
				Address:   addr,
				Proxy:     p.proxy,
				Latency:   p.clock.Now().Sub(start),
				Timestamp: p.clock.Now(),
			}, nil
		}
		lastErr = err
		p.log.Warn("identity probe failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == p.attempts || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(p.backoff):
			continue
		}
		break
	}
	return Identity{}, &ProbeError{Probe: "http", Err: lastErr}
}

func (p *HTTPProbe) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	var echo echoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&echo); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	// httpbin reports "client, proxy" when forwarded; the first hop is the exit
	origin := strings.TrimSpace(strings.Split(echo.Origin, ",")[0])
	if origin == "" {
		return "", errors.New("empty origin in response")
	}
	return origin, nil
}

// Package proxies keeps the list of known upstream proxies grouped by kind.
package proxies

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProxy is returned when a proxy lacks a name or URL, or has an unknown kind
var ErrInvalidProxy = errors.New("invalid proxy")

// Kind groups proxies by protocol
type Kind string

const (
	KindTor   Kind = "tor"
	KindHTTP  Kind = "http"
	KindSOCKS Kind = "socks"
)

// Kinds lists every kind in display order
var Kinds = []Kind{KindTor, KindHTTP, KindSOCKS}

// ParseKind validates a kind name, case-insensitive
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidProxy, s)
}

// Status is the outcome of the last connectivity test
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Proxy is one upstream endpoint
type Proxy struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Kind   Kind   `yaml:"-"`
	Status Status `yaml:"status,omitempty"`
}

// Active reports whether the proxy passed its last test
func (p Proxy) Active() bool {
	return p.Status == StatusActive
}

// Defaults is the built-in proxy list
func Defaults() []Proxy {
	return []Proxy{
		{Kind: KindTor, Name: "Local Tor", URL: "socks5h://127.0.0.1:9050", Status: StatusActive},
		{Kind: KindHTTP, Name: "HTTP Proxy 1", URL: "http://example-proxy.com:8080", Status: StatusInactive},
		{Kind: KindHTTP, Name: "HTTP Proxy 2", URL: "http://example-proxy2.com:8080", Status: StatusActive},
		{Kind: KindSOCKS, Name: "SOCKS Proxy 1", URL: "socks5://example-socks.com:1080", Status: StatusInactive},
		{Kind: KindSOCKS, Name: "SOCKS Proxy 2", URL: "socks5://example-socks2.com:1080", Status: StatusActive},
	}
}

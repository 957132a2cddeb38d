// Package identity models the exit identity seen by remote hosts and the
// probes that discover it after a rotation.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Location is the geolocation attached to an address
type Location struct {
	Country  string
	Region   string
	City     string
	Org      string
	Timezone string
}

// Identity is one observed exit address
type Identity struct {
	ID        uuid.UUID
	Address   string
	Proxy     string
	Location  Location
	Latency   time.Duration
	Timestamp time.Time
}

// IsZero reports whether no identity has been observed
func (i Identity) IsZero() bool {
	return i.Address == ""
}

// Initial is the identity shown before the first rotation completes
func Initial(now time.Time) Identity {
	return Identity{
		ID:      uuid.New(),
		Address: "123.45.67.89",
		Proxy:   "Local Tor",
		Location: Location{
			Country:  "Netherlands",
			Region:   "North Holland",
			City:     "Amsterdam",
			Org:      "Tor Exit Node",
			Timezone: "Europe/Amsterdam",
		},
		Latency:   820 * time.Millisecond,
		Timestamp: now,
	}
}

// Probe discovers the current exit identity
type Probe interface {
	ProbeIdentity(ctx context.Context) (Identity, error)
}

// ErrRateLimited is wrapped by ProbeError when a limiter rejects a probe
var ErrRateLimited = errors.New("probe rate limited")

// ProbeError reports a failed identity probe
type ProbeError struct {
	Probe string
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s probe: %v", e.Probe, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

package identity

import (
	"context"

	"golang.org/x/time/rate"
)

// LimitedProbe rejects probes beyond the limiter's budget instead of queueing them
type LimitedProbe struct {
	probe   Probe
	limiter *rate.Limiter
}

// Limited wraps probe with limiter; a nil limiter returns probe unchanged
func Limited(probe Probe, limiter *rate.Limiter) Probe {
	if limiter == nil {
		return probe
	}
	return &LimitedProbe{probe: probe, limiter: limiter}
}

// ProbeIdentity forwards to the wrapped probe when a token is available
func (l *LimitedProbe) ProbeIdentity(ctx context.Context) (Identity, error) {
	if !l.limiter.Allow() {
		return Identity{}, &ProbeError{Probe: "limiter", Err: ErrRateLimited}
	}
	return l.probe.ProbeIdentity(ctx)
}

package utils

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ElementThrottle keeps the number of distance-matrix elements requested
// under a per-minute budget. One request of n origins and m destinations
// costs n*m elements.
type ElementThrottle struct {
	lim   *rate.Limiter
	burst int
}

// NewElementThrottle allows at most perMinute elements in any 60-second
// window, in requests of up to burst elements (normally the per-request
// element ceiling). The bucket starts full, so it refills at
// perMinute-burst per minute. perMinute <= 0 disables throttling.
func NewElementThrottle(perMinute, burst int) (*ElementThrottle, error) {
	if perMinute <= 0 {
		return &ElementThrottle{lim: rate.NewLimiter(rate.Inf, 0), burst: burst}, nil
	}
	if burst < 1 {
		burst = 1
	}
	if perMinute <= burst {
		return nil, fmt.Errorf("throttle: %d elements per minute must exceed the %d-element burst", perMinute, burst)
	}
	refill := rate.Limit(float64(perMinute-burst) / time.Minute.Seconds())
	return &ElementThrottle{
		lim:   rate.NewLimiter(refill, burst),
		burst: burst,
	}, nil
}

// Wait blocks until n elements may be requested or ctx is done.
func (t *ElementThrottle) Wait(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if t.lim.Limit() == rate.Inf {
		return nil
	}
	if n > t.burst {
		return fmt.Errorf("throttle: request of %d elements exceeds burst %d", n, t.burst)
	}
	return t.lim.WaitN(ctx, n)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transport

import (
	"context"
	"math"
	"time"
)

// backoffDelay returns the reconnect delay for the given attempt: the base
// delay doubled each attempt (base, 2*base, 4*base, ...).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * base
}

// sleep waits for d or until the context is cancelled, reporting whether
// the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

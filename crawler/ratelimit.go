package crawler

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minRateFloor is the slowest the limiter will go, in requests per second.
	minRateFloor = 1.0

	// maxRateCeiling caps the rate against a single search host.
	maxRateCeiling = 50.0

	// emaAlpha is the EMA smoothing factor: 20% weight to a new RTT sample.
	emaAlpha = 0.2

	// recoveryFactor is the per-sample increase when the host is fast.
	recoveryFactor = 1.1

	// backoffFactor bounds the drop of a single slow sample.
	backoffFactor = 0.5
)

// AdaptiveLimiter paces requests to the search host. In adaptive mode the rate
// follows the exponential moving average of response times; HTTP 429 halves it.
type AdaptiveLimiter struct {
	limiter   *rate.Limiter
	targetRTT time.Duration
	mu        sync.RWMutex

	emaRTT      time.Duration
	currentRate float64

	// disabled pins the rate set by SetRate.
	disabled bool

	throttles int
}

// NewAdaptiveLimiter creates a limiter at initialRPS that adapts toward
// targetRTT.
func NewAdaptiveLimiter(initialRPS int, targetRTT time.Duration) *AdaptiveLimiter {
	clampedRPS := clampRateFloat(float64(initialRPS))

	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(clampedRPS), int(math.Ceil(clampedRPS))),
		targetRTT:   targetRTT,
		currentRate: clampedRPS,
		emaRTT:      targetRTT,
	}
}

// Wait blocks until the next request may go out or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT folds one response time into the EMA and adjusts the rate.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.disabled {
		return
	}

	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))

	// ratio < 1 means the host is slower than target.
	ratio := float64(a.targetRTT) / float64(a.emaRTT)

	var newRate float64
	if ratio < 1 {
		newRate = math.Max(a.currentRate*ratio, a.currentRate*backoffFactor)
	} else {
		newRate = a.currentRate * recoveryFactor
	}
	a.applyLocked(newRate)
}

// Throttle halves the rate after the host answered 429. A pinned rate is kept.
func (a *AdaptiveLimiter) Throttle() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.throttles++
	if a.disabled {
		return
	}
	a.applyLocked(a.currentRate * backoffFactor)
}

// Throttles counts 429 responses seen.
func (a *AdaptiveLimiter) Throttles() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.throttles
}

// applyLocked clamps and installs newRate when it moved by more than 0.1 rps.
func (a *AdaptiveLimiter) applyLocked(newRate float64) {
	newRate = clampRateFloat(newRate)
	if math.Abs(newRate-a.currentRate) <= 0.1 {
		return
	}
	a.currentRate = newRate
	a.limiter.SetLimit(rate.Limit(newRate))
	a.limiter.SetBurst(int(math.Ceil(newRate)))
}

// SetRate pins the rate, clamped to [minRateFloor, maxRateCeiling], and
// disables adaptation.
func (a *AdaptiveLimiter) SetRate(rps int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	clamped := clampRateFloat(float64(rps))
	a.currentRate = clamped
	a.disabled = true
	a.limiter.SetLimit(rate.Limit(clamped))
	a.limiter.SetBurst(int(math.Ceil(clamped)))
}

// CurrentRate returns the current rate in requests per second.
func (a *AdaptiveLimiter) CurrentRate() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int(math.Round(a.currentRate))
}

func clampRateFloat(rps float64) float64 {
	if rps < minRateFloor {
		return minRateFloor
	}
	if rps > maxRateCeiling {
		return maxRateCeiling
	}
	return rps
}

// TargetRTT returns the configured target RTT.
func (a *AdaptiveLimiter) TargetRTT() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.targetRTT
}

// CurrentEMA returns the current EMA of observed RTT values.
func (a *AdaptiveLimiter) CurrentEMA() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.emaRTT
}

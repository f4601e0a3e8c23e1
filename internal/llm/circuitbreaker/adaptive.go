package circuitbreaker

import (
	"sync"
	"time"
)

const (
	minRequestsForAdjustment  = 10
	highErrorRate             = 0.5
	mediumErrorRate           = 0.3
	mediumThresholdMultiplier = 0.75
	adaptiveWindow            = time.Minute
)

// adaptiveThresholds lowers the failure threshold while the error rate of
// the current one-minute window is high.
type adaptiveThresholds struct {
	mu       sync.Mutex
	base     int
	current  int
	requests int
	failures int
	start    time.Time
	now      func() time.Time
}

func newAdaptiveThresholds(base int, now func() time.Time) *adaptiveThresholds {
	return &adaptiveThresholds{base: base, current: base, start: now(), now: now}
}

func (a *adaptiveThresholds) record(success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t := a.now(); t.Sub(a.start) > adaptiveWindow {
		a.requests, a.failures, a.start = 0, 0, t
	}
	a.requests++
	if !success {
		a.failures++
	}
	if a.requests < minRequestsForAdjustment {
		return
	}

	rate := float64(a.failures) / float64(a.requests)
	switch {
	case rate > highErrorRate:
		a.current = a.base / 2
	case rate > mediumErrorRate:
		a.current = int(float64(a.base) * mediumThresholdMultiplier)
	default:
		a.current = a.base
	}
	a.current = max(a.current, 1)
}

func (a *adaptiveThresholds) threshold() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

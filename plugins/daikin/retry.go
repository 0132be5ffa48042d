package daikin

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/barneyonline/core/internal/rate"
)

var zoneSetCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gohome_daikin_zone_set_total",
	Help: "Zone temperature write attempts by result",
}, []string{"result"})

type retryPolicy struct {
	Attempts int
	Delay    time.Duration
}

var defaultRetry = retryPolicy{Attempts: 3, Delay: time.Second}

// maxRateLimitWait bounds how long a retry waits for the rate guard to
// allow calls again. Longer blocks end the retry early.
const maxRateLimitWait = 10 * time.Second

// setZoneTemperature writes temperature, rounded half to even, as the zone
// heating setpoint. onFailure sees every failed attempt. It returns the
// number of attempts made and the last error once attempts are exhausted.
// A non-finite temperature is rejected before any attempt. When the rate
// guard blocks a call the next attempt waits until the guard allows it.
func (p retryPolicy) setZoneTemperature(ctx context.Context, dev Device, zoneID int, temperature float64, onFailure func(attempt int, err error)) (int, error) {
	value, err := zoneSetpoint(temperature)
	if err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err := dev.SetZone(ctx, zoneID, "lztemp_h", value)
		if err == nil {
			zoneSetCounter.WithLabelValues("success").Inc()
			return attempt, nil
		}
		lastErr = err
		zoneSetCounter.WithLabelValues("failure").Inc()
		if onFailure != nil {
			onFailure(attempt, err)
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if attempt < p.Attempts {
			pause := p.Delay
			var limited rate.RateLimitError
			if errors.As(err, &limited) && !limited.RetryAt.IsZero() {
				wait := time.Until(limited.RetryAt)
				if wait > maxRateLimitWait {
					zoneSetCounter.WithLabelValues("rate_limited").Inc()
					return attempt, err
				}
				pause = max(pause, wait)
			}
			if err := sleepContext(ctx, pause); err != nil {
				return attempt, err
			}
		}
	}

	zoneSetCounter.WithLabelValues("exhausted").Inc()
	return p.Attempts, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

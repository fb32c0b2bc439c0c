package mockapi

import (
	"context"
	"time"

	"github.com/adrelay/adrelay-go/internal/telemetry"
)

// Janitor periodically drops expired idempotency records
type Janitor struct {
	handler  *Handler
	ttl      time.Duration
	interval time.Duration
}

// NewJanitor creates a janitor for handler. Zero values fall back to the
// defaults of DefaultConfig.
func NewJanitor(handler *Handler, ttl, interval time.Duration) *Janitor {
	defaults := DefaultConfig()
	if ttl <= 0 {
		ttl = defaults.IdempotencyTTL
	}
	if interval <= 0 {
		interval = defaults.CleanupInterval
	}
	return &Janitor{handler: handler, ttl: ttl, interval: interval}
}

// Start runs cleanup cycles until ctx is done
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	log := telemetry.L().WithField("component", "janitor")
	log.WithFields(map[string]interface{}{
		"ttl":      j.ttl.String(),
		"interval": j.interval.String(),
	}).Debug("Janitor started")

	for {
		select {
		case <-ticker.C:
			if removed := j.Sweep(); removed > 0 {
				log.WithField("removed", removed).Info("Expired idempotency records")
			}
		case <-ctx.Done():
			log.Debug("Janitor stopped")
			return
		}
	}
}

// Sweep performs one cleanup cycle and returns the number of removed records
func (j *Janitor) Sweep() int {
	return j.handler.ExpireEvents(time.Now().Add(-j.ttl))
}

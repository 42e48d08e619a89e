package utils

import (
	"context"
	"time"

	"guild-contributions/internal/types"
)

// Pacer enforces a fixed pause between successive members so the page is
// never driven faster than a person would drive it
type Pacer struct {
	delay  time.Duration
	logger types.Logger
}

// NewPacer creates a pacer using the configured entity delay
func NewPacer(config *types.Config, logger types.Logger) *Pacer {
	return &Pacer{
		delay:  config.EntityDelay,
		logger: logger,
	}
}

// Wait blocks for the configured delay. It returns ctx.Err() if ctx is
// cancelled first.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}

	p.logger.Debugf("Pausing %v before next member", p.delay)
	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delay returns the configured pause
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

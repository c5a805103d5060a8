package entitlement

import (
	"context"
	"time"

	"github.com/trezcool/smartlearn/core"
)

// Sweeper is what StartSweeper drives.
type Sweeper interface {
	SweepExpiry(ctx context.Context) error
}

// StartSweeper runs `sw` once, then every `interval`, until `ctx` is done.
// The returned channel is closed once the sweeper stopped.
func StartSweeper(ctx context.Context, sw Sweeper, interval time.Duration, logger core.Logger) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = time.Minute
	}

	sweep := func() {
		if err := sw.SweepExpiry(ctx); err != nil && ctx.Err() == nil {
			logger.Error("entitlement.StartSweeper: "+err.Error(), err)
		}
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweep()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
	return done
}

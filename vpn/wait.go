package vpn

import (
	"context"
	"fmt"
	"time"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
)

// StateReader reads the current tunnel state. *bridge.Adapter implements it.
type StateReader interface {
	TunnelState(ctx context.Context) bridge.TunnelState
}

// WaitForState polls r every interval until the tunnel reaches target.
//
// It returns nil once target is observed, common.ErrCancelled wrapping
// ctx.Err() if ctx is done, and common.ErrTimeout when timeout elapses
// first. A timeout <= 0 expires
// before the state is ever read.
func WaitForState(ctx context.Context, r StateReader, target bridge.TunnelState, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = common.PollInterval
	}

	start := time.Now()
	for time.Since(start) < timeout {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if r.TunnelState(ctx) == target {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return cancelled(ctx.Err())
		case <-timer.C:
		}
	}
	return common.ErrTimeout
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", common.ErrCancelled, err)
}

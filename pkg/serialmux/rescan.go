package serialmux

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

// rescanRunner refreshes the port list on a fixed interval.
type rescanRunner struct {
	interval  time.Duration
	refresher Refresher
	logger    ports.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRescanRunner(interval time.Duration, refresher Refresher, logger ports.Logger) *rescanRunner {
	return &rescanRunner{
		interval:  interval,
		refresher: refresher,
		logger:    logger,
	}
}

func (r *rescanRunner) start(ctx context.Context) {
	rescanCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.logger.Info("port rescan enabled", log.Duration("interval", r.interval))

	r.wg.Add(1)
	go r.loop(rescanCtx)
}

func (r *rescanRunner) stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *rescanRunner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.refresher.Refresh(); err != nil {
				r.logger.Warn("port rescan failed", log.Err(err))
			}
		}
	}
}

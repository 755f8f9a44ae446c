package mailbox

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is the outbox scan cadence.
const DefaultPollInterval = 100 * time.Millisecond

// OutboxPoller periodically walks the task tree for outbox entries and
// hands each one to the ReplySender. At most one pass runs at a time: a
// tick (or watcher nudge) arriving while a pass is in flight is dropped,
// not queued.
type OutboxPoller struct {
	Layout   Layout
	Sender   *ReplySender
	Interval time.Duration
	Logger   Logger

	polling atomic.Bool
}

// Run drives poll passes until ctx is cancelled. An in-flight pass
// finishes naturally; only the timer stops.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.RunWithWake(ctx, nil)
}

// RunWithWake is Run with an optional wake channel. A wake triggers an
// immediate extra pass between ticks; the single-flight guard still
// applies.
func (p *OutboxPoller) RunWithWake(ctx context.Context, wake <-chan struct{}) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		case <-wake:
			p.Poll(ctx)
		}
	}
}

// Poll runs one pass over every outbox directory. It reports whether the
// pass actually ran; false means another pass already held the
// single-flight guard.
func (p *OutboxPoller) Poll(ctx context.Context) bool {
	if !p.polling.CompareAndSwap(false, true) {
		return false
	}
	defer p.polling.Store(false)

	err := filepath.WalkDir(p.Layout.Base(), func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p.Logger != nil {
				p.Logger.Printf("outbox scan error at %s: %v", path, walkErr)
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ref, ok := p.Layout.ParseOutboxPath(path)
		if !ok {
			return nil
		}
		if err := p.Sender.Send(ctx, ref); err != nil {
			if p.Logger != nil {
				p.Logger.Printf("error processing outbox file %s.md: %v", ref.MessageID, err)
			}
		}
		return nil
	})
	if err != nil && p.Logger != nil {
		p.Logger.Printf("error in outbox poller: %v", err)
	}
	return true
}

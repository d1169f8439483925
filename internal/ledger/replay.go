package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"frugal/internal/connectivity"
	"frugal/internal/remote"
)

// Replay drains the pending queue against the remote store, oldest
// first. It stops at the first failure so later writes never apply
// ahead of earlier ones. Only one replay runs at a time: a call that
// arrives while a replay is in flight is coalesced into one more pass
// instead of starting a second loop.
func (e *Engine) Replay(ctx context.Context) error {
	e.replayMu.Lock()
	if e.replayRunning {
		e.replayQueued = true
		e.replayMu.Unlock()
		return nil
	}
	e.replayRunning = true
	e.replayMu.Unlock()

	for {
		err := e.replayPass(ctx)

		// Deciding to exit and clearing the running flag must be one
		// critical section: a caller queueing a pass in between would
		// see a replayer that no longer reruns, and the pass is lost.
		e.replayMu.Lock()
		if e.replayQueued {
			e.replayQueued = false
			e.replayMu.Unlock()
			continue
		}
		e.replayRunning = false
		e.replayMu.Unlock()
		return err
	}
}

func (e *Engine) replayPass(ctx context.Context) error {
	pending, err := e.cache.ListPending(ctx, "")
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	e.logger.InfoContext(ctx, "Replaying pending transactions", "count", len(pending))

	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		// An offline transition interrupts the replay; items already
		// committed stay committed, the rest wait for the next reconnect.
		if !e.monitor.IsOnline() {
			e.logger.InfoContext(ctx, "Replay interrupted, back offline", "remaining_seq", item.Seq)
			return remote.ErrUnavailable
		}

		t := item.Tx
		t.ID = 0
		t.Pending = false

		committed, err := e.commit(ctx, t)
		if err != nil {
			if errors.Is(err, remote.ErrUnavailable) {
				e.monitor.SetOffline()
			}
			e.logger.WarnContext(ctx, "Replay halted at first failure",
				"seq", item.Seq, "error", err)
			return fmt.Errorf("replay seq %d: %w", item.Seq, err)
		}

		if err := e.cache.DeletePending(ctx, item.Seq); err != nil {
			// The write is committed remotely; leaving it queued would
			// replay it twice. Surface loudly and stop.
			return fmt.Errorf("dequeue replayed seq %d (committed as %d): %w", item.Seq, committed.ID, err)
		}
		if err := e.cache.Put(ctx, committed); err != nil {
			e.logger.WarnContext(ctx, "Failed to mirror replayed transaction", "id", committed.ID, "error", err)
		}

		e.logger.InfoContext(ctx, "Replayed pending transaction", "seq", item.Seq, "id", committed.ID)
	}

	return nil
}

// Reconciler watches the connectivity monitor and triggers a replay on
// every transition to online.
type Reconciler struct {
	engine  *Engine
	monitor *connectivity.Monitor

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconciler(engine *Engine, monitor *connectivity.Monitor) *Reconciler {
	return &Reconciler{engine: engine, monitor: monitor}
}

func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	events, cancel := r.monitor.Subscribe()

	go func() {
		defer close(r.doneCh)
		defer cancel()

		// Catch up anything queued before we started listening.
		if r.monitor.IsOnline() {
			r.replay(ctx)
		}

		for {
			select {
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.State == connectivity.Online {
					r.replay(ctx)
				}
			}
		}
	}()

	r.engine.logger.InfoContext(ctx, "Reconciler started")
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	close(r.stopCh)
	r.running = false
	doneCh := r.doneCh
	r.mu.Unlock()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for reconciler to stop: %w", ctx.Err())
	}
}

func (r *Reconciler) replay(ctx context.Context) {
	if err := r.engine.Replay(ctx); err != nil {
		r.engine.logger.WarnContext(ctx, "Replay finished with error", "error", err)
	}
}

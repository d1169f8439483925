package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"frugal/internal/core"
	"frugal/internal/remote"
)

// Watcher keeps the local mirror in step with changes other clients
// make on the remote store. Events carry no payload, so each
// transaction change triggers a scoped refetch of that record; account
// and category changes are ignored because only transactions are
// mirrored locally.
type Watcher struct {
	engine *Engine

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWatcher(engine *Engine) *Watcher {
	return &Watcher{engine: engine}
}

func (w *Watcher) Start(ctx context.Context, ownerID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	events, cancel, err := w.engine.remote.Subscribe(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("subscribe to remote changes: %w", err)
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go func() {
		defer close(w.doneCh)
		defer cancel()

		for {
			select {
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				w.apply(ctx, ev)
			}
		}
	}()

	w.engine.logger.InfoContext(ctx, "Remote change watcher started")
	return nil
}

func (w *Watcher) apply(ctx context.Context, ev remote.ChangeEvent) {
	if ev.Entity != remote.EntityTransaction {
		return
	}

	if ev.Op == remote.OpDelete {
		if err := w.engine.cache.Delete(ctx, ev.ID); err != nil {
			w.engine.logger.WarnContext(ctx, "Failed dropping mirrored transaction", "id", ev.ID, "error", err)
		}
		return
	}

	t, err := w.engine.remote.GetTransaction(ctx, ev.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Changed and deleted before we got to it.
		return
	}
	if err != nil {
		w.engine.logger.WarnContext(ctx, "Failed refetching changed transaction", "id", ev.ID, "error", err)
		return
	}
	if err := w.engine.cache.Put(ctx, t); err != nil {
		w.engine.logger.WarnContext(ctx, "Failed mirroring changed transaction", "id", ev.ID, "error", err)
	}
}

func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("watcher stop: %w", ctx.Err())
	}
}

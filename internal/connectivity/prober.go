package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pinger reports whether the remote store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober polls the remote store on an interval and drives the Monitor
// through Online/Offline transitions based on the results.
type Prober struct {
	monitor  *Monitor
	pinger   Pinger
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewProber(monitor *Monitor, pinger Pinger, interval time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Prober{
		monitor:  monitor,
		pinger:   pinger,
		interval: interval,
		logger:   logger,
	}
}

func (p *Prober) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("prober already running")
	}

	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.running = true

	go p.run(ctx)

	p.logger.InfoContext(ctx, "Connectivity prober started", "interval", p.interval)
	return nil
}

func (p *Prober) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	close(p.stopCh)
	p.running = false
	doneCh := p.doneCh
	p.mu.Unlock()

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Connectivity prober stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for prober to stop: %w", ctx.Err())
	}
}

func (p *Prober) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.probe(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	if err := p.pinger.Ping(pingCtx); err != nil {
		if p.monitor.State() != Offline {
			p.logger.WarnContext(ctx, "Remote unreachable, going offline", "error", err)
		}
		p.monitor.SetOffline()
		return
	}
	if p.monitor.State() != Online {
		p.logger.InfoContext(ctx, "Remote reachable, going online")
	}
	p.monitor.SetOnline()
}

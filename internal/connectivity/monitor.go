// Package connectivity tracks whether the remote store is reachable.
// The Monitor is an explicit state machine injected into whoever needs
// the state; nothing reads ambient globals. Transitions fan out to
// subscribers so the ledger engine can trigger replay on reconnect.
package connectivity

import (
	"sync"
	"time"
)

type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

type Event struct {
	State State
	At    time.Time
}

type Monitor struct {
	mu    sync.Mutex
	state State
	subs  []chan Event
}

func NewMonitor(initial State) *Monitor {
	if initial != Online && initial != Offline {
		initial = Offline
	}
	return &Monitor{state: initial}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) IsOnline() bool {
	return m.State() == Online
}

// SetState records a transition. Setting the current state again is a
// no-op: subscribers only ever see actual transitions.
func (m *Monitor) SetState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == m.state || (s != Online && s != Offline) {
		return
	}
	m.state = s
	ev := Event{State: s, At: time.Now()}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default: // subscriber not keeping up, it will observe State() anyway
		}
	}
}

func (m *Monitor) SetOnline()  { m.SetState(Online) }
func (m *Monitor) SetOffline() { m.SetState(Offline) }

// Subscribe returns a channel of transition events and a cancel func.
// The channel is buffered; events are dropped, not blocked on, for slow
// consumers.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, 8)
	m.subs = append(m.subs, ch)
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, c := range m.subs {
			if c == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

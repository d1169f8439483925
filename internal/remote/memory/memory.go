// Package memory provides an in-process remote store. It backs local
// development and the test suite, where its availability switch and
// per-entity failure injection simulate connectivity loss and partial
// batch failures.
package memory

import (
	"context"
	"sort"
	"sync"

	"frugal/internal/core"
	"frugal/internal/remote"
)

type Store struct {
	mu           sync.Mutex
	online       bool
	failUpserts  map[remote.EntityKind]bool
	accounts     map[int64]core.Account
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	summaries    map[string]core.MonthlySummary // keyed owner|period
	nextID       int64
	subs         []chan remote.ChangeEvent
}

var _ remote.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		online:       true,
		failUpserts:  make(map[remote.EntityKind]bool),
		accounts:     make(map[int64]core.Account),
		categories:   make(map[int64]core.Category),
		transactions: make(map[int64]core.Transaction),
		summaries:    make(map[string]core.MonthlySummary),
	}
}

// SetOnline flips the simulated connectivity of the store. While offline
// every operation returns remote.ErrUnavailable.
func (s *Store) SetOnline(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = v
}

// FailUpserts makes upserts of one entity kind fail with
// remote.ErrUnavailable while the store itself stays reachable. Used to
// exercise partial-commit handling.
func (s *Store) FailUpserts(kind remote.EntityKind, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpserts[kind] = v
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return remote.ErrUnavailable
	}
	return nil
}

func (s *Store) checkLocked(kind remote.EntityKind, upsert bool) error {
	if !s.online {
		return remote.ErrUnavailable
	}
	if upsert && s.failUpserts[kind] {
		return remote.ErrUnavailable
	}
	return nil
}

func (s *Store) allocIDLocked() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) notifyLocked(ev remote.ChangeEvent) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than block the store
		}
	}
}

func (s *Store) GetAccount(_ context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityAccount, false); err != nil {
		return core.Account{}, err
	}
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) UpsertAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityAccount, true); err != nil {
		return core.Account{}, err
	}
	op := remote.OpUpdate
	if a.ID == 0 {
		a.ID = s.allocIDLocked()
		op = remote.OpCreate
	}
	s.accounts[a.ID] = a
	s.notifyLocked(remote.ChangeEvent{Op: op, Entity: remote.EntityAccount, ID: a.ID})
	return a, nil
}

func (s *Store) DeleteAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityAccount, false); err != nil {
		return err
	}
	if _, ok := s.accounts[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.accounts, id)
	s.notifyLocked(remote.ChangeEvent{Op: remote.OpDelete, Entity: remote.EntityAccount, ID: id})
	return nil
}

func (s *Store) ListAccounts(_ context.Context, ownerID string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityAccount, false); err != nil {
		return nil, err
	}
	var out []core.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityCategory, false); err != nil {
		return core.Category{}, err
	}
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) UpsertCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityCategory, true); err != nil {
		return core.Category{}, err
	}
	op := remote.OpUpdate
	if c.ID == 0 {
		c.ID = s.allocIDLocked()
		op = remote.OpCreate
	}
	s.categories[c.ID] = c
	s.notifyLocked(remote.ChangeEvent{Op: op, Entity: remote.EntityCategory, ID: c.ID})
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityCategory, false); err != nil {
		return err
	}
	if _, ok := s.categories[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.categories, id)
	s.notifyLocked(remote.ChangeEvent{Op: remote.OpDelete, Entity: remote.EntityCategory, ID: id})
	return nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string, period core.Period) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityCategory, false); err != nil {
		return nil, err
	}
	var out []core.Category
	for _, c := range s.categories {
		if c.OwnerID == ownerID && (period == "" || c.Period == period) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityTransaction, false); err != nil {
		return core.Transaction{}, err
	}
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityTransaction, true); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == 0 {
		t.ID = s.allocIDLocked()
	}
	t.Pending = false
	s.transactions[t.ID] = t
	s.notifyLocked(remote.ChangeEvent{Op: remote.OpCreate, Entity: remote.EntityTransaction, ID: t.ID})
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityTransaction, false); err != nil {
		return err
	}
	if _, ok := s.transactions[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.transactions, id)
	s.notifyLocked(remote.ChangeEvent{Op: remote.OpDelete, Entity: remote.EntityTransaction, ID: id})
	return nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string, period core.Period) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(remote.EntityTransaction, false); err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.OwnerID != ownerID {
			continue
		}
		if period != "" && !period.Contains(t.Date) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func summaryKey(ownerID string, period core.Period) string {
	return ownerID + "|" + string(period)
}

func (s *Store) GetSummary(_ context.Context, ownerID string, period core.Period) (core.MonthlySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return core.MonthlySummary{}, remote.ErrUnavailable
	}
	sum, ok := s.summaries[summaryKey(ownerID, period)]
	if !ok {
		return core.MonthlySummary{}, core.ErrNotFound
	}
	return sum, nil
}

func (s *Store) UpsertSummary(_ context.Context, sum core.MonthlySummary) (core.MonthlySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return core.MonthlySummary{}, remote.ErrUnavailable
	}
	key := summaryKey(sum.OwnerID, sum.Period)
	if prev, ok := s.summaries[key]; ok {
		sum.ID = prev.ID
	} else {
		sum.ID = s.allocIDLocked()
	}
	s.summaries[key] = sum
	return sum, nil
}

func (s *Store) ListSummaries(_ context.Context, ownerID string, limit int) ([]core.MonthlySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return nil, remote.ErrUnavailable
	}
	var out []core.MonthlySummary
	for _, sum := range s.summaries {
		if sum.OwnerID == ownerID {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, _ string) (<-chan remote.ChangeEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return nil, nil, remote.ErrUnavailable
	}
	ch := make(chan remote.ChangeEvent, 64)
	s.subs = append(s.subs, ch)
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel, nil
}

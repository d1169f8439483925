// Package ledger implements the consistency engine: every transaction
// create or delete atomically adjusts the owning account's balance and,
// for categorized expenses, the category's spent accumulator. While the
// remote store is unreachable, creates are queued locally and replayed
// on reconnect; deletes are rejected.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"frugal/internal/connectivity"
	"frugal/internal/core"
	"frugal/internal/remote"
	"frugal/internal/storage"
)

type Engine struct {
	remote  remote.Store
	cache   *storage.CacheStore
	monitor *connectivity.Monitor
	logger  *slog.Logger

	replayMu      sync.Mutex
	replayRunning bool
	replayQueued  bool
}

func NewEngine(store remote.Store, cache *storage.CacheStore, monitor *connectivity.Monitor, logger *slog.Logger) *Engine {
	return &Engine{
		remote:  store,
		cache:   cache,
		monitor: monitor,
		logger:  logger,
	}
}

// CreateTransaction validates and commits a transaction together with
// its two aggregate side effects. While offline the record is appended
// to the pending queue instead and returned with Pending set; it will
// be committed by the next replay.
func (e *Engine) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if !e.monitor.IsOnline() {
		return e.enqueue(ctx, t)
	}

	committed, err := e.commit(ctx, t)
	if err != nil {
		// Unreachable before anything was applied: flip offline and queue,
		// same as if the monitor had caught the outage first. Once a step
		// has committed remotely, queuing would double-apply it, so the
		// partial error is surfaced instead.
		var partial *PartialCommitError
		if errors.Is(err, remote.ErrUnavailable) && (!errors.As(err, &partial) || len(partial.Completed) == 0) {
			e.monitor.SetOffline()
			return e.enqueue(ctx, t)
		}
		return core.Transaction{}, err
	}

	if err := e.cache.Put(ctx, committed); err != nil {
		e.logger.WarnContext(ctx, "Failed to mirror committed transaction", "id", committed.ID, "error", err)
	}

	return committed, nil
}

// commit runs the batch: account update, category update (categorized
// expenses only), transaction insert, in that order. A failure after
// the first applied step surfaces as a PartialCommitError; nothing is
// rolled back because the remote store cannot do that atomically.
func (e *Engine) commit(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	account, err := e.remote.GetAccount(ctx, t.AccountID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("resolve account %d: %w", t.AccountID, err)
	}
	if account.OwnerID != t.OwnerID {
		return core.Transaction{}, fmt.Errorf("account %d: %w", t.AccountID, core.ErrNotFound)
	}

	var category core.Category
	adjustCategory := t.Kind == core.Expense && t.CategoryID != 0
	if adjustCategory {
		category, err = e.remote.GetCategory(ctx, t.CategoryID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("resolve category %d: %w", t.CategoryID, err)
		}
		if category.OwnerID != t.OwnerID || category.Period != core.PeriodOf(t.Date) {
			return core.Transaction{}, fmt.Errorf("category %d: %w", t.CategoryID, core.ErrNotFound)
		}
	}

	var completed []CommitStep

	account.Balance = account.Balance.AddCents(t.SignedCents())
	if _, err := e.remote.UpsertAccount(ctx, account); err != nil {
		return core.Transaction{}, &PartialCommitError{
			Completed: completed,
			Failed:    StepAccount,
			Err:       err,
		}
	}
	completed = append(completed, StepAccount)

	if adjustCategory {
		category.Spent = category.Spent.Add(t.Amount)
		if _, err := e.remote.UpsertCategory(ctx, category); err != nil {
			return core.Transaction{}, &PartialCommitError{
				Completed: completed,
				Failed:    StepCategory,
				Err:       err,
			}
		}
		completed = append(completed, StepCategory)
	}

	t.Pending = false
	committed, err := e.remote.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, &PartialCommitError{
			Completed: completed,
			Failed:    StepTransaction,
			Err:       err,
		}
	}

	e.logger.InfoContext(ctx, "Transaction committed",
		"id", committed.ID,
		"kind", committed.Kind,
		"amount", committed.Amount.String(),
		"account_id", committed.AccountID)

	return committed, nil
}

func (e *Engine) enqueue(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Pending = true
	seq, err := e.cache.Enqueue(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("queue transaction: %w", err)
	}

	e.logger.InfoContext(ctx, "Transaction queued for replay",
		"seq", seq,
		"kind", t.Kind,
		"amount", t.Amount.String())

	return t, nil
}

// DeleteTransaction reverses the deleted record's side effects exactly:
// the balance delta is undone and, for categorized expenses, the spent
// accumulator is decremented, then the record itself is removed. Same
// partial-failure contract as create. Rejected while offline.
func (e *Engine) DeleteTransaction(ctx context.Context, id int64, ownerID string) error {
	if !e.monitor.IsOnline() {
		return ErrOfflineDeleteNotSupported
	}

	t, err := e.remote.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve transaction %d: %w", id, err)
	}
	if t.OwnerID != ownerID {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}

	account, err := e.remote.GetAccount(ctx, t.AccountID)
	if err != nil {
		return fmt.Errorf("resolve account %d: %w", t.AccountID, err)
	}

	var category core.Category
	adjustCategory := t.Kind == core.Expense && t.CategoryID != 0
	if adjustCategory {
		category, err = e.remote.GetCategory(ctx, t.CategoryID)
		if err != nil {
			return fmt.Errorf("resolve category %d: %w", t.CategoryID, err)
		}
	}

	var completed []CommitStep

	account.Balance = account.Balance.AddCents(-t.SignedCents())
	if _, err := e.remote.UpsertAccount(ctx, account); err != nil {
		return &PartialCommitError{Completed: completed, Failed: StepAccount, Err: err}
	}
	completed = append(completed, StepAccount)

	if adjustCategory {
		category.Spent = category.Spent.Sub(t.Amount)
		if _, err := e.remote.UpsertCategory(ctx, category); err != nil {
			return &PartialCommitError{Completed: completed, Failed: StepCategory, Err: err}
		}
		completed = append(completed, StepCategory)
	}

	if err := e.remote.DeleteTransaction(ctx, id); err != nil {
		return &PartialCommitError{Completed: completed, Failed: StepTransaction, Err: err}
	}

	if err := e.cache.Delete(ctx, id); err != nil {
		e.logger.WarnContext(ctx, "Failed to evict deleted transaction from cache", "id", id, "error", err)
	}

	e.logger.InfoContext(ctx, "Transaction deleted", "id", id, "kind", t.Kind, "amount", t.Amount.String())
	return nil
}

// ListTransactions serves transaction history for one owner and period.
// Online it reads through the remote store and refreshes the local
// mirror; offline it serves the mirror as of the last successful sync.
// Queued records are included in both cases, flagged pending, ahead of
// the committed history.
func (e *Engine) ListTransactions(ctx context.Context, ownerID string, period core.Period) ([]core.Transaction, error) {
	committed, err := e.fetchCommitted(ctx, ownerID, period)
	if err != nil {
		return nil, err
	}

	pending, err := e.cache.ListPending(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	out := make([]core.Transaction, 0, len(pending)+len(committed))
	for i := len(pending) - 1; i >= 0; i-- { // newest queued first
		if period.Contains(pending[i].Tx.Date) {
			out = append(out, pending[i].Tx)
		}
	}
	return append(out, committed...), nil
}

func (e *Engine) fetchCommitted(ctx context.Context, ownerID string, period core.Period) ([]core.Transaction, error) {
	if e.monitor.IsOnline() {
		txs, err := e.remote.ListTransactions(ctx, ownerID, period)
		if err == nil {
			if cacheErr := e.cache.BulkPut(ctx, txs); cacheErr != nil {
				e.logger.WarnContext(ctx, "Failed to refresh transaction cache", "error", cacheErr)
			}
			return txs, nil
		}
		if !errors.Is(err, remote.ErrUnavailable) {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		e.monitor.SetOffline()
	}

	cached, err := e.cache.GetAll(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("read transaction cache: %w", err)
	}
	filtered := cached[:0]
	for _, t := range cached {
		if period.Contains(t.Date) {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// PendingCount reports how many queued writes await replay.
func (e *Engine) PendingCount(ctx context.Context, ownerID string) (int64, error) {
	return e.cache.CountPending(ctx, ownerID)
}

// ListPendingWrites returns the owner's queued writes, oldest first.
func (e *Engine) ListPendingWrites(ctx context.Context, ownerID string) ([]storage.PendingTransaction, error) {
	pending, err := e.cache.ListPending(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return pending, nil
}

// DiscardPending drops one queued write without committing it. Replay
// halts at the first failure, so a record that can no longer commit
// (say its account was deleted while the queue waited) blocks every
// write behind it until it is discarded.
func (e *Engine) DiscardPending(ctx context.Context, seq int64, ownerID string) error {
	pending, err := e.cache.ListPending(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	for _, item := range pending {
		if item.Seq != seq {
			continue
		}
		if err := e.cache.DeletePending(ctx, seq); err != nil {
			return fmt.Errorf("discard pending seq %d: %w", seq, err)
		}
		e.logger.InfoContext(ctx, "Pending transaction discarded",
			"seq", seq,
			"kind", item.Tx.Kind,
			"amount", item.Tx.Amount.String())
		return nil
	}
	return fmt.Errorf("pending seq %d: %w", seq, core.ErrNotFound)
}

// Account and category management. These talk straight to the remote
// store: balances and envelopes are only meaningful against the
// authoritative records, so there is no offline path here.

func (e *Engine) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	created, err := e.remote.UpsertAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	e.logger.InfoContext(ctx, "Account created", "id", created.ID, "name", created.Name)
	return created, nil
}

// UpdateAccount renames an account. Balance changes go through
// transactions, never through here.
func (e *Engine) UpdateAccount(ctx context.Context, id int64, name, ownerID string) (core.Account, error) {
	existing, err := e.remote.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	if existing.OwnerID != ownerID {
		return core.Account{}, core.ErrNotFound
	}

	existing.Name = name
	if err := existing.Validate(); err != nil {
		return core.Account{}, err
	}
	updated, err := e.remote.UpsertAccount(ctx, existing)
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}
	e.logger.InfoContext(ctx, "Account updated", "id", updated.ID, "name", updated.Name)
	return updated, nil
}

func (e *Engine) DeleteAccount(ctx context.Context, id int64, ownerID string) error {
	existing, err := e.remote.GetAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("get account %d: %w", id, err)
	}
	if existing.OwnerID != ownerID {
		return core.ErrNotFound
	}
	if err := e.remote.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (e *Engine) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	return e.remote.ListAccounts(ctx, ownerID)
}

func (e *Engine) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := e.remote.UpsertCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	e.logger.InfoContext(ctx, "Category created", "id", created.ID, "name", created.Name, "period", created.Period)
	return created, nil
}

func (e *Engine) DeleteCategory(ctx context.Context, id int64, ownerID string) error {
	existing, err := e.remote.GetCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("get category %d: %w", id, err)
	}
	if existing.OwnerID != ownerID {
		return core.ErrNotFound
	}
	if err := e.remote.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (e *Engine) ListCategories(ctx context.Context, ownerID string, period core.Period) ([]core.Category, error) {
	return e.remote.ListCategories(ctx, ownerID, period)
}

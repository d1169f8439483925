// Package remote defines the ports toward the authoritative record store.
// Adapters live in subpackages; the ledger engine depends only on these
// interfaces.
package remote

import (
	"context"
	"errors"

	"frugal/internal/core"
)

// ErrUnavailable is returned by adapters when the store cannot be reached.
// The ledger engine reacts by queuing (create) or rejecting (delete).
var ErrUnavailable = errors.New("remote store unavailable")

type (
	AccountStore interface {
		GetAccount(ctx context.Context, id int64) (core.Account, error)
		UpsertAccount(ctx context.Context, a core.Account) (core.Account, error)
		DeleteAccount(ctx context.Context, id int64) error
		ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error)
	}

	CategoryStore interface {
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		UpsertCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error
		ListCategories(ctx context.Context, ownerID string, period core.Period) ([]core.Category, error)
	}

	TransactionStore interface {
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		// InsertTransaction assigns the id when t.ID is zero and returns
		// the stored record.
		InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error
		// ListTransactions returns the owner's transactions for a period,
		// newest first.
		ListTransactions(ctx context.Context, ownerID string, period core.Period) ([]core.Transaction, error)
	}

	SummaryStore interface {
		GetSummary(ctx context.Context, ownerID string, period core.Period) (core.MonthlySummary, error)
		// UpsertSummary is keyed by (owner, period): a second upsert for
		// the same key overwrites the first.
		UpsertSummary(ctx context.Context, s core.MonthlySummary) (core.MonthlySummary, error)
		ListSummaries(ctx context.Context, ownerID string, limit int) ([]core.MonthlySummary, error)
	}

	// Subscriber delivers change notifications. Events carry no payload:
	// consumers re-fetch the named entity kind.
	Subscriber interface {
		Subscribe(ctx context.Context, ownerID string) (<-chan ChangeEvent, func(), error)
	}

	// Pinger is used by the connectivity monitor to probe reachability.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Store is the full remote contract the engine is wired with.
type Store interface {
	AccountStore
	CategoryStore
	TransactionStore
	SummaryStore
	Subscriber
	Pinger
}

// ChangeOp is the kind of mutation a ChangeEvent reports.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// EntityKind names the record type a ChangeEvent refers to.
type EntityKind string

const (
	EntityAccount     EntityKind = "account"
	EntityCategory    EntityKind = "category"
	EntityTransaction EntityKind = "transaction"
)

type ChangeEvent struct {
	Op     ChangeOp
	Entity EntityKind
	ID     int64
}

// Package storage is the device-local cache: a durable SQLite mirror of
// committed transactions plus the pending queue of writes made while the
// remote store was unreachable.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"frugal/internal/core"

	_ "modernc.org/sqlite"
)

type CacheStore struct {
	db *sql.DB
}

// PendingTransaction is a queued write awaiting replay. Seq fixes the
// insertion order replay must follow.
type PendingTransaction struct {
	Seq      int64
	Tx       core.Transaction
	QueuedAt time.Time
}

func NewCacheStore(dbPath string) (*CacheStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &CacheStore{db: db}, nil
}

func (s *CacheStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put overwrites the mirrored copy of a committed transaction, keyed by
// its remote id.
func (s *CacheStore) Put(ctx context.Context, t core.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cached_transactions
			(id, amount_cents, kind, description, date, account_id, category_id, owner_id, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
		t.ID, t.Amount.Cents, string(t.Kind), t.Description,
		t.Date.UTC().Format(time.RFC3339), t.AccountID, t.CategoryID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("put cached transaction %d: %w", t.ID, err)
	}
	return nil
}

// BulkPut mirrors a batch of committed transactions in one write
// transaction, overwriting by id.
func (s *CacheStore) BulkPut(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk put: %w", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO cached_transactions
			(id, amount_cents, kind, description, date, account_id, category_id, owner_id, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`)
	if err != nil {
		return fmt.Errorf("prepare bulk put: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Amount.Cents, string(t.Kind), t.Description,
			t.Date.UTC().Format(time.RFC3339), t.AccountID, t.CategoryID, t.OwnerID); err != nil {
			return fmt.Errorf("bulk put transaction %d: %w", t.ID, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit bulk put: %w", err)
	}

	slog.DebugContext(ctx, "Mirrored transactions into local cache", "count", len(txs))
	return nil
}

// Delete removes a mirrored transaction by remote id. Deleting an absent
// row is not an error.
func (s *CacheStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cached_transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete cached transaction %d: %w", id, err)
	}
	return nil
}

// GetAll returns the owner's mirrored transactions, newest first.
func (s *CacheStore) GetAll(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount_cents, kind, description, date, account_id, category_id, owner_id
		FROM cached_transactions
		WHERE owner_id = ?
		ORDER BY date DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query cached transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Enqueue appends a write to the pending queue and returns its sequence
// number. The stored record is served from offline reads with the
// pending flag set.
func (s *CacheStore) Enqueue(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_transactions
			(amount_cents, kind, description, date, account_id, category_id, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Amount.Cents, string(t.Kind), t.Description,
		t.Date.UTC().Format(time.RFC3339), t.AccountID, t.CategoryID, t.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("enqueue pending transaction: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("pending queue sequence: %w", err)
	}

	slog.InfoContext(ctx, "Transaction queued for replay",
		"seq", seq,
		"kind", string(t.Kind),
		"amount_cents", t.Amount.Cents,
		"account_id", t.AccountID)
	return seq, nil
}

// ListPending returns queued writes in insertion order. An empty
// ownerID returns the whole queue, which is what replay wants.
func (s *CacheStore) ListPending(ctx context.Context, ownerID string) ([]PendingTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, amount_cents, kind, description, date, account_id, category_id, owner_id, queued_at
		FROM pending_transactions
		WHERE ? = '' OR owner_id = ?
		ORDER BY seq ASC`, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query pending transactions: %w", err)
	}
	defer rows.Close()

	var out []PendingTransaction
	for rows.Next() {
		var (
			p         PendingTransaction
			kind      string
			dateStr   string
			queuedStr string
		)
		if err := rows.Scan(&p.Seq, &p.Tx.Amount.Cents, &kind, &p.Tx.Description,
			&dateStr, &p.Tx.AccountID, &p.Tx.CategoryID, &p.Tx.OwnerID, &queuedStr); err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		p.Tx.Kind = core.Kind(kind)
		p.Tx.Pending = true
		if p.Tx.Date, err = time.Parse(time.RFC3339, dateStr); err != nil {
			return nil, fmt.Errorf("parse pending date %q: %w", dateStr, err)
		}
		if p.QueuedAt, err = time.Parse("2006-01-02 15:04:05", queuedStr); err != nil {
			// sqlite datetime() format, but tolerate RFC3339 too
			if p.QueuedAt, err = time.Parse(time.RFC3339, queuedStr); err != nil {
				return nil, fmt.Errorf("parse queued_at %q: %w", queuedStr, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePending removes a replayed entry from the queue.
func (s *CacheStore) DeletePending(ctx context.Context, seq int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_transactions WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("delete pending transaction %d: %w", seq, err)
	}
	return nil
}

// CountPending reports how many writes await replay for the owner.
func (s *CacheStore) CountPending(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_transactions WHERE owner_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending transactions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		kind    string
		dateStr string
	)
	if err := r.Scan(&t.ID, &t.Amount.Cents, &kind, &t.Description,
		&dateStr, &t.AccountID, &t.CategoryID, &t.OwnerID); err != nil {
		return core.Transaction{}, fmt.Errorf("scan cached transaction: %w", err)
	}
	t.Kind = core.Kind(kind)
	var err error
	if t.Date, err = time.Parse(time.RFC3339, dateStr); err != nil {
		return core.Transaction{}, fmt.Errorf("parse cached date %q: %w", dateStr, err)
	}
	return t, nil
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"frugal/internal/connectivity"
	"frugal/internal/core"
	"frugal/internal/ledger"
	"frugal/internal/remote/memory"
	"frugal/internal/storage"
	"frugal/internal/summary"
)

const testOwner = "user-1"

var testDate = time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)

type serverFixture struct {
	server   *Server
	store    *memory.Store
	monitor  *connectivity.Monitor
	account  core.Account
	category core.Category
}

func newServerFixture(t *testing.T, publisher SummaryPublisher) *serverFixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	account, err := store.UpsertAccount(ctx, core.Account{
		Name:    "Checking",
		Balance: core.Money{Cents: 100_00},
		OwnerID: testOwner,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	category, err := store.UpsertCategory(ctx, core.Category{
		Name:    "Food",
		Period:  core.PeriodOf(testDate),
		OwnerID: testOwner,
	})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}

	cacheStore, err := storage.NewCacheStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cacheStore.Close() })

	monitor := connectivity.NewMonitor(connectivity.Online)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := ledger.NewEngine(store, cacheStore, monitor, logger)
	summarizer := summary.NewSummarizer(store, logger)

	s := NewServer("127.0.0.1:0", testOwner, engine, summarizer, monitor, publisher)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	})

	return &serverFixture{
		server:   s,
		store:    store,
		monitor:  monitor,
		account:  account,
		category: category,
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *serverFixture) createExpense(t *testing.T, amount string) transactionJSON {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/transactions", createTransactionRequest{
		Amount:      amount,
		Kind:        "expense",
		Description: "groceries",
		Date:        testDate.Format(time.RFC3339),
		AccountID:   f.account.ID,
		CategoryID:  f.category.ID,
	})
	if rec.Code != http.StatusCreated && rec.Code != http.StatusAccepted {
		t.Fatalf("create expense: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[transactionJSON](t, rec)
}

func TestCreateTransaction(t *testing.T) {
	f := newServerFixture(t, nil)

	created := f.createExpense(t, "25.50")
	if created.ID == 0 {
		t.Error("expected an assigned id")
	}
	if created.Amount != "25.50" || created.AmountCents != 25_50 {
		t.Errorf("amount = %s (%d cents)", created.Amount, created.AmountCents)
	}
	if created.Pending {
		t.Error("online create should not be pending")
	}

	account, err := f.store.GetAccount(context.Background(), f.account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Cents != 74_50 {
		t.Errorf("balance = %d, want 7450", account.Balance.Cents)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newServerFixture(t, nil)

	tests := []struct {
		name string
		req  createTransactionRequest
		want int
	}{
		{
			name: "bad amount",
			req:  createTransactionRequest{Amount: "abc", Kind: "expense", Description: "x", AccountID: f.account.ID},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "negative amount",
			req:  createTransactionRequest{Amount: "-5.00", Kind: "expense", Description: "x", AccountID: f.account.ID},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "bad kind",
			req:  createTransactionRequest{Amount: "5.00", Kind: "transfer", Description: "x", AccountID: f.account.ID},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "missing account",
			req:  createTransactionRequest{Amount: "5.00", Kind: "expense", Description: "x"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown account",
			req:  createTransactionRequest{Amount: "5.00", Kind: "expense", Description: "x", AccountID: 999},
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/transactions", tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreateTransactionMalformedBody(t *testing.T) {
	f := newServerFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateTransactionOffline(t *testing.T) {
	f := newServerFixture(t, nil)
	f.monitor.SetOffline()

	rec := f.do(t, http.MethodPost, "/transactions", createTransactionRequest{
		Amount:      "10.00",
		Kind:        "expense",
		Description: "coffee",
		Date:        testDate.Format(time.RFC3339),
		AccountID:   f.account.ID,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	queued := decodeBody[transactionJSON](t, rec)
	if !queued.Pending {
		t.Error("offline create should be pending")
	}

	status := decodeBody[statusResponse](t, f.do(t, http.MethodGet, "/status", nil))
	if status.State != "offline" || status.PendingCount != 1 {
		t.Errorf("status = %+v, want offline with 1 pending", status)
	}
}

func TestDeleteTransaction(t *testing.T) {
	f := newServerFixture(t, nil)
	created := f.createExpense(t, "25.50")

	rec := f.do(t, http.MethodDelete, fmt.Sprintf("/transactions/%d", created.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %s)", rec.Code, rec.Body.String())
	}

	account, err := f.store.GetAccount(context.Background(), f.account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Cents != 100_00 {
		t.Errorf("balance = %d, want restored 10000", account.Balance.Cents)
	}
}

func TestDeleteTransactionErrors(t *testing.T) {
	f := newServerFixture(t, nil)
	created := f.createExpense(t, "5.00")

	if rec := f.do(t, http.MethodDelete, "/transactions/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/transactions/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}

	f.monitor.SetOffline()
	rec := f.do(t, http.MethodDelete, fmt.Sprintf("/transactions/%d", created.ID), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("offline delete: status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestPendingQueueEndpoints(t *testing.T) {
	f := newServerFixture(t, nil)
	f.monitor.SetOffline()
	f.createExpense(t, "10.00")

	pending := decodeBody[[]pendingJSON](t, f.do(t, http.MethodGet, "/pending", nil))
	if len(pending) != 1 {
		t.Fatalf("got %d pending items, want 1", len(pending))
	}
	if pending[0].Seq == 0 {
		t.Error("expected an assigned queue sequence")
	}
	if !pending[0].Transaction.Pending {
		t.Error("queued record should be flagged pending")
	}

	if rec := f.do(t, http.MethodDelete, "/pending/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown seq: status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/pending/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad seq: status = %d, want 400", rec.Code)
	}

	rec := f.do(t, http.MethodDelete, fmt.Sprintf("/pending/%d", pending[0].Seq), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("discard: status = %d, want 204 (body %s)", rec.Code, rec.Body.String())
	}

	pending = decodeBody[[]pendingJSON](t, f.do(t, http.MethodGet, "/pending", nil))
	if len(pending) != 0 {
		t.Errorf("got %d pending items after discard, want 0", len(pending))
	}
	status := decodeBody[statusResponse](t, f.do(t, http.MethodGet, "/status", nil))
	if status.PendingCount != 0 {
		t.Errorf("pending count = %d, want 0", status.PendingCount)
	}
}

func TestListTransactionsUsesCache(t *testing.T) {
	f := newServerFixture(t, nil)
	f.createExpense(t, "25.50")

	period := core.PeriodOf(testDate)
	path := "/transactions?period=" + string(period)

	first := decodeBody[[]transactionJSON](t, f.do(t, http.MethodGet, path, nil))
	if len(first) != 1 {
		t.Fatalf("got %d transactions, want 1", len(first))
	}

	// A write that bypasses the server is invisible until something
	// purges the read cache.
	if _, err := f.store.InsertTransaction(context.Background(), core.Transaction{
		Amount:      core.Money{Cents: 1_00},
		Kind:        core.Income,
		Description: "direct",
		Date:        testDate,
		AccountID:   f.account.ID,
		OwnerID:     testOwner,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cached := decodeBody[[]transactionJSON](t, f.do(t, http.MethodGet, path, nil))
	if len(cached) != 1 {
		t.Fatalf("got %d transactions from cache, want 1", len(cached))
	}

	f.createExpense(t, "2.00")
	fresh := decodeBody[[]transactionJSON](t, f.do(t, http.MethodGet, path, nil))
	if len(fresh) != 3 {
		t.Errorf("got %d transactions after purge, want 3", len(fresh))
	}
}

func TestListTransactionsBadPeriod(t *testing.T) {
	f := newServerFixture(t, nil)
	if rec := f.do(t, http.MethodGet, "/transactions?period=2026-13", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestStatusOnline(t *testing.T) {
	f := newServerFixture(t, nil)

	status := decodeBody[statusResponse](t, f.do(t, http.MethodGet, "/status", nil))
	if status.State != "online" || status.PendingCount != 0 {
		t.Errorf("status = %+v, want online with 0 pending", status)
	}
}

func TestHealthAndReady(t *testing.T) {
	f := newServerFixture(t, nil)

	if rec := f.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	f := newServerFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/status", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < mutationsPerMinute; i++ {
		if !rl.allow("198.51.100.7") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("198.51.100.7") {
		t.Error("request over the budget should be rejected")
	}
	if !rl.allow("198.51.100.8") {
		t.Error("other clients keep their own budget")
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "direct", remoteAddr: "203.0.113.5:1234", want: "203.0.113.5"},
		{name: "forwarded via trusted proxy", remoteAddr: "10.0.0.1:1234", forwarded: "203.0.113.5", want: "203.0.113.5"},
		{name: "forwarded via untrusted peer", remoteAddr: "203.0.113.9:1234", forwarded: "198.51.100.1", want: "203.0.113.9"},
		{name: "garbage forwarded header", remoteAddr: "10.0.0.1:1234", forwarded: "not-an-ip", want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

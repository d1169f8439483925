// Package google backs the remote ports with a Google Sheets
// spreadsheet, one tab per record type. Sheets is the authoritative
// store; the API quota and latency are why the rest of the system
// caches locally and queues offline writes.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"frugal/internal/core"
	"frugal/internal/remote"
)

type Config struct {
	SpreadsheetID string

	// OAuth client and token, as JSON blobs or file paths. JSON wins
	// when both are set.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string

	// Tab names, defaulted when empty.
	AccountsSheet     string
	CategoriesSheet   string
	TransactionsSheet string
	SummariesSheet    string
}

type Store struct {
	svc           *gsheet.Service
	spreadsheetID string

	accountsSheet     string
	categoriesSheet   string
	transactionsSheet string
	summariesSheet    string

	mu   sync.Mutex // guards id allocation and subscriber list
	subs []chan remote.ChangeEvent
}

var _ remote.Store = (*Store)(nil)

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	s := &Store{
		svc:               svc,
		spreadsheetID:     cfg.SpreadsheetID,
		accountsSheet:     defaultSheet(cfg.AccountsSheet, "Accounts"),
		categoriesSheet:   defaultSheet(cfg.CategoriesSheet, "Categories"),
		transactionsSheet: defaultSheet(cfg.TransactionsSheet, "Transactions"),
		summariesSheet:    defaultSheet(cfg.SummariesSheet, "Summaries"),
	}

	slog.InfoContext(ctx, "Google Sheets store initialized", "spreadsheet_id", cfg.SpreadsheetID)
	return s, nil
}

func defaultSheet(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	clientJSON, err := loadBlob(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client credentials: %w", err)
	}
	tokenJSON, err := loadBlob(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	oauthCfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	return gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
}

func loadBlob(inline, file string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return b, nil
	default:
		return nil, errors.New("neither inline JSON nor file path provided")
	}
}

// wrapUnavailable maps transport-level failures onto
// remote.ErrUnavailable so the engine can tell an outage from a real
// API error.
func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
		}
		return err
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("spreadsheetId").Context(ctx).Do()
	return wrapUnavailable(err)
}

// readRows returns the data rows of a tab, skipping the header row.
// Cleared rows come back empty and are kept so row numbers stay stable.
func (s *Store) readRows(ctx context.Context, sheet string) ([][]any, error) {
	rng := fmt.Sprintf("%s!A2:Z", sheet)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("read %s: %w", rng, err))
	}
	return resp.Values, nil
}

// findRow locates the sheet row holding the given id. Sheet rows are
// 1-based and row 1 is the header.
func findRow(rows [][]any, id int64) (int, bool) {
	for i, row := range rows {
		rowID, err := cellInt(row, 0)
		if err == nil && rowID == id {
			return i + 2, true
		}
	}
	return 0, false
}

func nextID(rows [][]any) int64 {
	var max int64
	for _, row := range rows {
		if id, err := cellInt(row, 0); err == nil && id > max {
			max = id
		}
	}
	return max + 1
}

func (s *Store) writeRow(ctx context.Context, sheet string, rowNum int, values []any) error {
	rng := fmt.Sprintf("%s!A%d", sheet, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return wrapUnavailable(fmt.Errorf("write %s: %w", rng, err))
	}
	return nil
}

func (s *Store) appendRow(ctx context.Context, sheet string, values []any) error {
	rng := fmt.Sprintf("%s!A:Z", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return wrapUnavailable(fmt.Errorf("append to %s: %w", sheet, err))
	}
	return nil
}

func (s *Store) clearRow(ctx context.Context, sheet string, rowNum int) error {
	rng := fmt.Sprintf("%s!A%d:Z%d", sheet, rowNum, rowNum)
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return wrapUnavailable(fmt.Errorf("clear %s: %w", rng, err))
	}
	return nil
}

func (s *Store) notify(ev remote.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Accounts

func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	rows, err := s.readRows(ctx, s.accountsSheet)
	if err != nil {
		return core.Account{}, err
	}
	if rowNum, ok := findRow(rows, id); ok {
		return rowToAccount(rows[rowNum-2])
	}
	return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
}

func (s *Store) UpsertAccount(ctx context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows(ctx, s.accountsSheet)
	if err != nil {
		return core.Account{}, err
	}

	op := remote.OpUpdate
	if a.ID == 0 {
		a.ID = nextID(rows)
		op = remote.OpCreate
	}

	if rowNum, ok := findRow(rows, a.ID); ok {
		err = s.writeRow(ctx, s.accountsSheet, rowNum, accountToRow(a))
	} else {
		err = s.appendRow(ctx, s.accountsSheet, accountToRow(a))
	}
	if err != nil {
		return core.Account{}, err
	}

	go s.notify(remote.ChangeEvent{Op: op, Entity: remote.EntityAccount, ID: a.ID})
	return a, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	rows, err := s.readRows(ctx, s.accountsSheet)
	if err != nil {
		return err
	}
	rowNum, ok := findRow(rows, id)
	if !ok {
		return fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	if err := s.clearRow(ctx, s.accountsSheet, rowNum); err != nil {
		return err
	}
	go s.notify(remote.ChangeEvent{Op: remote.OpDelete, Entity: remote.EntityAccount, ID: id})
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := s.readRows(ctx, s.accountsSheet)
	if err != nil {
		return nil, err
	}
	var out []core.Account
	for _, row := range rows {
		if len(row) == 0 || cellString(row, 0) == "" {
			continue
		}
		a, err := rowToAccount(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed account row", "error", err)
			continue
		}
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Categories

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	rows, err := s.readRows(ctx, s.categoriesSheet)
	if err != nil {
		return core.Category{}, err
	}
	if rowNum, ok := findRow(rows, id); ok {
		return rowToCategory(rows[rowNum-2])
	}
	return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
}

func (s *Store) UpsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows(ctx, s.categoriesSheet)
	if err != nil {
		return core.Category{}, err
	}

	op := remote.OpUpdate
	if c.ID == 0 {
		c.ID = nextID(rows)
		op = remote.OpCreate
	}

	if rowNum, ok := findRow(rows, c.ID); ok {
		err = s.writeRow(ctx, s.categoriesSheet, rowNum, categoryToRow(c))
	} else {
		err = s.appendRow(ctx, s.categoriesSheet, categoryToRow(c))
	}
	if err != nil {
		return core.Category{}, err
	}

	go s.notify(remote.ChangeEvent{Op: op, Entity: remote.EntityCategory, ID: c.ID})
	return c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	rows, err := s.readRows(ctx, s.categoriesSheet)
	if err != nil {
		return err
	}
	rowNum, ok := findRow(rows, id)
	if !ok {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err := s.clearRow(ctx, s.categoriesSheet, rowNum); err != nil {
		return err
	}
	go s.notify(remote.ChangeEvent{Op: remote.OpDelete, Entity: remote.EntityCategory, ID: id})
	return nil
}

func (s *Store) ListCategories(ctx context.Context, ownerID string, period core.Period) ([]core.Category, error) {
	rows, err := s.readRows(ctx, s.categoriesSheet)
	if err != nil {
		return nil, err
	}
	var out []core.Category
	for _, row := range rows {
		if len(row) == 0 || cellString(row, 0) == "" {
			continue
		}
		c, err := rowToCategory(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed category row", "error", err)
			continue
		}
		if c.OwnerID == ownerID && (period == "" || c.Period == period) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Transactions

func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	rows, err := s.readRows(ctx, s.transactionsSheet)
	if err != nil {
		return core.Transaction{}, err
	}
	if rowNum, ok := findRow(rows, id); ok {
		return rowToTransaction(rows[rowNum-2])
	}
	return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows(ctx, s.transactionsSheet)
	if err != nil {
		return core.Transaction{}, err
	}

	if t.ID == 0 {
		t.ID = nextID(rows)
	}
	t.Pending = false

	if err := s.appendRow(ctx, s.transactionsSheet, transactionToRow(t)); err != nil {
		return core.Transaction{}, err
	}

	go s.notify(remote.ChangeEvent{Op: remote.OpCreate, Entity: remote.EntityTransaction, ID: t.ID})
	return t, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	rows, err := s.readRows(ctx, s.transactionsSheet)
	if err != nil {
		return err
	}
	rowNum, ok := findRow(rows, id)
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err := s.clearRow(ctx, s.transactionsSheet, rowNum); err != nil {
		return err
	}
	go s.notify(remote.ChangeEvent{Op: remote.OpDelete, Entity: remote.EntityTransaction, ID: id})
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, ownerID string, period core.Period) ([]core.Transaction, error) {
	rows, err := s.readRows(ctx, s.transactionsSheet)
	if err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, row := range rows {
		if len(row) == 0 || cellString(row, 0) == "" {
			continue
		}
		t, err := rowToTransaction(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed transaction row", "error", err)
			continue
		}
		if t.OwnerID != ownerID {
			continue
		}
		if period != "" && !period.Contains(t.Date) {
			continue
		}
		out = append(out, t)
	}
	// Newest first, matching what the cache and API serve.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Summaries

func (s *Store) GetSummary(ctx context.Context, ownerID string, period core.Period) (core.MonthlySummary, error) {
	rows, err := s.readRows(ctx, s.summariesSheet)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	for _, row := range rows {
		if len(row) == 0 || cellString(row, 0) == "" {
			continue
		}
		sum, err := rowToSummary(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed summary row", "error", err)
			continue
		}
		if sum.OwnerID == ownerID && sum.Period == period {
			return sum, nil
		}
	}
	return core.MonthlySummary{}, fmt.Errorf("summary %s/%s: %w", ownerID, period, core.ErrNotFound)
}

func (s *Store) UpsertSummary(ctx context.Context, sum core.MonthlySummary) (core.MonthlySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows(ctx, s.summariesSheet)
	if err != nil {
		return core.MonthlySummary{}, err
	}

	// Keyed by (owner, period): reuse the existing row and id if present.
	existingRow := 0
	for i, row := range rows {
		if len(row) == 0 || cellString(row, 0) == "" {
			continue
		}
		prev, err := rowToSummary(row)
		if err != nil {
			continue
		}
		if prev.OwnerID == sum.OwnerID && prev.Period == sum.Period {
			sum.ID = prev.ID
			existingRow = i + 2
			break
		}
	}
	if sum.ID == 0 {
		sum.ID = nextID(rows)
	}

	values, err := summaryToRow(sum)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	if existingRow > 0 {
		err = s.writeRow(ctx, s.summariesSheet, existingRow, values)
	} else {
		err = s.appendRow(ctx, s.summariesSheet, values)
	}
	if err != nil {
		return core.MonthlySummary{}, err
	}
	return sum, nil
}

func (s *Store) ListSummaries(ctx context.Context, ownerID string, limit int) ([]core.MonthlySummary, error) {
	rows, err := s.readRows(ctx, s.summariesSheet)
	if err != nil {
		return nil, err
	}
	var out []core.MonthlySummary
	for _, row := range rows {
		if len(row) == 0 || cellString(row, 0) == "" {
			continue
		}
		sum, err := rowToSummary(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed summary row", "error", err)
			continue
		}
		if sum.OwnerID == ownerID {
			out = append(out, sum)
		}
	}
	// Periods sort lexically, newest first.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Period > out[j-1].Period; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Subscribe reports mutations made through this client. Sheets has no
// push channel, so changes made by other writers are only picked up by
// the next read.
func (s *Store) Subscribe(_ context.Context, _ string) (<-chan remote.ChangeEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

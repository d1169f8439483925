package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"frugal/internal/core"
	"frugal/internal/ledger"
	"frugal/internal/remote"
)

type errorResponse struct {
	Error string `json:"error"`
	// Partial commit details; the caller retries the same request to
	// finish the remaining steps.
	FailedStep     string   `json:"failed_step,omitempty"`
	CompletedSteps []string `json:"completed_steps,omitempty"`
}

type statusResponse struct {
	State        string `json:"state"`
	PendingCount int64  `json:"pending_count"`
}

type transactionJSON struct {
	ID          int64  `json:"id"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Date        string `json:"date"`
	AccountID   int64  `json:"account_id"`
	CategoryID  int64  `json:"category_id,omitempty"`
	Pending     bool   `json:"pending"`
}

type pendingJSON struct {
	Seq         int64           `json:"seq"`
	Transaction transactionJSON `json:"transaction"`
}

type accountJSON struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Balance      string `json:"balance"`
	BalanceCents int64  `json:"balance_cents"`
}

type categoryJSON struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Spent      string `json:"spent"`
	SpentCents int64  `json:"spent_cents"`
	Period     string `json:"period"`
}

type summaryJSON struct {
	ID               int64             `json:"id"`
	Period           string            `json:"period"`
	TotalIncome      string            `json:"total_income"`
	TotalExpenses    string            `json:"total_expenses"`
	CategoryExpenses map[string]string `json:"category_expenses"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Amount:      t.Amount.String(),
		AmountCents: t.Amount.Cents,
		Kind:        string(t.Kind),
		Description: t.Description,
		Date:        t.Date.Format(time.RFC3339),
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		Pending:     t.Pending,
	}
}

func toAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		ID:           a.ID,
		Name:         a.Name,
		Balance:      a.Balance.String(),
		BalanceCents: a.Balance.Cents,
	}
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{
		ID:         c.ID,
		Name:       c.Name,
		Spent:      c.Spent.String(),
		SpentCents: c.Spent.Cents,
		Period:     string(c.Period),
	}
}

func toSummaryJSON(s core.MonthlySummary) summaryJSON {
	byCategory := make(map[string]string, len(s.CategoryExpenses))
	for name, amount := range s.CategoryExpenses {
		byCategory[name] = amount.String()
	}
	return summaryJSON{
		ID:               s.ID,
		Period:           string(s.Period),
		TotalIncome:      s.TotalIncome.String(),
		TotalExpenses:    s.TotalExpenses.String(),
		CategoryExpenses: byCategory,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError translates engine and store errors into status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var partial *ledger.PartialCommitError
	if errors.As(err, &partial) {
		completed := make([]string, 0, len(partial.Completed))
		for _, step := range partial.Completed {
			completed = append(completed, string(step))
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:          err.Error(),
			FailedStep:     string(partial.Failed),
			CompletedSteps: completed,
		})
		return
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrOfflineDeleteNotSupported):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, remote.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidKind,
		core.ErrEmptyDescription,
		core.ErrEmptyName,
		core.ErrMissingAccount,
		core.ErrMissingOwner,
		core.ErrInvalidPeriod,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"frugal/internal/core"
)

type createTransactionRequest struct {
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"` // RFC 3339, defaults to now
	AccountID   int64  `json:"account_id"`
	CategoryID  int64  `json:"category_id,omitempty"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	key := "tx:" + string(period)
	if cached, ok := s.txCache.Get(key); ok {
		writeTransactionList(w, cached)
		return
	}

	txs, err := s.engine.ListTransactions(r.Context(), s.ownerID, period)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.txCache.Set(key, txs)
	writeTransactionList(w, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	date := time.Now()
	if req.Date != "" {
		date, err = time.Parse(time.RFC3339, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be RFC 3339")
			return
		}
	}

	created, err := s.engine.CreateTransaction(r.Context(), core.Transaction{
		Amount:      core.Money{Cents: cents},
		Kind:        core.Kind(req.Kind),
		Description: req.Description,
		Date:        date,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		OwnerID:     s.ownerID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.txCache.Purge()
	s.summaryCache.Purge()

	status := http.StatusCreated
	if created.Pending {
		// Queued locally, not yet committed to the remote.
		status = http.StatusAccepted
	}
	writeJSON(w, status, toTransactionJSON(created))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := s.engine.DeleteTransaction(r.Context(), id, s.ownerID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.txCache.Purge()
	s.summaryCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.ListPendingWrites(r.Context(), s.ownerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]pendingJSON, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingJSON{Seq: p.Seq, Transaction: toTransactionJSON(p.Tx)})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDiscardPending removes a queued write that will never commit,
// unblocking the replays stuck behind it.
func (s *Server) handleDiscardPending(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseInt(r.PathValue("seq"), 10, 64)
	if err != nil || seq <= 0 {
		writeError(w, http.StatusBadRequest, "invalid queue sequence")
		return
	}

	if err := s.engine.DiscardPending(r.Context(), seq, s.ownerID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.txCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func writeTransactionList(w http.ResponseWriter, txs []core.Transaction) {
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// periodParam reads the optional period query parameter, defaulting to
// the current month.
func periodParam(r *http.Request) (core.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return core.PeriodOf(time.Now()), nil
	}
	period := core.Period(raw)
	if err := period.Validate(); err != nil {
		return "", err
	}
	return period, nil
}

package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"frugal/internal/core"
)

type createAccountRequest struct {
	Name string `json:"name"`
	// Opening balance as a decimal string; empty means zero.
	OpeningBalance string `json:"opening_balance,omitempty"`
}

type createCategoryRequest struct {
	Name   string `json:"name"`
	Period string `json:"period,omitempty"` // defaults to the current month
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.engine.ListAccounts(r.Context(), s.ownerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var balance core.Money
	if req.OpeningBalance != "" {
		cents, err := core.ParseDecimalToCents(req.OpeningBalance)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		balance = core.Money{Cents: cents}
	}

	created, err := s.engine.CreateAccount(r.Context(), core.Account{
		Name:    req.Name,
		Balance: balance,
		OwnerID: s.ownerID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountJSON(created))
}

type updateAccountRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	updated, err := s.engine.UpdateAccount(r.Context(), id, req.Name, s.ownerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(updated))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	if err := s.engine.DeleteAccount(r.Context(), id, s.ownerID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.txCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	categories, err := s.engine.ListCategories(r.Context(), s.ownerID, period)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]categoryJSON, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	period := core.Period(req.Period)
	if req.Period == "" {
		period = core.PeriodOf(time.Now())
	}

	created, err := s.engine.CreateCategory(r.Context(), core.Category{
		Name:    req.Name,
		Period:  period,
		OwnerID: s.ownerID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryJSON(created))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := s.engine.DeleteCategory(r.Context(), id, s.ownerID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.txCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

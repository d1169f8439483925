package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"frugal/internal/core"
)

type runSummaryRequest struct {
	Period string `json:"period,omitempty"` // defaults to the current month
}

type runSummaryQueued struct {
	Status string `json:"status"`
	Period string `json:"period"`
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	limit := 12
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	key := "summaries:" + strconv.Itoa(limit)
	if cached, ok := s.summaryCache.Get(key); ok {
		writeSummaryList(w, cached)
		return
	}

	summaries, err := s.summarizer.List(r.Context(), s.ownerID, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.summaryCache.Set(key, summaries)
	writeSummaryList(w, summaries)
}

// handleRunSummary recomputes one period's snapshot. With a publisher
// configured the work is handed to the worker and the request returns
// 202; otherwise it runs inline.
func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	var req runSummaryRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	period := core.Period(req.Period)
	if req.Period == "" {
		period = core.PeriodOf(time.Now())
	}
	if err := period.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.summaryCache.Purge()

	if s.publisher != nil {
		if err := s.publisher.PublishSummaryRun(r.Context(), s.ownerID, period); err != nil {
			slog.ErrorContext(r.Context(), "Failed publishing summary run", "period", string(period), "error", err)
			writeError(w, http.StatusServiceUnavailable, "summary queue unavailable")
			return
		}
		writeJSON(w, http.StatusAccepted, runSummaryQueued{Status: "queued", Period: string(period)})
		return
	}

	computed, err := s.summarizer.Run(r.Context(), s.ownerID, period)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryJSON(computed))
}

func writeSummaryList(w http.ResponseWriter, summaries []core.MonthlySummary) {
	out := make([]summaryJSON, 0, len(summaries))
	for _, m := range summaries {
		out = append(out, toSummaryJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}

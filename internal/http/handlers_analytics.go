package http

import (
	"errors"
	"net/http"

	"wealthwise/internal/services"
)

// handleSumByCategory totals the cycle's entries per category. Without a
// cycle parameter the totals cover all time.
func (s *Server) handleSumByCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := parseCycleParam(r, "cycle")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if _, err := s.svc.Profiles.Get(r.Context(), userID); err != nil {
		FromError(r, err, "failed to load analytics").Write(w)
		return
	}

	totals, err := s.svc.Analytics.SumByCategory(r.Context(), userID, c)
	if err != nil {
		FromError(r, err, "failed to load analytics").Write(w)
		return
	}
	out := make([]categoryTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, categoryTotalResponse{Category: t.Name, Kind: string(t.Kind), Total: t.Total})
	}
	NewJSONResponse().Body(out).Write(w)
}

// handleMonthly returns income and expense for the last months cycles,
// oldest first.
func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	months, err := parseIntParam(r, "months", services.DefaultMonths)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if _, err := s.svc.Profiles.Get(r.Context(), userID); err != nil {
		FromError(r, err, "failed to load analytics").Write(w)
		return
	}

	totals, err := s.svc.Analytics.MonthlyTotals(r.Context(), userID, months, s.today())
	if err != nil {
		var validation *services.ValidationError
		if errors.As(err, &validation) {
			BadRequestError(validation.Error()).Write(w)
			return
		}
		FromError(r, err, "failed to load analytics").Write(w)
		return
	}
	out := make([]monthlyTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthlyTotalResponse{Cycle: t.Cycle, Income: t.Income, Expense: t.Expense, Balance: t.Balance()})
	}
	NewJSONResponse().Body(out).Write(w)
}

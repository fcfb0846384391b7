package http

import (
	"errors"
	"net/http"

	"wealthwise/internal/core"
	wlog "wealthwise/internal/log"
)

// handleReconcile reconciles the user's ledger for ?cycle=YYYY-MM, or the
// current cycle when absent. Failures other than an unknown user or a bad
// cycle are reported generically.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	target, err := parseCycleParam(r, "cycle")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	res, err := s.svc.Reconciler.Reconcile(r.Context(), userID, target, s.now())
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			NotFoundError("user not found").Write(w)
			return
		}
		wlog.FromContext(r.Context()).WithComponent(wlog.ComponentHTTP).ErrorContext(r.Context(), "Reconcile request failed",
			wlog.FieldUserID, userID,
			wlog.FieldErrorType, wlog.ErrorTypeDatabase,
			wlog.FieldError, err)
		InternalServerError("failed to reconcile month").Write(w)
		return
	}

	resp := reconcileResponse{OK: true, Cycle: res.Cycle, Inserted: len(res.Inserted)}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedStep{Step: sk.Step, Reason: sk.Reason})
	}
	NewJSONResponse().Body(resp).Write(w)
}

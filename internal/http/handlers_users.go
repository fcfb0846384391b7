package http

import (
	"net/http"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/services"
)

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	created, err := s.svc.Profiles.Create(r.Context(), core.UserProfile{
		Name:           sanitizeInput(req.Name),
		Email:          req.Email,
		FixedIncome:    req.FixedIncome,
		FixedExpenses:  req.FixedExpenses,
		PaydayDay:      req.PaydayDay,
		InitialBalance: req.InitialBalance,
		SavingsGoal:    req.SavingsGoal,
	})
	if err != nil {
		FromError(r, err, "failed to create user").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newUserResponse(created)).Write(w)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	p, err := s.svc.Profiles.Get(r.Context(), userID)
	if err != nil {
		FromError(r, err, "failed to load user").Write(w)
		return
	}
	NewJSONResponse().Body(newUserResponse(p)).Write(w)
}

// handleUpdateUser patches the profile. Only fields present in the body
// change; entries already booked keep their amounts.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		req.Name = &name
	}

	updated, err := s.svc.Profiles.Update(r.Context(), userID, services.ProfilePatch{
		Name:           req.Name,
		Email:          req.Email,
		FixedIncome:    req.FixedIncome,
		FixedExpenses:  req.FixedExpenses,
		PaydayDay:      req.PaydayDay,
		InitialBalance: req.InitialBalance,
		SavingsGoal:    req.SavingsGoal,
	})
	if err != nil {
		FromError(r, err, "failed to update user").Write(w)
		return
	}
	NewJSONResponse().Body(newUserResponse(updated)).Write(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	now := s.today()
	stats, err := s.svc.Profiles.Stats(r.Context(), userID, now)
	if err != nil {
		FromError(r, err, "failed to load account stats").Write(w)
		return
	}
	NewJSONResponse().Body(statsResponse{
		Cycle:         cycle.Of(now).String(),
		DaysActive:    stats.DaysActive,
		TotalExpenses: stats.TotalExpenses,
		CycleIncome:   stats.CycleIncome,
		CycleExpenses: stats.CycleExpenses,
		Savings:       stats.Savings,
		SavingsGoal:   stats.SavingsGoal,
		GoalReached:   stats.GoalReached,
	}).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	cats, err := s.svc.Categories.List(r.Context(), userID)
	if err != nil {
		FromError(r, err, "failed to list categories").Write(w)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, newCategoryResponse(c))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	created, err := s.svc.Categories.Create(r.Context(), userID, sanitizeInput(req.Name), core.Kind(req.Kind))
	if err != nil {
		FromError(r, err, "failed to create category").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newCategoryResponse(created)).Write(w)
}

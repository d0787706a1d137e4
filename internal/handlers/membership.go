package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/BatmanBruc/inkpay/internal/membership"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/go-chi/chi/v5"
)

type extendRequest struct {
	UserID           int64     `json:"userId"`
	MembershipTypeID string    `json:"membershipTypeId"`
	StartAt          time.Time `json:"startAt"`
}

func (h *Handlers) listActivePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.List(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, plans)
}

func (h *Handlers) listAllPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.List(r.Context(), false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, plans)
}

func (h *Handlers) createPlan(w http.ResponseWriter, r *http.Request) {
	var in membership.PlanInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan, "created")
}

func (h *Handlers) updatePlan(w http.ResponseWriter, r *http.Request) {
	var in membership.PlanInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, plan)
}

func (h *Handlers) disablePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Disable(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, nil)
}

func (h *Handlers) membershipHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.memberships.History(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, list)
}

func (h *Handlers) activeMembership(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.memberships.FindActive(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, m)
}

func (h *Handlers) checkMembership(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	member, err := h.memberships.IsMember(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, map[string]bool{"isMember": member})
}

func (h *Handlers) extendMembership(w http.ResponseWriter, r *http.Request) {
	var body extendRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.UserID <= 0 || body.MembershipTypeID == "" {
		writeError(w, r, fmt.Errorf("%w: userId and membershipTypeId are required", types.ErrValidation))
		return
	}
	m, err := h.memberships.Extend(r.Context(), body.UserID, body.MembershipTypeID, body.StartAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, m)
}

package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/BatmanBruc/inkpay/types"
)

type adjustPointsRequest struct {
	UserID      int64  `json:"userId"`
	Points      int64  `json:"points"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (h *Handlers) pointsAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := h.points.Account(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, acc)
}

func (h *Handlers) pointsHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeError(w, r, fmt.Errorf("%w: bad limit %q", types.ErrValidation, raw))
			return
		}
	}
	history, err := h.points.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, history)
}

func (h *Handlers) addPoints(w http.ResponseWriter, r *http.Request) {
	body, typ, err := decodeAdjust(r, types.TxSystemGrant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.points.Credit(r.Context(), body.UserID, body.Points, typ, body.Description, nil); err != nil {
		writeError(w, r, err)
		return
	}
	h.pointsAfterAdjust(w, r, body.UserID)
}

func (h *Handlers) deductPoints(w http.ResponseWriter, r *http.Request) {
	body, typ, err := decodeAdjust(r, types.TxSystemDeduct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	done, err := h.points.Debit(r.Context(), body.UserID, body.Points, typ, body.Description, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !done {
		writeError(w, r, types.ErrInsufficientPoints)
		return
	}
	h.pointsAfterAdjust(w, r, body.UserID)
}

func (h *Handlers) pointsAfterAdjust(w http.ResponseWriter, r *http.Request, userID int64) {
	acc, err := h.points.Account(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, acc)
}

func decodeAdjust(r *http.Request, def types.TransactionType) (*adjustPointsRequest, types.TransactionType, error) {
	var body adjustPointsRequest
	if err := decodeJSON(r, &body); err != nil {
		return nil, "", err
	}
	if body.UserID <= 0 {
		return nil, "", fmt.Errorf("%w: userId is required", types.ErrValidation)
	}
	typ := def
	if body.Type != "" {
		parsed, err := types.ParseTransactionType(body.Type)
		if err != nil {
			return nil, "", err
		}
		typ = parsed
	}
	return &body, typ, nil
}

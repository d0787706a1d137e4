package handlers

import (
	"net/http"
	"strings"

	"github.com/BatmanBruc/inkpay/types"
)

type rechargePointsRequest struct {
	Points  int64  `json:"points"`
	PayType string `json:"payType"`
}

type rechargeMembershipRequest struct {
	PlanType string `json:"planType"`
	PayType  string `json:"payType"`
}

type rechargeCompleteRequest struct {
	RedisKey string `json:"redisKey"`
}

func (h *Handlers) rechargePoints(w http.ResponseWriter, r *http.Request) {
	req, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body rechargePointsRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	payType, err := types.ParsePayType(body.PayType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	handle, err := h.recharge.InitiatePointsRecharge(r.Context(), req.UserID, body.Points, payType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, handle)
}

func (h *Handlers) rechargeMembership(w http.ResponseWriter, r *http.Request) {
	req, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body rechargeMembershipRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	payType, err := types.ParsePayType(body.PayType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	handle, err := h.recharge.InitiateMembershipRecharge(r.Context(), req.UserID, strings.TrimSpace(body.PlanType), payType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, handle)
}

func (h *Handlers) rechargeComplete(w http.ResponseWriter, r *http.Request) {
	req, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body rechargeCompleteRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.recharge.CompleteRecharge(r.Context(), req.UserID, strings.TrimSpace(body.RedisKey))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, res)
}

func (h *Handlers) membershipOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.recharge.Orders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, orders)
}

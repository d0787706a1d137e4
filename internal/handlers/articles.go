package handlers

import (
	"net/http"

	"github.com/BatmanBruc/inkpay/internal/contextkeys"
	"github.com/go-chi/chi/v5"
)

type purchaseRequest struct {
	Points int64 `json:"points"`
}

func (h *Handlers) getArticle(w http.ResponseWriter, r *http.Request) {
	article, err := h.articles.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	ok(w, h.gate.Resolve(ctx, *article, contextkeys.GetRequester(ctx), contextkeys.GetLang(ctx)))
}

func (h *Handlers) purchaseArticle(w http.ResponseWriter, r *http.Request) {
	req, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body purchaseRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.purchases.PurchaseWithPoints(r.Context(), req.UserID, chi.URLParam(r, "id"), body.Points)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, p)
}

func (h *Handlers) listPurchases(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.purchases.Purchases(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, list)
}

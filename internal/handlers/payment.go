package handlers

import (
	"fmt"
	"net/http"

	"github.com/BatmanBruc/inkpay/types"
)

// paymentCallback accepts the gateway notification as query or form parameters and answers
// with the literal body the gateway expects.
func (h *Handlers) paymentCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", types.ErrValidation, err))
		return
	}
	params := make(map[string]string, len(r.Form))
	for k := range r.Form {
		params[k] = r.Form.Get(k)
	}
	if err := h.tracker.HandleCallback(r.Context(), params); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("success"))
}

func (h *Handlers) paymentStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.GetStatus(r.Context(), r.URL.Query().Get("redisKey"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, rec)
}

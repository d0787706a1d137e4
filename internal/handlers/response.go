package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BatmanBruc/inkpay/internal/contextkeys"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/go-chi/chi/v5"
)

type envelope struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Kind    types.Kind  `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Code: status, Data: data, Message: message})
}

func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data, "ok")
}

func statusFor(kind types.Kind) int {
	switch kind {
	case types.KindValidation, types.KindSignatureInvalid:
		return http.StatusBadRequest
	case types.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindConflict:
		return http.StatusConflict
	case types.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case types.KindExpired:
		return http.StatusGone
	case types.KindUnauthorized:
		return http.StatusUnauthorized
	case types.KindForbidden:
		return http.StatusForbidden
	case types.KindIntegrityFault, types.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code by its kind. Internal failures are logged and their
// details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := types.KindOf(err)
	status := statusFor(kind)
	message := err.Error()
	if status >= http.StatusInternalServerError && kind != types.KindUpstreamUnavailable {
		slog.Default().ErrorContext(r.Context(), "request failed",
			"request_id", contextkeys.GetRequestID(r.Context()),
			"path", r.URL.Path,
			"kind", kind,
			"err", err,
		)
		message = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Code: status, Message: message, Kind: kind})
}

// WriteError is the envelope writer handed to middleware.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", types.ErrValidation, err)
	}
	return nil
}

func pathUserID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "userId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad user id %q", types.ErrValidation, raw)
	}
	return id, nil
}

// ownerParam resolves the {userId} path parameter and checks the requester may read it.
func ownerParam(r *http.Request) (int64, error) {
	id, err := pathUserID(r)
	if err != nil {
		return 0, err
	}
	if !contextkeys.GetRequester(r.Context()).CanActFor(id) {
		return 0, types.ErrForbidden
	}
	return id, nil
}

func requester(r *http.Request) (*types.Requester, error) {
	req := contextkeys.GetRequester(r.Context())
	if req == nil {
		return nil, types.ErrUnauthorized
	}
	return req, nil
}

package types

import "errors"

type Kind string

const (
	KindValidation          Kind = "validation"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindNotFound            Kind = "not_found"
	KindSignatureInvalid    Kind = "signature_invalid"
	KindConflict            Kind = "conflict"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindIntegrityFault      Kind = "integrity_fault"
	KindExpired             Kind = "expired"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindInternal            Kind = "internal"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	ErrInsufficientPoints = errors.New("insufficient points")

	ErrNotFound        = errors.New("not found")
	ErrUnknownPlan     = errors.New("unknown membership plan")
	ErrUnknownOrder    = errors.New("unknown payment order")
	ErrArticleNotFound = errors.New("article not found")
	ErrUnknownUser     = errors.New("unknown user")

	ErrSignatureInvalid = errors.New("payment signature invalid")

	ErrAlreadyPurchased    = errors.New("article already purchased")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrUserMismatch        = errors.New("order belongs to another user")
	ErrMembershipConflict  = errors.New("concurrent membership activation")

	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	ErrOrderExpired = errors.New("payment order expired")
	ErrCacheMiss    = errors.New("cache miss")

	ErrIntegrityFault = errors.New("ledger integrity fault")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrIntegrityFault, KindIntegrityFault},
	{ErrValidation, KindValidation},
	{ErrInvalidAmount, KindValidation},
	{ErrInvalidTransactionType, KindValidation},
	{ErrInsufficientPoints, KindInsufficientFunds},
	{ErrUnknownPlan, KindNotFound},
	{ErrUnknownOrder, KindNotFound},
	{ErrArticleNotFound, KindNotFound},
	{ErrUnknownUser, KindNotFound},
	{ErrNotFound, KindNotFound},
	{ErrSignatureInvalid, KindSignatureInvalid},
	{ErrAlreadyPurchased, KindConflict},
	{ErrPaymentNotCompleted, KindConflict},
	{ErrMembershipConflict, KindConflict},
	{ErrUserMismatch, KindForbidden},
	{ErrGatewayUnavailable, KindUpstreamUnavailable},
	{ErrOrderExpired, KindExpired},
	{ErrCacheMiss, KindExpired},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
}

// KindOf classifies err by the first sentinel it wraps.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

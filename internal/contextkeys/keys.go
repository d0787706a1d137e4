package contextkeys

import (
	"context"

	"github.com/BatmanBruc/inkpay/internal/i18n"
	"github.com/BatmanBruc/inkpay/types"
)

type requesterKey struct{}
type requestIDKey struct{}
type langKey struct{}

func WithRequester(ctx context.Context, r *types.Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// GetRequester returns the authenticated caller, or nil for anonymous requests.
func GetRequester(ctx context.Context) *types.Requester {
	r, _ := ctx.Value(requesterKey{}).(*types.Requester)
	return r
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithLang(ctx context.Context, lang i18n.Lang) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

func GetLang(ctx context.Context) i18n.Lang {
	if lang, ok := ctx.Value(langKey{}).(i18n.Lang); ok {
		return lang
	}
	return i18n.Default
}

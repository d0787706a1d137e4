package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BatmanBruc/inkpay/internal/contextkeys"
	"github.com/BatmanBruc/inkpay/internal/i18n"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func statusWriter(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, types.ErrForbidden):
		w.WriteHeader(http.StatusForbidden)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func TestAuthenticatorRoundTrip(t *testing.T) {
	a := NewAuthenticator("s3cret")
	tok, err := a.Issue(42, types.RoleAdmin, time.Hour)
	require.NoError(t, err)

	req, err := a.Parse(tok)
	require.NoError(t, err)
	require.EqualValues(t, 42, req.UserID)
	require.True(t, req.IsAdmin())

	_, err = NewAuthenticator("other").Parse(tok)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	expired, err := a.Issue(42, types.RoleVisitor, -time.Hour)
	require.NoError(t, err)
	_, err = a.Parse(expired)
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestAuthenticatorAcceptsStringID(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "7", "role": "visitor"}).SignedString(secret)
	require.NoError(t, err)

	req, err := NewAuthenticator("s3cret").Parse(tok)
	require.NoError(t, err)
	require.EqualValues(t, 7, req.UserID)
	require.False(t, req.IsAdmin())
}

func TestAuthenticateAndAdminOnly(t *testing.T) {
	a := NewAuthenticator("k")
	m := New(a, nil, statusWriter)
	visitor, _ := a.Issue(1, types.RoleVisitor, time.Hour)
	admin, _ := a.Issue(2, types.RoleAdmin, time.Hour)

	var seen *types.Requester
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequester(r.Context())
	})

	do := func(h http.Handler, token string) int {
		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	required := m.Authenticate(true)(final)
	require.Equal(t, http.StatusUnauthorized, do(required, ""))
	require.Equal(t, http.StatusUnauthorized, do(required, "garbage"))
	require.Equal(t, http.StatusOK, do(required, visitor))
	require.EqualValues(t, 1, seen.UserID)

	optional := m.Authenticate(false)(final)
	require.Equal(t, http.StatusOK, do(optional, ""))
	require.Nil(t, seen)
	require.Equal(t, http.StatusOK, do(optional, "garbage"))
	require.Nil(t, seen)

	adminOnly := m.Authenticate(true)(m.AdminOnly(final))
	require.Equal(t, http.StatusForbidden, do(adminOnly, visitor))
	require.Equal(t, http.StatusOK, do(adminOnly, admin))
}

func TestRequestIDAndRecover(t *testing.T) {
	m := New(NewAuthenticator("k"), nil, statusWriter)

	var lang i18n.Lang
	h := m.RequestID(m.Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang = contextkeys.GetLang(r.Context())
		panic("boom")
	})))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "en-US")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))
	require.Equal(t, i18n.EN, lang)
}

package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BatmanBruc/inkpay/internal/contextkeys"
	"github.com/BatmanBruc/inkpay/internal/i18n"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrorWriter renders an error response. Handlers supply it so middleware failures use the
// same envelope as everything else.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type Middlewares struct {
	auth     *Authenticator
	logger   *slog.Logger
	writeErr ErrorWriter
}

func New(auth *Authenticator, logger *slog.Logger, writeErr ErrorWriter) *Middlewares {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middlewares{
		auth:     auth,
		logger:   logger.With("component", "http"),
		writeErr: writeErr,
	}
}

func (m *Middlewares) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		ctx = contextkeys.WithLang(ctx, i18n.FromAcceptLanguage(r.Header.Get("Accept-Language")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middlewares) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				m.logger.ErrorContext(r.Context(), "panic recovered",
					"request_id", contextkeys.GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				m.writeErr(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func (m *Middlewares) AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", contextkeys.GetRequestID(r.Context()),
		}
		if req := contextkeys.GetRequester(r.Context()); req != nil {
			fields = append(fields, "user_id", req.UserID)
		}
		switch {
		case status >= 500:
			m.logger.ErrorContext(r.Context(), "request", fields...)
		case status >= 400:
			m.logger.WarnContext(r.Context(), "request", fields...)
		default:
			m.logger.InfoContext(r.Context(), "request", fields...)
		}
	})
}

// Authenticate attaches the requester when a valid bearer token is present. With required set,
// a missing or invalid token ends the request with 401.
func (m *Middlewares) Authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				if required {
					m.writeErr(w, r, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			req, err := m.auth.Parse(raw)
			if err != nil {
				if required {
					m.writeErr(w, r, err)
					return
				}
				m.logger.DebugContext(r.Context(), "ignoring invalid token on optional route", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(contextkeys.WithRequester(r.Context(), req)))
		})
	}
}

func (m *Middlewares) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !contextkeys.GetRequester(r.Context()).IsAdmin() {
			m.writeErr(w, r, types.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("%w: missing bearer token", types.ErrUnauthorized)
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", types.ErrUnauthorized)
	}
	return token, nil
}

// Claims are the token fields issued by the identity provider.
type Claims struct {
	ID   json64 `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// json64 accepts a user id encoded as a JSON number or string.
type json64 int64

func (v *json64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("user id %s: %w", string(b), err)
	}
	*v = json64(n)
	return nil
}

// Authenticator verifies HS256 tokens.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Parse(raw string) (*types.Requester, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", types.ErrUnauthorized)
	}
	if claims.ID <= 0 {
		return nil, fmt.Errorf("%w: token has no user id", types.ErrUnauthorized)
	}
	return &types.Requester{UserID: int64(claims.ID), Role: types.ParseRole(claims.Role)}, nil
}

// Issue signs a token for userID. Used by the CLI and tests.
func (a *Authenticator) Issue(userID int64, role types.Role, ttl time.Duration) (string, error) {
	if a == nil || len(a.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:   json64(userID),
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(a.secret)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/BatmanBruc/inkpay/internal/access"
	"github.com/BatmanBruc/inkpay/internal/membership"
	"github.com/BatmanBruc/inkpay/internal/middleware"
	"github.com/BatmanBruc/inkpay/internal/payment"
	"github.com/BatmanBruc/inkpay/internal/points"
	"github.com/BatmanBruc/inkpay/internal/purchase"
	"github.com/BatmanBruc/inkpay/internal/recharge"
	"github.com/BatmanBruc/inkpay/store"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const payKey = "merchant-key"

type okGateway struct{}

func (okGateway) CreatePayment(_ context.Context, params map[string]string) (*payment.GatewayReply, error) {
	return &payment.GatewayReply{Code: 1, PayURL: "https://pay.example/" + params["out_trade_no"]}, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, types.Notification) {}

type testServer struct {
	srv  *httptest.Server
	auth *middleware.Authenticator
	mem  *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithChecks(t, nil)
}

func newTestServerWithChecks(t *testing.T, checks map[string]Pinger) *testServer {
	t.Helper()
	s := store.NewMemoryStore()
	s.PutArticle(types.Article{ID: "a1", Title: "Go", Content: "full text", HTML: "<p>full text</p>", PointsPrice: 30, Status: "publish"})

	tracker := payment.NewTracker(s, store.NewMemoryCache(), okGateway{}, payment.Config{PID: "1001", Key: payKey, NotifyURL: "http://cb"}, nil)
	pts := points.NewLedger(s, nopNotifier{}, nil)
	catalog := membership.NewCatalog(s)
	members := membership.NewLedger(s, catalog, membership.NonStacking, nil)
	purchases := purchase.NewLedger(s, s, pts, nil)

	name, price, days := "Monthly", decimal.RequireFromString("19.90"), 30
	_, err := catalog.Create(context.Background(), membership.PlanInput{ID: "monthly", Name: &name, Price: &price, DurationDays: &days})
	require.NoError(t, err)

	h := NewHandlers(Deps{
		Points:      pts,
		Catalog:     catalog,
		Memberships: members,
		Tracker:     tracker,
		Recharge: recharge.NewOrchestrator(recharge.Deps{
			Store: s, Tracker: tracker, Points: pts, Catalog: catalog, Memberships: members, Notifier: nopNotifier{},
		}),
		Purchases: purchases,
		Gate:      access.NewGate(members, purchases, nil),
		Articles:  s,
		Checks:    checks,
	})
	auth := middleware.NewAuthenticator("jwt-secret")
	srv := httptest.NewServer(NewRouter(h, middleware.New(auth, nil, WriteError)))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, auth: auth, mem: s}
}

func (ts *testServer) token(t *testing.T, userID int64, role types.Role) string {
	t.Helper()
	tok, err := ts.auth.Issue(userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

type reply struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Kind    types.Kind      `json:"kind"`
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, reply) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthzReportsUnreachableBackend(t *testing.T) {
	ts := newTestServerWithChecks(t, map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	status, out := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)

	var report map[string]string
	require.NoError(t, json.Unmarshal(out.Data, &report))
	require.Equal(t, "degraded", report["status"])
	require.Equal(t, "ok", report["postgres"])
	require.Equal(t, "down", report["redis"])
}

func TestAuthAndOwnership(t *testing.T) {
	ts := newTestServer(t)

	status, out := ts.do(t, http.MethodGet, "/user-points/user/1", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, types.KindUnauthorized, out.Kind)

	status, _ = ts.do(t, http.MethodGet, "/user-points/user/2", ts.token(t, 1, types.RoleVisitor), nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodGet, "/user-points/user/2", ts.token(t, 9, types.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodPost, "/user-points/add", ts.token(t, 1, types.RoleVisitor), map[string]any{"userId": 1, "points": 10})
	require.Equal(t, http.StatusForbidden, status)
}

func TestArticleGateAndPurchase(t *testing.T) {
	ts := newTestServer(t)
	user := ts.token(t, 1, types.RoleVisitor)
	admin := ts.token(t, 99, types.RoleAdmin)

	status, out := ts.do(t, http.MethodGet, "/article/a1", "", nil)
	require.Equal(t, http.StatusOK, status)
	var view types.ArticleView
	require.NoError(t, json.Unmarshal(out.Data, &view))
	require.True(t, view.Locked)
	require.Equal(t, "您未解锁该文章，请充值会员或购买", view.Content)
	require.Empty(t, view.HTML)

	status, out = ts.do(t, http.MethodPost, "/article/a1/purchase", user, map[string]any{"points": 30})
	require.Equal(t, http.StatusPaymentRequired, status)
	require.Equal(t, types.KindInsufficientFunds, out.Kind)

	status, _ = ts.do(t, http.MethodPost, "/user-points/add", admin, map[string]any{"userId": 1, "points": 50, "description": "welcome"})
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodPost, "/article/a1/purchase", user, map[string]any{"points": 30})
	require.Equal(t, http.StatusOK, status)

	status, out = ts.do(t, http.MethodPost, "/article/a1/purchase", user, map[string]any{"points": 30})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, types.KindConflict, out.Kind)

	status, out = ts.do(t, http.MethodGet, "/article/a1", user, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(out.Data, &view))
	require.False(t, view.Locked)
	require.Equal(t, "full text", view.Content)

	status, out = ts.do(t, http.MethodGet, "/user-points/user/1", user, nil)
	require.Equal(t, http.StatusOK, status)
	var acc types.PointsAccount
	require.NoError(t, json.Unmarshal(out.Data, &acc))
	require.EqualValues(t, 20, acc.Balance)
	require.EqualValues(t, 50, acc.TotalEarned)
	require.EqualValues(t, 30, acc.TotalSpent)

	status, _ = ts.do(t, http.MethodGet, "/article/missing", user, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestDeductInsufficient(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, 99, types.RoleAdmin)

	status, out := ts.do(t, http.MethodPost, "/user-points/deduct", admin, map[string]any{"userId": 1, "points": 5})
	require.Equal(t, http.StatusPaymentRequired, status)
	require.Equal(t, types.KindInsufficientFunds, out.Kind)

	status, out = ts.do(t, http.MethodPost, "/user-points/add", admin, map[string]any{"userId": 1, "points": 5, "type": "article_read"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, types.KindValidation, out.Kind)
}

func signedCallback(orderID string, amount decimal.Decimal, status string) url.Values {
	p := map[string]string{
		"pid":          "1001",
		"out_trade_no": orderID,
		"trade_no":     "T" + orderID,
		"money":        amount.StringFixed(2),
		"trade_status": status,
		"sign_type":    "MD5",
	}
	p["sign"] = payment.Sign(p, payKey)
	v := url.Values{}
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

func TestPointsRechargeOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	user := ts.token(t, 1, types.RoleVisitor)

	status, out := ts.do(t, http.MethodPost, "/recharge/points", user, map[string]any{"points": 100, "payType": "alipay"})
	require.Equal(t, http.StatusOK, status)
	var handle payment.OrderHandle
	require.NoError(t, json.Unmarshal(out.Data, &handle))
	require.True(t, handle.Amount.Equal(decimal.NewFromInt(10)))

	status, out = ts.do(t, http.MethodGet, "/payment/status?redisKey="+url.QueryEscape(handle.CorrelationKey), "", nil)
	require.Equal(t, http.StatusOK, status)
	var rec payment.StatusRecord
	require.NoError(t, json.Unmarshal(out.Data, &rec))
	require.Equal(t, types.OrderPending, rec.Status)

	status, out = ts.do(t, http.MethodPost, "/recharge/complete", user, map[string]any{"redisKey": handle.CorrelationKey})
	require.Equal(t, http.StatusConflict, status)

	bad := signedCallback(handle.OrderID, handle.Amount, "TRADE_SUCCESS")
	bad.Set("money", "0.01")
	resp, err := http.Get(ts.srv.URL + "/payment/callback?" + bad.Encode())
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.PostForm(ts.srv.URL+"/payment/callback", signedCallback(handle.OrderID, handle.Amount, "TRADE_SUCCESS"))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "success", string(body))

	status, _ = ts.do(t, http.MethodPost, "/recharge/complete", ts.token(t, 2, types.RoleVisitor), map[string]any{"redisKey": handle.CorrelationKey})
	require.Equal(t, http.StatusForbidden, status)

	status, out = ts.do(t, http.MethodPost, "/recharge/complete", user, map[string]any{"redisKey": handle.CorrelationKey})
	require.Equal(t, http.StatusOK, status)
	var res recharge.Result
	require.NoError(t, json.Unmarshal(out.Data, &res))
	require.EqualValues(t, 100, res.Balance)
	require.False(t, res.AlreadyFulfilled)

	status, out = ts.do(t, http.MethodPost, "/recharge/complete", user, map[string]any{"redisKey": handle.CorrelationKey})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(out.Data, &res))
	require.True(t, res.AlreadyFulfilled)

	status, out = ts.do(t, http.MethodGet, "/user-points/transactions/1?limit=10", user, nil)
	require.Equal(t, http.StatusOK, status)
	var history []types.PointsTransaction
	require.NoError(t, json.Unmarshal(out.Data, &history))
	require.Len(t, history, 1)
	require.Equal(t, types.TxPurchase, history[0].Type)
}

func TestMembershipRechargeOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	user := ts.token(t, 1, types.RoleVisitor)

	status, out := ts.do(t, http.MethodPost, "/recharge/membership", user, map[string]any{"planType": "monthly", "payType": "wxpay"})
	require.Equal(t, http.StatusOK, status)
	var handle payment.OrderHandle
	require.NoError(t, json.Unmarshal(out.Data, &handle))

	resp, err := http.PostForm(ts.srv.URL+"/payment/callback", signedCallback(handle.OrderID, handle.Amount, "TRADE_SUCCESS"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status, _ = ts.do(t, http.MethodPost, "/recharge/complete", user, map[string]any{"redisKey": handle.CorrelationKey})
	require.Equal(t, http.StatusOK, status)

	status, out = ts.do(t, http.MethodGet, "/user-membership/user/1/check", user, nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"isMember":true}`, string(out.Data))

	status, out = ts.do(t, http.MethodGet, "/membership-transaction/user/1", user, nil)
	require.Equal(t, http.StatusOK, status)
	var orders []types.MembershipTransaction
	require.NoError(t, json.Unmarshal(out.Data, &orders))
	require.Len(t, orders, 1)
	require.Equal(t, types.TxStatusSuccess, orders[0].Status)

	status, out = ts.do(t, http.MethodGet, "/article/a1", user, nil)
	require.Equal(t, http.StatusOK, status)
	var view types.ArticleView
	require.NoError(t, json.Unmarshal(out.Data, &view))
	require.False(t, view.Locked)
}

func TestPlanAdministration(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, 99, types.RoleAdmin)

	status, _ := ts.do(t, http.MethodPost, "/membership-type", ts.token(t, 1, types.RoleVisitor), map[string]any{"name": "x"})
	require.Equal(t, http.StatusForbidden, status)

	status, out := ts.do(t, http.MethodPost, "/membership-type", admin, map[string]any{"id": "yearly", "name": "Yearly", "price": "199", "duration": 365})
	require.Equal(t, http.StatusCreated, status)

	status, out = ts.do(t, http.MethodPost, "/membership-type", admin, map[string]any{"name": "Broken", "price": "-1", "duration": 30})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodDelete, "/membership-type/monthly", admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, out = ts.do(t, http.MethodGet, "/membership-type", "", nil)
	require.Equal(t, http.StatusOK, status)
	var plans []types.MembershipType
	require.NoError(t, json.Unmarshal(out.Data, &plans))
	require.Len(t, plans, 1)
	require.Equal(t, "yearly", plans[0].ID)

	status, out = ts.do(t, http.MethodGet, "/membership-type/all", admin, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(out.Data, &plans))
	require.Len(t, plans, 2)

	status, _ = ts.do(t, http.MethodPost, "/recharge/membership", ts.token(t, 1, types.RoleVisitor), map[string]any{"planType": "monthly", "payType": "alipay"})
	require.Equal(t, http.StatusNotFound, status)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	status, out = ts.do(t, http.MethodPost, "/user-membership/extend", admin, map[string]any{"userId": 5, "membershipTypeId": "yearly", "startAt": start})
	require.Equal(t, http.StatusOK, status)
	var m types.UserMembership
	require.NoError(t, json.Unmarshal(out.Data, &m))
	require.True(t, m.ExpireAt.Equal(start.AddDate(0, 0, 365)))
}

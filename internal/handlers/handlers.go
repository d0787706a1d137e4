package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BatmanBruc/inkpay/internal/access"
	"github.com/BatmanBruc/inkpay/internal/membership"
	"github.com/BatmanBruc/inkpay/internal/middleware"
	"github.com/BatmanBruc/inkpay/internal/payment"
	"github.com/BatmanBruc/inkpay/internal/points"
	"github.com/BatmanBruc/inkpay/internal/purchase"
	"github.com/BatmanBruc/inkpay/internal/recharge"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	points      *points.Ledger
	catalog     *membership.Catalog
	memberships *membership.Ledger
	tracker     *payment.Tracker
	recharge    *recharge.Orchestrator
	purchases   *purchase.Ledger
	gate        *access.Gate
	articles    types.ArticleStore
	checks      map[string]Pinger
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Points      *points.Ledger
	Catalog     *membership.Catalog
	Memberships *membership.Ledger
	Tracker     *payment.Tracker
	Recharge    *recharge.Orchestrator
	Purchases   *purchase.Ledger
	Gate        *access.Gate
	Articles    types.ArticleStore
	// Checks are pinged by /healthz, keyed by backend name.
	Checks map[string]Pinger
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		points:      d.Points,
		catalog:     d.Catalog,
		memberships: d.Memberships,
		tracker:     d.Tracker,
		recharge:    d.Recharge,
		purchases:   d.Purchases,
		gate:        d.Gate,
		articles:    d.Articles,
		checks:      d.Checks,
	}
}

func NewRouter(h *Handlers, m *middleware.Middlewares) http.Handler {
	r := chi.NewRouter()
	r.Use(m.RequestID)
	r.Use(m.Recover)
	r.Use(m.AccessLog)

	r.Get("/healthz", h.healthz)

	r.Get("/payment/callback", h.paymentCallback)
	r.Post("/payment/callback", h.paymentCallback)
	r.Get("/payment/status", h.paymentStatus)
	r.Get("/membership-type", h.listActivePlans)

	r.With(m.Authenticate(false)).Get("/article/{id}", h.getArticle)

	r.Group(func(r chi.Router) {
		r.Use(m.Authenticate(true))

		r.Post("/recharge/points", h.rechargePoints)
		r.Post("/recharge/membership", h.rechargeMembership)
		r.Post("/recharge/complete", h.rechargeComplete)

		r.Post("/article/{id}/purchase", h.purchaseArticle)
		r.Get("/article-purchase/user/{userId}", h.listPurchases)

		r.Get("/user-points/user/{userId}", h.pointsAccount)
		r.Get("/user-points/transactions/{userId}", h.pointsHistory)

		r.Get("/user-membership/user/{userId}", h.membershipHistory)
		r.Get("/user-membership/user/{userId}/active", h.activeMembership)
		r.Get("/user-membership/user/{userId}/check", h.checkMembership)
		r.Get("/membership-transaction/user/{userId}", h.membershipOrders)

		r.Group(func(r chi.Router) {
			r.Use(m.AdminOnly)
			r.Post("/user-points/add", h.addPoints)
			r.Post("/user-points/deduct", h.deductPoints)
			r.Post("/user-membership/extend", h.extendMembership)
			r.Get("/membership-type/all", h.listAllPlans)
			r.Post("/membership-type", h.createPlan)
			r.Patch("/membership-type/{id}", h.updatePlan)
			r.Delete("/membership-type/{id}", h.disablePlan)
		})
	})

	return r
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	report := map[string]string{"status": "ok"}
	healthy := true
	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			slog.Warn("health check failed", "backend", name, "err", err)
			report[name] = "down"
			healthy = false
			continue
		}
		report[name] = "ok"
	}
	if !healthy {
		report["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, report, "unhealthy")
		return
	}
	ok(w, report)
}

package recharge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BatmanBruc/inkpay/internal/i18n"
	"github.com/BatmanBruc/inkpay/internal/membership"
	"github.com/BatmanBruc/inkpay/internal/messages"
	"github.com/BatmanBruc/inkpay/internal/payment"
	"github.com/BatmanBruc/inkpay/internal/points"
	"github.com/BatmanBruc/inkpay/internal/pricing"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/google/uuid"
)

const (
	pointsKeyPrefix     = "recharge:points:"
	membershipKeyPrefix = "recharge:membership:"
)

// Result describes a completed recharge.
type Result struct {
	OrderID          string                `json:"orderId"`
	Type             types.RechargeKind    `json:"type"`
	Points           int64                 `json:"points,omitempty"`
	Balance          int64                 `json:"balance,omitempty"`
	Membership       *types.UserMembership `json:"membership,omitempty"`
	AlreadyFulfilled bool                  `json:"alreadyFulfilled"`
}

// Orchestrator turns purchase intents into payment orders and fulfills paid orders exactly once.
// store must be the same store the ledgers use so fulfillment commits atomically.
type Orchestrator struct {
	store    types.PaymentStore
	tracker  *payment.Tracker
	points   *points.Ledger
	catalog  *membership.Catalog
	members  *membership.Ledger
	notifier types.Notifier
	perUnit  int64
	now      func() time.Time
	logger   *slog.Logger
}

type Deps struct {
	Store         types.PaymentStore
	Tracker       *payment.Tracker
	Points        *points.Ledger
	Catalog       *membership.Catalog
	Memberships   *membership.Ledger
	Notifier      types.Notifier
	PointsPerUnit int64
	Logger        *slog.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.PointsPerUnit <= 0 {
		d.PointsPerUnit = pricing.DefaultPointsPerUnit
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Orchestrator{
		store:    d.Store,
		tracker:  d.Tracker,
		points:   d.Points,
		catalog:  d.Catalog,
		members:  d.Memberships,
		notifier: d.Notifier,
		perUnit:  d.PointsPerUnit,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   d.Logger.With("component", "recharge"),
	}
}

func (o *Orchestrator) InitiatePointsRecharge(ctx context.Context, userID, pts int64, payType types.PayType) (*payment.OrderHandle, error) {
	amount, err := pricing.PointsPrice(pts, o.perUnit)
	if err != nil {
		return nil, err
	}
	return o.tracker.CreateOrder(ctx, payment.CreateOrderInput{
		Amount:         amount,
		Title:          messages.PointsRechargeTitle(pts),
		CorrelationKey: pointsKeyPrefix + uuid.New().String(),
		PayType:        payType,
		Metadata: types.RechargeMetadata{
			Type:   types.RechargePoints,
			UserID: userID,
			Points: pts,
		},
	})
}

// InitiateMembershipRecharge opens an order for an active plan and records a pending
// membership transaction alongside it.
func (o *Orchestrator) InitiateMembershipRecharge(ctx context.Context, userID int64, planID string, payType types.PayType) (*payment.OrderHandle, error) {
	plan, err := o.catalog.Resolve(ctx, planID)
	if err != nil {
		return nil, err
	}
	return o.tracker.CreateOrder(ctx, payment.CreateOrderInput{
		Amount:         plan.Price,
		Title:          messages.MembershipRechargeTitle(plan.Name),
		CorrelationKey: membershipKeyPrefix + uuid.New().String(),
		PayType:        payType,
		Metadata: types.RechargeMetadata{
			Type:         types.RechargeMembership,
			UserID:       userID,
			PlanID:       plan.ID,
			DurationDays: plan.DurationDays,
		},
		Persist: func(ctx context.Context, order *types.PaymentOrder) error {
			return o.store.CreateMembershipTransaction(ctx, &types.MembershipTransaction{
				UserID:           userID,
				MembershipTypeID: plan.ID,
				Amount:           order.Amount,
				OrderID:          order.OrderID,
				Status:           types.TxStatusPending,
				PaymentMethod:    string(order.PayType),
			})
		},
	})
}

// CompleteRecharge grants what a paid order bought. Repeated calls for the same order return
// the first outcome with AlreadyFulfilled set and grant nothing.
func (o *Orchestrator) CompleteRecharge(ctx context.Context, userID int64, correlationKey string) (*Result, error) {
	// The cache only maps the key to an order; the locked row decides.
	rec, err := o.tracker.GetStatus(ctx, correlationKey)
	if err != nil {
		return nil, err
	}

	res := &Result{OrderID: rec.OrderID}
	err = o.store.InTx(ctx, func(ctx context.Context) error {
		order, err := o.store.LockPaymentOrder(ctx, rec.OrderID)
		if err != nil {
			return err
		}
		if order.Status != types.OrderSuccess {
			return fmt.Errorf("%w: order %s is %s", types.ErrPaymentNotCompleted, order.OrderID, order.Status)
		}
		meta := order.Metadata
		if meta.UserID != userID {
			return types.ErrUserMismatch
		}
		res.Type = meta.Type
		if order.FulfilledAt != nil {
			res.AlreadyFulfilled = true
			return nil
		}

		now := o.now()
		switch meta.Type {
		case types.RechargePoints:
			orderID := order.OrderID
			if err := o.points.Credit(ctx, userID, meta.Points, types.TxPurchase, order.Title, &orderID); err != nil {
				return err
			}
			res.Points = meta.Points
		case types.RechargeMembership:
			m, err := o.members.ExtendPurchased(ctx, userID, meta.PlanID, now)
			if err != nil {
				return err
			}
			if err := o.store.SetMembershipTransactionStatus(ctx, order.OrderID, types.TxStatusSuccess, &now); err != nil {
				return err
			}
			res.Membership = m
		default:
			return fmt.Errorf("%w: order %s has unknown recharge type %q", types.ErrValidation, order.OrderID, meta.Type)
		}

		order.FulfilledAt = &now
		return o.store.UpdatePaymentOrder(ctx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("complete recharge %s: %w", rec.OrderID, err)
	}

	if res.AlreadyFulfilled {
		o.logger.Info("recharge already fulfilled", "order_id", res.OrderID, "user_id", userID)
		return res, nil
	}
	o.logger.Info("recharge fulfilled", "order_id", res.OrderID, "user_id", userID, "type", res.Type)
	o.notifyFulfilled(ctx, userID, res)
	return res, nil
}

func (o *Orchestrator) notifyFulfilled(ctx context.Context, userID int64, res *Result) {
	var title, text string
	switch res.Type {
	case types.RechargePoints:
		balance, err := o.points.Balance(ctx, userID)
		if err != nil {
			o.logger.Warn("balance lookup after recharge failed", "user_id", userID, "err", err)
		}
		res.Balance = balance
		title, text = messages.PointsCredited(i18n.Default, res.Points, balance)
	case types.RechargeMembership:
		name := res.Membership.MembershipTypeID
		if plan, err := o.catalog.Get(ctx, name); err == nil {
			name = plan.Name
		}
		title, text = messages.MembershipActivated(i18n.Default, name, res.Membership.ExpireAt.Format("2006-01-02"))
	default:
		return
	}
	if o.notifier != nil {
		o.notifier.Notify(ctx, types.Notification{UserID: userID, Title: title, Text: text})
	}
}

// Orders lists the user's membership purchases, newest first.
func (o *Orchestrator) Orders(ctx context.Context, userID int64) ([]types.MembershipTransaction, error) {
	return o.store.ListMembershipTransactions(ctx, userID)
}

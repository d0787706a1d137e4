package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BatmanBruc/inkpay/internal/messages"
	"github.com/BatmanBruc/inkpay/internal/pricing"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const tradeSuccess = "TRADE_SUCCESS"

type Config struct {
	PID       string
	Key       string
	NotifyURL string
	ReturnURL string
	OrderTTL  time.Duration
	// SettleWindow is how long a pending order may wait for its callback before the sweep fails it.
	SettleWindow time.Duration
	Device       string
}

type CreateOrderInput struct {
	Amount         decimal.Decimal
	Title          string
	CorrelationKey string
	PayType        types.PayType
	Metadata       types.RechargeMetadata
	// Persist runs in the transaction that stores the order.
	Persist func(ctx context.Context, o *types.PaymentOrder) error
}

type OrderHandle struct {
	OrderID        string          `json:"orderId"`
	CorrelationKey string          `json:"redisKey"`
	Amount         decimal.Decimal `json:"amount"`
	PayURL         string          `json:"payUrl"`
	QRCode         string          `json:"qrcode"`
}

// StatusRecord is the cached view of an order, keyed by its correlation key.
type StatusRecord struct {
	OrderID  string                 `json:"orderId"`
	Status   types.OrderStatus      `json:"status"`
	Amount   decimal.Decimal        `json:"amount"`
	Metadata types.RechargeMetadata `json:"metadata"`
}

// Tracker owns payment orders: creation at the gateway, signed callbacks and the
// TTL-bound status cache. The durable row is the source of truth.
type Tracker struct {
	store    types.PaymentStore
	cache    types.Cache
	gateway  Gateway
	cfg      Config
	notifier types.Notifier
	now      func() time.Time
	logger   *slog.Logger
}

func NewTracker(store types.PaymentStore, cache types.Cache, gateway Gateway, cfg Config, logger *slog.Logger) *Tracker {
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = 30 * time.Minute
	}
	if cfg.SettleWindow < cfg.OrderTTL {
		cfg.SettleWindow = 2 * time.Hour
		if cfg.SettleWindow < cfg.OrderTTL {
			cfg.SettleWindow = cfg.OrderTTL
		}
	}
	if cfg.Device == "" {
		cfg.Device = "pc"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:   store,
		cache:   cache,
		gateway: gateway,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With("component", "payment"),
	}
}

// WithNotifier sets where operator alerts about late payments go.
func (t *Tracker) WithNotifier(n types.Notifier) *Tracker {
	t.notifier = n
	return t
}

// WithClock replaces the time source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderHandle, error) {
	if in.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: order amount must not be negative", types.ErrInvalidAmount)
	}
	payType, err := types.ParsePayType(string(in.PayType))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.CorrelationKey) == "" || strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: correlation key and title are required", types.ErrValidation)
	}
	if !in.Metadata.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown recharge type %q", types.ErrValidation, in.Metadata.Type)
	}

	metadata, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	if in.Amount.IsZero() {
		return t.createFreeOrder(ctx, orderID, payType, in)
	}
	params := map[string]string{
		"pid":          t.cfg.PID,
		"type":         string(payType),
		"out_trade_no": orderID,
		"notify_url":   t.cfg.NotifyURL,
		"return_url":   t.cfg.ReturnURL,
		"name":         in.Title,
		"money":        pricing.Money(in.Amount),
		"device":       t.cfg.Device,
		"param":        string(metadata),
		"sign_type":    "MD5",
	}
	if params["return_url"] == "" {
		delete(params, "return_url")
	}
	params["sign"] = Sign(params, t.cfg.Key)

	reply, err := t.gateway.CreatePayment(ctx, params)
	if err != nil {
		t.logger.Error("gateway rejected order", "order_id", orderID, "err", err)
		if !errors.Is(err, types.ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %v", types.ErrGatewayUnavailable, err)
		}
		return nil, err
	}

	order := &types.PaymentOrder{
		OrderID:        orderID,
		CorrelationKey: in.CorrelationKey,
		Title:          in.Title,
		Amount:         in.Amount.Round(2),
		Status:         types.OrderPending,
		PayType:        payType,
		PayURL:         reply.PayURL,
		QRCode:         reply.QRCode,
		Metadata:       in.Metadata,
	}
	if err := t.persist(ctx, order, in.Persist); err != nil {
		return nil, err
	}
	t.logger.Info("order created", "order_id", orderID, "amount", pricing.Money(order.Amount), "type", order.Metadata.Type, "user_id", order.Metadata.UserID)
	return handleOf(order), nil
}

// createFreeOrder records a zero-priced order as paid without involving the gateway.
func (t *Tracker) createFreeOrder(ctx context.Context, orderID string, payType types.PayType, in CreateOrderInput) (*OrderHandle, error) {
	order := &types.PaymentOrder{
		OrderID:        orderID,
		CorrelationKey: in.CorrelationKey,
		Title:          in.Title,
		Amount:         decimal.Zero,
		Status:         types.OrderSuccess,
		PayType:        payType,
		Metadata:       in.Metadata,
	}
	if err := t.persist(ctx, order, in.Persist); err != nil {
		return nil, err
	}
	t.logger.Info("free order settled", "order_id", orderID, "type", order.Metadata.Type, "user_id", order.Metadata.UserID)
	return handleOf(order), nil
}

func (t *Tracker) persist(ctx context.Context, order *types.PaymentOrder, hook func(context.Context, *types.PaymentOrder) error) error {
	err := t.store.InTx(ctx, func(ctx context.Context) error {
		if err := t.store.CreatePaymentOrder(ctx, order); err != nil {
			return err
		}
		if hook != nil {
			return hook(ctx, order)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist order %s: %w", order.OrderID, err)
	}
	if err := t.cache.Set(ctx, order.CorrelationKey, statusOf(order), t.cfg.OrderTTL); err != nil {
		return fmt.Errorf("cache order %s: %w", order.OrderID, err)
	}
	return nil
}

func handleOf(o *types.PaymentOrder) *OrderHandle {
	return &OrderHandle{
		OrderID:        o.OrderID,
		CorrelationKey: o.CorrelationKey,
		Amount:         o.Amount,
		PayURL:         o.PayURL,
		QRCode:         o.QRCode,
	}
}

// HandleCallback applies a gateway notification. Callbacks for orders that already reached a
// terminal status are accepted without effect, except a success for an order the sweep
// expired: the payment is recorded and operators are alerted.
func (t *Tracker) HandleCallback(ctx context.Context, params map[string]string) error {
	if !Verify(params, t.cfg.Key) {
		t.logger.Warn("callback rejected: bad signature", "order_id", params["out_trade_no"])
		return types.ErrSignatureInvalid
	}
	orderID := strings.TrimSpace(params["out_trade_no"])
	if orderID == "" {
		return fmt.Errorf("%w: callback without out_trade_no", types.ErrUnknownOrder)
	}

	next := types.OrderSuccess
	if ts := params["trade_status"]; ts != "" && ts != tradeSuccess {
		next = types.OrderFailed
	}

	var (
		order     *types.PaymentOrder
		changed   bool
		recovered bool
	)
	err := t.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = t.store.LockPaymentOrder(ctx, orderID)
		if err != nil {
			return err
		}
		recovered = order.Status == types.OrderFailed && order.ExpiredAt != nil && next == types.OrderSuccess
		if order.Status.Terminal() && !recovered {
			return nil
		}
		if money := params["money"]; money != "" {
			paid, err := pricing.ParseMoney(money)
			if err != nil || !paid.Equal(order.Amount) {
				return fmt.Errorf("%w: callback money %q does not match order amount %s", types.ErrInvalidAmount, money, pricing.Money(order.Amount))
			}
		}

		order.Status = next
		if err := t.store.UpdatePaymentOrder(ctx, order); err != nil {
			return err
		}
		if order.Metadata.Type == types.RechargeMembership {
			if next == types.OrderFailed {
				if err := t.store.SetMembershipTransactionStatus(ctx, order.OrderID, types.TxStatusFailed, nil); err != nil {
					return err
				}
			} else if recovered {
				if err := t.store.SetMembershipTransactionStatus(ctx, order.OrderID, types.TxStatusPending, nil); err != nil {
					return err
				}
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		t.logger.Warn("callback rejected", "order_id", orderID, "err", err)
		return err
	}
	if !changed {
		t.logger.Info("callback for settled order ignored", "order_id", orderID, "status", order.Status)
		return nil
	}

	if recovered {
		t.logger.Warn("payment received for expired order", "order_id", orderID, "user_id", order.Metadata.UserID, "amount", pricing.Money(order.Amount))
		t.alert(ctx, order)
		if err := t.cache.Set(ctx, order.CorrelationKey, statusOf(order), t.cfg.OrderTTL); err != nil {
			t.logger.Error("status cache write failed", "order_id", order.OrderID, "err", err)
		}
		return nil
	}

	t.logger.Info("order settled", "order_id", orderID, "status", order.Status)
	t.refreshCache(ctx, order)
	return nil
}

func (t *Tracker) alert(ctx context.Context, order *types.PaymentOrder) {
	if t.notifier == nil {
		return
	}
	title, text := messages.LatePaymentAlert(order.Metadata.UserID, order.OrderID, pricing.Money(order.Amount))
	t.notifier.Notify(ctx, types.Notification{UserID: order.Metadata.UserID, Title: title, Text: text, Alert: true})
}

// refreshCache rewrites an entry that is still present and restarts its TTL.
func (t *Tracker) refreshCache(ctx context.Context, order *types.PaymentOrder) {
	var rec StatusRecord
	if err := t.cache.Get(ctx, order.CorrelationKey, &rec); err != nil {
		if !errors.Is(err, types.ErrCacheMiss) {
			t.logger.Error("status cache read failed", "order_id", order.OrderID, "err", err)
		}
		return
	}
	rec.Status = order.Status
	if err := t.cache.Set(ctx, order.CorrelationKey, rec, t.cfg.OrderTTL); err != nil {
		t.logger.Error("status cache write failed", "order_id", order.OrderID, "err", err)
	}
}

// GetStatus reads the cached order status. ErrOrderExpired means the lookup window has passed.
func (t *Tracker) GetStatus(ctx context.Context, correlationKey string) (*StatusRecord, error) {
	if strings.TrimSpace(correlationKey) == "" {
		return nil, fmt.Errorf("%w: redisKey is required", types.ErrValidation)
	}
	var rec StatusRecord
	if err := t.cache.Get(ctx, correlationKey, &rec); err != nil {
		if errors.Is(err, types.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", types.ErrOrderExpired, correlationKey)
		}
		return nil, err
	}
	return &rec, nil
}

// Order returns the durable order row.
func (t *Tracker) Order(ctx context.Context, orderID string) (*types.PaymentOrder, error) {
	return t.store.GetPaymentOrder(ctx, orderID)
}

// ExpireStale fails pending orders older than the settle window.
func (t *Tracker) ExpireStale(ctx context.Context) (int64, error) {
	n, err := t.store.FailPendingOrders(ctx, t.now().Add(-t.cfg.SettleWindow))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.logger.Info("stale orders failed", "count", n)
	}
	return n, nil
}

func statusOf(o *types.PaymentOrder) StatusRecord {
	return StatusRecord{
		OrderID:  o.OrderID,
		Status:   o.Status,
		Amount:   o.Amount,
		Metadata: o.Metadata,
	}
}

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const paymentOrderColumns = `order_id, correlation_key, title, amount::text, status, pay_type, pay_url, qrcode, metadata, fulfilled_at, expired_at, created_at, updated_at`

func scanPaymentOrder(row pgx.Row) (*types.PaymentOrder, error) {
	var (
		o               types.PaymentOrder
		amount          string
		status, payType string
		metadata        []byte
	)
	err := row.Scan(&o.OrderID, &o.CorrelationKey, &o.Title, &amount, &status, &payType, &o.PayURL, &o.QRCode, &metadata, &o.FulfilledAt, &o.ExpiredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &o.Metadata); err != nil {
		return nil, err
	}
	o.Status = types.OrderStatus(status)
	o.PayType = types.PayType(payType)
	return &o, nil
}

func (s *PostgresStore) CreatePaymentOrder(ctx context.Context, o *types.PaymentOrder) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	metadata, err := json.Marshal(o.Metadata)
	if err != nil {
		return err
	}
	return s.q(ctx).QueryRow(ctx, `
INSERT INTO payment_orders (order_id, correlation_key, title, amount, status, pay_type, pay_url, qrcode, metadata)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at
`, o.OrderID, o.CorrelationKey, o.Title, o.Amount.StringFixed(2), string(o.Status), string(o.PayType), o.PayURL, o.QRCode, metadata).
		Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (s *PostgresStore) GetPaymentOrder(ctx context.Context, orderID string) (*types.PaymentOrder, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	o, err := scanPaymentOrder(s.q(ctx).QueryRow(ctx, `SELECT `+paymentOrderColumns+` FROM payment_orders WHERE order_id = $1`, orderID))
	if err != nil {
		return nil, notFound(err, types.ErrUnknownOrder)
	}
	return o, nil
}

func (s *PostgresStore) LockPaymentOrder(ctx context.Context, orderID string) (*types.PaymentOrder, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + paymentOrderColumns + ` FROM payment_orders WHERE order_id = $1`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}
	o, err := scanPaymentOrder(s.q(ctx).QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, notFound(err, types.ErrUnknownOrder)
	}
	return o, nil
}

func (s *PostgresStore) UpdatePaymentOrder(ctx context.Context, o *types.PaymentOrder) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.q(ctx).QueryRow(ctx, `
UPDATE payment_orders
SET status = $2, fulfilled_at = $3, updated_at = NOW()
WHERE order_id = $1
RETURNING updated_at
`, o.OrderID, string(o.Status), o.FulfilledAt).Scan(&o.UpdatedAt)
	return notFound(err, types.ErrUnknownOrder)
}

func (s *PostgresStore) FailPendingOrders(ctx context.Context, createdBefore time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.q(ctx).Exec(ctx, `
UPDATE payment_orders
SET status = 'failed', expired_at = NOW(), updated_at = NOW()
WHERE status = 'pending' AND created_at < $1
`, createdBefore)
	if err != nil {
		return 0, err
	}
	_, err = s.q(ctx).Exec(ctx, `
UPDATE membership_transactions
SET status = 'failed', updated_at = NOW()
WHERE status = 'pending' AND created_at < $1
`, createdBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CreateMembershipTransaction(ctx context.Context, t *types.MembershipTransaction) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	err := s.q(ctx).QueryRow(ctx, `
INSERT INTO membership_transactions (id, user_id, membership_type_id, amount, order_id, status, payment_method)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
RETURNING created_at, updated_at
`, t.ID, t.UserID, t.MembershipTypeID, t.Amount.StringFixed(2), t.OrderID, string(t.Status), t.PaymentMethod).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if pgCode(err) == pgForeignKeyViolation {
		return types.ErrUnknownUser
	}
	return err
}

func (s *PostgresStore) SetMembershipTransactionStatus(ctx context.Context, orderID string, status types.TransactionStatus, paidAt *time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.q(ctx).Exec(ctx, `
UPDATE membership_transactions
SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
WHERE order_id = $1 AND status <> 'success'
`, orderID, string(status), paidAt)
	return err
}

func (s *PostgresStore) ListMembershipTransactions(ctx context.Context, userID int64) ([]types.MembershipTransaction, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.q(ctx).Query(ctx, `
SELECT id::text, user_id, membership_type_id, amount::text, order_id, status, payment_method, paid_at, created_at, updated_at
FROM membership_transactions
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.MembershipTransaction, 0)
	for rows.Next() {
		var (
			t              types.MembershipTransaction
			amount, status string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.MembershipTypeID, &amount, &t.OrderID, &status, &t.PaymentMethod, &t.PaidAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		t.Status = types.TransactionStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *PostgresStore) LockAccount(ctx context.Context, userID int64) (*types.PointsAccount, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.q(ctx).Exec(ctx, `
INSERT INTO points_accounts (user_id, balance, total_earned, total_spent)
VALUES ($1, 0, 0, 0)
ON CONFLICT (user_id) DO NOTHING
`, userID)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return nil, types.ErrUnknownUser
		}
		return nil, err
	}

	query := `
SELECT user_id, balance, total_earned, total_spent, created_at, updated_at
FROM points_accounts
WHERE user_id = $1
`
	if inTx(ctx) {
		query += "FOR UPDATE"
	}
	var a types.PointsAccount
	err = s.q(ctx).QueryRow(ctx, query, userID).
		Scan(&a.UserID, &a.Balance, &a.TotalEarned, &a.TotalSpent, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, acc *types.PointsAccount) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.q(ctx).Exec(ctx, `
UPDATE points_accounts
SET balance = $2, total_earned = $3, total_spent = $4, updated_at = NOW()
WHERE user_id = $1
`, acc.UserID, acc.Balance, acc.TotalEarned, acc.TotalSpent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendTransaction(ctx context.Context, t *types.PointsTransaction) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).Exec(ctx, `
INSERT INTO points_transactions (id, user_id, points, type, description, related_article_id, related_order_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, t.ID, t.UserID, t.Points, string(t.Type), t.Description, t.RelatedArticleID, t.RelatedOrderID, string(t.Status), t.CreatedAt)
	if pgCode(err) == pgForeignKeyViolation {
		return types.ErrArticleNotFound
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID int64) (*types.PointsAccount, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var a types.PointsAccount
	err := s.q(ctx).QueryRow(ctx, `
SELECT user_id, balance, total_earned, total_spent, created_at, updated_at
FROM points_accounts
WHERE user_id = $1
`, userID).Scan(&a.UserID, &a.Balance, &a.TotalEarned, &a.TotalSpent, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &types.PointsAccount{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID int64, limit int) ([]types.PointsTransaction, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q(ctx).Query(ctx, `
SELECT id::text, user_id, points, type, description, related_article_id, related_order_id, status, created_at
FROM points_transactions
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.PointsTransaction, 0)
	for rows.Next() {
		var (
			t           types.PointsTransaction
			typ, status string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Points, &typ, &t.Description, &t.RelatedArticleID, &t.RelatedOrderID, &status, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = types.TransactionType(typ)
		t.Status = types.TransactionStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

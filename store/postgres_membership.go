package store

import (
	"context"
	"errors"
	"time"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const membershipTypeColumns = `id, name, description, price::text, duration_days, is_active, created_at, updated_at`

func scanMembershipType(row pgx.Row) (*types.MembershipType, error) {
	var (
		mt    types.MembershipType
		price string
	)
	if err := row.Scan(&mt.ID, &mt.Name, &mt.Description, &price, &mt.DurationDays, &mt.IsActive, &mt.CreatedAt, &mt.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	mt.Price = p
	return &mt, nil
}

func (s *PostgresStore) CreateMembershipType(ctx context.Context, mt *types.MembershipType) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if mt.ID == "" {
		mt.ID = uuid.New().String()
	}
	err := s.q(ctx).QueryRow(ctx, `
INSERT INTO membership_types (id, name, description, price, duration_days, is_active)
VALUES ($1, $2, $3, $4::numeric, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  description = EXCLUDED.description,
  price = EXCLUDED.price,
  duration_days = EXCLUDED.duration_days,
  is_active = EXCLUDED.is_active,
  updated_at = NOW()
RETURNING created_at, updated_at
`, mt.ID, mt.Name, mt.Description, mt.Price.String(), mt.DurationDays, mt.IsActive).Scan(&mt.CreatedAt, &mt.UpdatedAt)
	return err
}

func (s *PostgresStore) UpdateMembershipType(ctx context.Context, mt *types.MembershipType) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.q(ctx).QueryRow(ctx, `
UPDATE membership_types
SET name = $2, description = $3, price = $4::numeric, duration_days = $5, is_active = $6, updated_at = NOW()
WHERE id = $1
RETURNING updated_at
`, mt.ID, mt.Name, mt.Description, mt.Price.String(), mt.DurationDays, mt.IsActive).Scan(&mt.UpdatedAt)
	return notFound(err, types.ErrUnknownPlan)
}

func (s *PostgresStore) GetMembershipType(ctx context.Context, id string) (*types.MembershipType, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	mt, err := scanMembershipType(s.q(ctx).QueryRow(ctx, `SELECT `+membershipTypeColumns+` FROM membership_types WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, types.ErrUnknownPlan)
	}
	return mt, nil
}

func (s *PostgresStore) ListMembershipTypes(ctx context.Context, activeOnly bool) ([]types.MembershipType, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + membershipTypeColumns + ` FROM membership_types ORDER BY created_at DESC`
	if activeOnly {
		query = `SELECT ` + membershipTypeColumns + ` FROM membership_types WHERE is_active ORDER BY price ASC`
	}
	rows, err := s.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.MembershipType, 0)
	for rows.Next() {
		mt, err := scanMembershipType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *mt)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LockUserMemberships(ctx context.Context, userID int64) error {
	if !inTx(ctx) {
		return nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.q(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('user_memberships:' || $1::text, 0))`, userID)
	return err
}

func (s *PostgresStore) DeactivateUserMemberships(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.q(ctx).Exec(ctx, `
UPDATE user_memberships
SET is_active = FALSE
WHERE user_id = $1 AND is_active
`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) InsertMembership(ctx context.Context, m *types.UserMembership) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	err := s.q(ctx).QueryRow(ctx, `
INSERT INTO user_memberships (id, user_id, membership_type_id, start_at, expire_at, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at
`, m.ID, m.UserID, m.MembershipTypeID, m.StartAt, m.ExpireAt, m.IsActive).Scan(&m.CreatedAt)
	switch pgCode(err) {
	case pgUniqueViolation:
		return types.ErrMembershipConflict
	case pgForeignKeyViolation:
		return types.ErrUnknownUser
	}
	return err
}

const membershipColumns = `id::text, user_id, membership_type_id, start_at, expire_at, is_active, created_at`

func scanMembership(row pgx.Row) (*types.UserMembership, error) {
	var m types.UserMembership
	if err := row.Scan(&m.ID, &m.UserID, &m.MembershipTypeID, &m.StartAt, &m.ExpireAt, &m.IsActive, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) FindActiveMembership(ctx context.Context, userID int64, now time.Time) (*types.UserMembership, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	m, err := scanMembership(s.q(ctx).QueryRow(ctx, `
SELECT `+membershipColumns+`
FROM user_memberships
WHERE user_id = $1 AND is_active AND expire_at > $2
ORDER BY created_at DESC
LIMIT 1
`, userID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (s *PostgresStore) CountActiveMemberships(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var n int
	err := s.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM user_memberships WHERE user_id = $1 AND is_active`, userID).Scan(&n)
	return n, err
}

func (s *PostgresStore) ListMemberships(ctx context.Context, userID int64) ([]types.UserMembership, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.q(ctx).Query(ctx, `
SELECT `+membershipColumns+`
FROM user_memberships
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.UserMembership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.q(ctx).Exec(ctx, `
UPDATE user_memberships
SET is_active = FALSE
WHERE is_active AND expire_at <= $1
`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BatmanBruc/inkpay/types"
)

const day = 24 * time.Hour

// Ledger owns user memberships. A user has at most one active row.
type Ledger struct {
	store   types.MembershipStore
	catalog *Catalog
	policy  RenewalPolicy
	now     func() time.Time
	logger  *slog.Logger
}

func NewLedger(store types.MembershipStore, catalog *Catalog, policy RenewalPolicy, logger *slog.Logger) *Ledger {
	if policy == nil {
		policy = NonStacking
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:   store,
		catalog: catalog,
		policy:  policy,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With("component", "membership"),
	}
}

// WithClock replaces the time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Extend activates typeID for userID starting at startAt (now when zero) and deactivates any
// previous membership.
func (l *Ledger) Extend(ctx context.Context, userID int64, typeID string, startAt time.Time) (*types.UserMembership, error) {
	return l.extend(ctx, userID, typeID, startAt, l.catalog.Resolve)
}

// ExtendPurchased is Extend for a plan that was already paid for. The plan only has to exist,
// so disabling a plan does not void orders paid before it was disabled.
func (l *Ledger) ExtendPurchased(ctx context.Context, userID int64, typeID string, startAt time.Time) (*types.UserMembership, error) {
	return l.extend(ctx, userID, typeID, startAt, l.catalog.Get)
}

func (l *Ledger) extend(ctx context.Context, userID int64, typeID string, startAt time.Time,
	lookup func(context.Context, string) (*types.MembershipType, error)) (*types.UserMembership, error) {
	now := l.now()
	if startAt.IsZero() {
		startAt = now
	}

	var m *types.UserMembership
	err := l.store.InTx(ctx, func(ctx context.Context) error {
		if err := l.store.LockUserMemberships(ctx, userID); err != nil {
			return err
		}
		plan, err := lookup(ctx, typeID)
		if err != nil {
			return err
		}
		current, err := l.store.FindActiveMembership(ctx, userID, now)
		if err != nil {
			return err
		}

		start := l.policy(startAt, current)
		m = &types.UserMembership{
			UserID:           userID,
			MembershipTypeID: plan.ID,
			StartAt:          start,
			ExpireAt:         start.Add(time.Duration(plan.DurationDays) * day),
			IsActive:         true,
		}
		if _, err := l.store.DeactivateUserMemberships(ctx, userID); err != nil {
			return err
		}
		if err := l.store.InsertMembership(ctx, m); err != nil {
			return err
		}

		active, err := l.store.CountActiveMemberships(ctx, userID)
		if err != nil {
			return err
		}
		if active != 1 {
			return fmt.Errorf("%w: user %d has %d active memberships", types.ErrIntegrityFault, userID, active)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extend membership for user %d: %w", userID, err)
	}

	l.logger.Info("membership extended", "user_id", userID, "plan", m.MembershipTypeID, "expire_at", m.ExpireAt)
	return m, nil
}

// FindActive returns the unexpired active membership or nil.
func (l *Ledger) FindActive(ctx context.Context, userID int64) (*types.UserMembership, error) {
	return l.store.FindActiveMembership(ctx, userID, l.now())
}

func (l *Ledger) IsMember(ctx context.Context, userID int64) (bool, error) {
	m, err := l.FindActive(ctx, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

func (l *Ledger) History(ctx context.Context, userID int64) ([]types.UserMembership, error) {
	return l.store.ListMemberships(ctx, userID)
}

// DeactivateExpired clears the active flag of every membership past its expiry.
func (l *Ledger) DeactivateExpired(ctx context.Context) (int64, error) {
	n, err := l.store.DeactivateExpired(ctx, l.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Info("expired memberships deactivated", "count", n)
	}
	return n, nil
}

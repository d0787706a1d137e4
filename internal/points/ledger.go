package points

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/BatmanBruc/inkpay/internal/messages"
	"github.com/BatmanBruc/inkpay/types"
)

// Ledger owns points balances. Every mutation locks the account, rewrites it and appends
// one transaction inside a single store transaction.
type Ledger struct {
	store    types.PointsStore
	notifier types.Notifier
	logger   *slog.Logger
}

func NewLedger(store types.PointsStore, notifier types.Notifier, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "points"),
	}
}

// Credit adds points. typ must be a credit type.
func (l *Ledger) Credit(ctx context.Context, userID, points int64, typ types.TransactionType, description string, orderID *string) error {
	if err := validate(points, typ, types.DirectionCredit); err != nil {
		return err
	}

	var acc *types.PointsAccount
	err := l.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		acc, err = l.store.LockAccount(ctx, userID)
		if err != nil {
			return err
		}
		if err := l.checkIntegrity(ctx, acc, "before credit"); err != nil {
			return err
		}
		if acc.Balance > math.MaxInt64-points || acc.TotalEarned > math.MaxInt64-points {
			return fmt.Errorf("%w: credit of %d overflows the account", types.ErrInvalidAmount, points)
		}
		acc.Balance += points
		acc.TotalEarned += points
		if err := l.checkIntegrity(ctx, acc, "after credit"); err != nil {
			return err
		}
		if err := l.store.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return l.store.AppendTransaction(ctx, &types.PointsTransaction{
			UserID:         userID,
			Points:         points,
			Type:           typ,
			Description:    description,
			RelatedOrderID: orderID,
			Status:         types.TxStatusSuccess,
		})
	})
	if err != nil {
		return fmt.Errorf("credit user %d: %w", userID, err)
	}

	l.logger.Info("points credited", "user_id", userID, "points", points, "type", typ, "balance", acc.Balance)
	return nil
}

// Debit removes points when the balance covers them. Insufficient funds is reported as
// (false, nil) and leaves the account untouched.
func (l *Ledger) Debit(ctx context.Context, userID, points int64, typ types.TransactionType, description string, articleID *string) (bool, error) {
	if err := validate(points, typ, types.DirectionDebit); err != nil {
		return false, err
	}

	ok := false
	var acc *types.PointsAccount
	err := l.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		acc, err = l.store.LockAccount(ctx, userID)
		if err != nil {
			return err
		}
		if err := l.checkIntegrity(ctx, acc, "before debit"); err != nil {
			return err
		}
		if acc.Balance < points {
			return nil
		}
		acc.Balance -= points
		acc.TotalSpent += points
		if err := l.checkIntegrity(ctx, acc, "after debit"); err != nil {
			return err
		}
		if err := l.store.SaveAccount(ctx, acc); err != nil {
			return err
		}
		if err := l.store.AppendTransaction(ctx, &types.PointsTransaction{
			UserID:           userID,
			Points:           -points,
			Type:             typ,
			Description:      description,
			RelatedArticleID: articleID,
			Status:           types.TxStatusSuccess,
		}); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("debit user %d: %w", userID, err)
	}

	if ok {
		l.logger.Info("points debited", "user_id", userID, "points", points, "type", typ, "balance", acc.Balance)
	} else {
		l.logger.Debug("debit refused", "user_id", userID, "points", points, "balance", acc.Balance)
	}
	return ok, nil
}

func (l *Ledger) Balance(ctx context.Context, userID int64) (int64, error) {
	acc, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (l *Ledger) Account(ctx context.Context, userID int64) (*types.PointsAccount, error) {
	return l.store.GetAccount(ctx, userID)
}

// History returns the newest transactions first.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]types.PointsTransaction, error) {
	return l.store.ListTransactions(ctx, userID, limit)
}

func validate(points int64, typ types.TransactionType, want types.Direction) error {
	if points <= 0 {
		return fmt.Errorf("%w: points must be positive, got %d", types.ErrInvalidAmount, points)
	}
	dir, err := typ.Direction()
	if err != nil {
		return err
	}
	if dir != want {
		return fmt.Errorf("%w: %q cannot be used here", types.ErrInvalidTransactionType, string(typ))
	}
	return nil
}

func (l *Ledger) checkIntegrity(ctx context.Context, acc *types.PointsAccount, stage string) error {
	if acc.Consistent() {
		return nil
	}
	detail := fmt.Sprintf("%s: balance=%d earned=%d spent=%d", stage, acc.Balance, acc.TotalEarned, acc.TotalSpent)
	l.logger.Error("points account invariant violated", "user_id", acc.UserID, "detail", detail)
	if l.notifier != nil {
		title, text := messages.IntegrityAlert(acc.UserID, detail)
		l.notifier.Notify(ctx, types.Notification{UserID: acc.UserID, Title: title, Text: text, Alert: true})
	}
	return fmt.Errorf("%w: %s", types.ErrIntegrityFault, detail)
}

package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BatmanBruc/inkpay/internal/points"
	"github.com/BatmanBruc/inkpay/types"
)

// Ledger records article unlocks paid with points. A user buys an article at most once.
type Ledger struct {
	store    types.PurchaseStore
	articles types.ArticleStore
	points   *points.Ledger
	logger   *slog.Logger
}

func NewLedger(store types.PurchaseStore, articles types.ArticleStore, pts *points.Ledger, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:    store,
		articles: articles,
		points:   pts,
		logger:   logger.With("component", "purchase"),
	}
}

func (l *Ledger) CheckPurchased(ctx context.Context, userID int64, articleID string) (bool, error) {
	return l.store.HasPurchase(ctx, userID, articleID)
}

// PurchaseWithPoints debits points and records the unlock in one transaction.
func (l *Ledger) PurchaseWithPoints(ctx context.Context, userID int64, articleID string, pts int64) (*types.ArticlePurchase, error) {
	articleID = strings.TrimSpace(articleID)
	if pts <= 0 {
		return nil, fmt.Errorf("%w: points must be positive, got %d", types.ErrInvalidAmount, pts)
	}
	article, err := l.articles.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.PointsPrice > 0 && pts != article.PointsPrice {
		return nil, fmt.Errorf("%w: article %s costs %d points, offered %d", types.ErrInvalidAmount, articleID, article.PointsPrice, pts)
	}

	p := &types.ArticlePurchase{
		UserID:     userID,
		ArticleID:  article.ID,
		PointsUsed: pts,
	}
	err = l.store.InTx(ctx, func(ctx context.Context) error {
		owned, err := l.store.HasPurchase(ctx, userID, article.ID)
		if err != nil {
			return err
		}
		if owned {
			return types.ErrAlreadyPurchased
		}
		ok, err := l.points.Debit(ctx, userID, pts, types.TxArticleRead, "unlock "+article.Title, &article.ID)
		if err != nil {
			return err
		}
		if !ok {
			return types.ErrInsufficientPoints
		}
		return l.store.InsertPurchase(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("article purchased", "user_id", userID, "article_id", article.ID, "points", pts)
	return p, nil
}

// Purchases lists the user's unlocks, newest first.
func (l *Ledger) Purchases(ctx context.Context, userID int64) ([]types.ArticlePurchase, error) {
	return l.store.ListPurchases(ctx, userID)
}

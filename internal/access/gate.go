package access

import (
	"context"
	"log/slog"

	"github.com/BatmanBruc/inkpay/internal/i18n"
	"github.com/BatmanBruc/inkpay/internal/messages"
	"github.com/BatmanBruc/inkpay/types"
)

type MembershipChecker interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

type PurchaseChecker interface {
	CheckPurchased(ctx context.Context, userID int64, articleID string) (bool, error)
}

// Gate decides whether a requester sees an article in full. Admins, active members and
// buyers of the article do; everyone else gets the locked notice.
type Gate struct {
	members   MembershipChecker
	purchases PurchaseChecker
	logger    *slog.Logger
}

func NewGate(members MembershipChecker, purchases PurchaseChecker, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		members:   members,
		purchases: purchases,
		logger:    logger.With("component", "access"),
	}
}

// Resolve never fails: a lookup error yields the redacted view.
func (g *Gate) Resolve(ctx context.Context, article types.Article, requester *types.Requester, lang i18n.Lang) types.ArticleView {
	if g.entitled(ctx, article, requester) {
		return types.ArticleView{Article: article}
	}
	article.Content = messages.LockedNotice(lang)
	article.HTML = ""
	return types.ArticleView{Article: article, Locked: true}
}

func (g *Gate) entitled(ctx context.Context, article types.Article, r *types.Requester) bool {
	if r == nil {
		return false
	}
	if r.IsAdmin() {
		return true
	}

	member, err := g.members.IsMember(ctx, r.UserID)
	if err != nil {
		g.logger.Error("membership lookup failed", "user_id", r.UserID, "err", err)
		return false
	}
	if member {
		return true
	}

	bought, err := g.purchases.CheckPurchased(ctx, r.UserID, article.ID)
	if err != nil {
		g.logger.Error("purchase lookup failed", "user_id", r.UserID, "article_id", article.ID, "err", err)
		return false
	}
	return bought
}

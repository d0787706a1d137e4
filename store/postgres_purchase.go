package store

import (
	"context"
	"time"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/google/uuid"
)

func (s *PostgresStore) HasPurchase(ctx context.Context, userID int64, articleID string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var ok bool
	err := s.q(ctx).QueryRow(ctx, `
SELECT EXISTS(
  SELECT 1
  FROM article_purchases
  WHERE user_id = $1 AND article_id = $2
)
`, userID, articleID).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) InsertPurchase(ctx context.Context, p *types.ArticlePurchase) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PurchaseDate.IsZero() {
		p.PurchaseDate = time.Now().UTC()
	}
	_, err := s.q(ctx).Exec(ctx, `
INSERT INTO article_purchases (id, user_id, article_id, points_used, purchase_date)
VALUES ($1, $2, $3, $4, $5)
`, p.ID, p.UserID, p.ArticleID, p.PointsUsed, p.PurchaseDate)
	switch pgCode(err) {
	case pgUniqueViolation:
		return types.ErrAlreadyPurchased
	case pgForeignKeyViolation:
		return types.ErrArticleNotFound
	}
	return err
}

func (s *PostgresStore) ListPurchases(ctx context.Context, userID int64) ([]types.ArticlePurchase, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.q(ctx).Query(ctx, `
SELECT id::text, user_id, article_id, points_used, purchase_date
FROM article_purchases
WHERE user_id = $1
ORDER BY purchase_date DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.ArticlePurchase, 0)
	for rows.Next() {
		var p types.ArticlePurchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.ArticleID, &p.PointsUsed, &p.PurchaseDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var a types.Article
	err := s.q(ctx).QueryRow(ctx, `
SELECT id, title, summary, content, html, points_price, status, publish_at
FROM articles
WHERE id = $1
`, id).Scan(&a.ID, &a.Title, &a.Summary, &a.Content, &a.HTML, &a.PointsPrice, &a.Status, &a.PublishAt)
	if err != nil {
		return nil, notFound(err, types.ErrArticleNotFound)
	}
	return &a, nil
}

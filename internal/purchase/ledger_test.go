package purchase

import (
	"context"
	"sync"
	"testing"

	"github.com/BatmanBruc/inkpay/internal/points"
	"github.com/BatmanBruc/inkpay/store"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, balance int64) (*Ledger, *points.Ledger) {
	t.Helper()
	s := store.NewMemoryStore()
	s.PutArticle(types.Article{ID: "a1", Title: "First", PointsPrice: 30})
	s.PutArticle(types.Article{ID: "free-price", Title: "Open price"})
	pl := points.NewLedger(s, nil, nil)
	if balance > 0 {
		require.NoError(t, pl.Credit(context.Background(), 1, balance, types.TxSystemGrant, "seed", nil))
	}
	return NewLedger(s, s, pl, nil), pl
}

func TestPurchaseWithPoints(t *testing.T) {
	ctx := context.Background()
	l, pl := setup(t, 100)

	p, err := l.PurchaseWithPoints(ctx, 1, "a1", 30)
	require.NoError(t, err)
	require.Equal(t, "a1", p.ArticleID)
	require.NotEmpty(t, p.ID)

	ok, err := l.CheckPurchased(ctx, 1, "a1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = l.PurchaseWithPoints(ctx, 1, "a1", 30)
	require.ErrorIs(t, err, types.ErrAlreadyPurchased)

	bal, err := pl.Balance(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 70, bal)

	list, err := l.Purchases(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestPurchaseFailures(t *testing.T) {
	ctx := context.Background()
	l, pl := setup(t, 10)

	_, err := l.PurchaseWithPoints(ctx, 1, "a1", 0)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = l.PurchaseWithPoints(ctx, 1, "a1", 5)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = l.PurchaseWithPoints(ctx, 1, "missing", 5)
	require.ErrorIs(t, err, types.ErrArticleNotFound)
	_, err = l.PurchaseWithPoints(ctx, 1, "a1", 30)
	require.ErrorIs(t, err, types.ErrInsufficientPoints)

	ok, err := l.CheckPurchased(ctx, 1, "a1")
	require.NoError(t, err)
	require.False(t, ok)
	bal, err := pl.Balance(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 10, bal)

	_, err = l.PurchaseWithPoints(ctx, 1, "free-price", 4)
	require.NoError(t, err)
}

func TestConcurrentPurchaseChargesOnce(t *testing.T) {
	ctx := context.Background()
	l, pl := setup(t, 300)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.PurchaseWithPoints(ctx, 1, "a1", 30)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			require.ErrorIs(t, err, types.ErrAlreadyPurchased)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	bal, err := pl.Balance(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 270, bal)
}

type racingStore struct {
	*store.MemoryStore
}

// HasPurchase misses the existing row, as a concurrent insert would.
func (r racingStore) HasPurchase(context.Context, int64, string) (bool, error) {
	return false, nil
}

func TestUniqueViolationRollsBackDebit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.PutArticle(types.Article{ID: "a1", Title: "First"})
	pl := points.NewLedger(s, nil, nil)
	require.NoError(t, pl.Credit(ctx, 1, 100, types.TxSystemGrant, "seed", nil))
	l := NewLedger(racingStore{s}, s, pl, nil)

	_, err := l.PurchaseWithPoints(ctx, 1, "a1", 10)
	require.NoError(t, err)
	_, err = l.PurchaseWithPoints(ctx, 1, "a1", 10)
	require.ErrorIs(t, err, types.ErrAlreadyPurchased)

	bal, err := pl.Balance(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 90, bal)
	history, err := pl.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

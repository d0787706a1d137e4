package points

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/BatmanBruc/inkpay/store"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu  sync.Mutex
	got []types.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n types.Notification) {
	c.mu.Lock()
	c.got = append(c.got, n)
	c.mu.Unlock()
}

func TestCreditDebitScenario(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(store.NewMemoryStore(), nil, nil)

	require.NoError(t, l.Credit(ctx, 1, 100, types.TxSystemGrant, "bonus", nil))
	acc, err := l.Account(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 100, acc.Balance)
	require.EqualValues(t, 100, acc.TotalEarned)

	article := "X"
	ok, err := l.Debit(ctx, 1, 30, types.TxArticleRead, "unlock X", &article)
	require.NoError(t, err)
	require.True(t, ok)
	acc, err = l.Account(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 70, acc.Balance)
	require.EqualValues(t, 30, acc.TotalSpent)

	ok, err = l.Debit(ctx, 1, 1000, types.TxArticleRead, "too much", nil)
	require.NoError(t, err)
	require.False(t, ok)
	bal, err := l.Balance(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 70, bal)

	history, err := l.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.EqualValues(t, -30, history[0].Points)
	require.Equal(t, "X", *history[0].RelatedArticleID)
	require.EqualValues(t, 100, history[1].Points)
}

func TestValidationRejectsBeforeMutation(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(store.NewMemoryStore(), nil, nil)

	require.ErrorIs(t, l.Credit(ctx, 1, 0, types.TxSystemGrant, "", nil), types.ErrInvalidAmount)
	require.ErrorIs(t, l.Credit(ctx, 1, -5, types.TxSystemGrant, "", nil), types.ErrInvalidAmount)
	require.ErrorIs(t, l.Credit(ctx, 1, 5, types.TxArticleRead, "", nil), types.ErrInvalidTransactionType)
	require.ErrorIs(t, l.Credit(ctx, 1, 5, types.TransactionType("gift"), "", nil), types.ErrInvalidTransactionType)

	_, err := l.Debit(ctx, 1, 5, types.TxRefund, "", nil)
	require.ErrorIs(t, err, types.ErrInvalidTransactionType)
	_, err = l.Debit(ctx, 1, 0, types.TxSystemDeduct, "", nil)
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	history, err := l.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	l := NewLedger(s, nil, nil)
	require.NoError(t, l.Credit(ctx, 9, 100, types.TxPurchase, "seed", nil))

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Debit(ctx, 9, 7, types.TxArticleRead, "storm", nil)
			require.NoError(t, err)
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	acc, err := l.Account(ctx, 9)
	require.NoError(t, err)
	require.EqualValues(t, 14, wins)
	require.EqualValues(t, 2, acc.Balance)
	require.True(t, acc.Consistent())
}

func TestRandomSequencesKeepInvariant(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		l := NewLedger(store.NewMemoryStore(), nil, nil)
		var want int64
		for i := 0; i < 200; i++ {
			amount := rng.Int63n(50) + 1
			if rng.Intn(2) == 0 {
				require.NoError(t, l.Credit(ctx, 1, amount, types.TxSystemGrant, "", nil))
				want += amount
				continue
			}
			ok, err := l.Debit(ctx, 1, amount, types.TxSystemDeduct, "", nil)
			require.NoError(t, err)
			require.Equal(t, want >= amount, ok)
			if ok {
				want -= amount
			}
		}

		acc, err := l.Account(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, want, acc.Balance)
		require.True(t, acc.Consistent())

		history, err := l.History(ctx, 1, 1000)
		require.NoError(t, err)
		var sum int64
		for _, tx := range history {
			sum += tx.Points
		}
		require.Equal(t, acc.Balance, sum)
	}
}

func TestNestedCreditRollsBackWithOuterTx(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	l := NewLedger(s, nil, nil)

	err := s.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, l.Credit(ctx, 4, 10, types.TxPurchase, "", nil))
		return types.ErrAlreadyPurchased
	})
	require.ErrorIs(t, err, types.ErrAlreadyPurchased)

	bal, err := l.Balance(ctx, 4)
	require.NoError(t, err)
	require.Zero(t, bal)
}

type corruptStore struct {
	*store.MemoryStore
}

func (c corruptStore) LockAccount(ctx context.Context, userID int64) (*types.PointsAccount, error) {
	acc, err := c.MemoryStore.LockAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	acc.Balance += 5
	return acc, nil
}

func TestIntegrityFaultAlertsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	n := &captureNotifier{}
	s := corruptStore{store.NewMemoryStore()}
	l := NewLedger(s, n, nil)

	err := l.Credit(ctx, 2, 10, types.TxSystemGrant, "", nil)
	require.ErrorIs(t, err, types.ErrIntegrityFault)
	require.Equal(t, types.KindIntegrityFault, types.KindOf(err))
	require.Len(t, n.got, 1)
	require.True(t, n.got[0].Alert)

	history, err := l.History(ctx, 2, 0)
	require.NoError(t, err)
	require.Empty(t, history)
}

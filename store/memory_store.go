package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/google/uuid"
)

// MemoryStore is an in-process store with the same transactional contract as PostgresStore.
// InTx holds a store-wide lock and restores a snapshot when fn fails.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type memTxKey struct{}

type purchaseKey struct {
	userID    int64
	articleID string
}

type memState struct {
	accounts     map[int64]types.PointsAccount
	transactions []types.PointsTransaction
	plans        map[string]types.MembershipType
	memberships  []types.UserMembership
	orders       map[string]types.PaymentOrder
	orderTxs     []types.MembershipTransaction
	purchases    []types.ArticlePurchase
	purchased    map[purchaseKey]struct{}
	articles     map[string]types.Article
}

func newMemState() *memState {
	return &memState{
		accounts:  make(map[int64]types.PointsAccount),
		plans:     make(map[string]types.MembershipType),
		orders:    make(map[string]types.PaymentOrder),
		purchased: make(map[purchaseKey]struct{}),
		articles:  make(map[string]types.Article),
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		accounts:     make(map[int64]types.PointsAccount, len(st.accounts)),
		transactions: append([]types.PointsTransaction(nil), st.transactions...),
		plans:        make(map[string]types.MembershipType, len(st.plans)),
		memberships:  append([]types.UserMembership(nil), st.memberships...),
		orders:       make(map[string]types.PaymentOrder, len(st.orders)),
		orderTxs:     append([]types.MembershipTransaction(nil), st.orderTxs...),
		purchases:    append([]types.ArticlePurchase(nil), st.purchases...),
		purchased:    make(map[purchaseKey]struct{}, len(st.purchased)),
		articles:     make(map[string]types.Article, len(st.articles)),
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.plans {
		c.plans[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.purchased {
		c.purchased[k] = v
	}
	for k, v := range st.articles {
		c.articles[k] = v
	}
	return c
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: newMemState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// PutArticle registers an article with the store.
func (s *MemoryStore) PutArticle(a types.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.articles[a.ID] = a
}

func (s *MemoryStore) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	defer s.lock(ctx)()
	a, ok := s.state.articles[id]
	if !ok {
		return nil, types.ErrArticleNotFound
	}
	return &a, nil
}

func (s *MemoryStore) LockAccount(ctx context.Context, userID int64) (*types.PointsAccount, error) {
	defer s.lock(ctx)()
	a, ok := s.state.accounts[userID]
	if !ok {
		now := s.now()
		a = types.PointsAccount{UserID: userID, CreatedAt: now, UpdatedAt: now}
		s.state.accounts[userID] = a
	}
	return &a, nil
}

func (s *MemoryStore) SaveAccount(ctx context.Context, acc *types.PointsAccount) error {
	defer s.lock(ctx)()
	if _, ok := s.state.accounts[acc.UserID]; !ok {
		return types.ErrNotFound
	}
	acc.UpdatedAt = s.now()
	s.state.accounts[acc.UserID] = *acc
	return nil
}

func (s *MemoryStore) AppendTransaction(ctx context.Context, t *types.PointsTransaction) error {
	defer s.lock(ctx)()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.state.transactions = append(s.state.transactions, *t)
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, userID int64) (*types.PointsAccount, error) {
	defer s.lock(ctx)()
	a, ok := s.state.accounts[userID]
	if !ok {
		return &types.PointsAccount{UserID: userID}, nil
	}
	return &a, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, userID int64, limit int) ([]types.PointsTransaction, error) {
	defer s.lock(ctx)()
	if limit <= 0 {
		limit = 100
	}
	out := make([]types.PointsTransaction, 0)
	for i := len(s.state.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if t := s.state.transactions[i]; t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateMembershipType(ctx context.Context, mt *types.MembershipType) error {
	defer s.lock(ctx)()
	if mt.ID == "" {
		mt.ID = uuid.New().String()
	}
	now := s.now()
	if prev, ok := s.state.plans[mt.ID]; ok {
		mt.CreatedAt = prev.CreatedAt
	} else {
		mt.CreatedAt = now
	}
	mt.UpdatedAt = now
	s.state.plans[mt.ID] = *mt
	return nil
}

func (s *MemoryStore) UpdateMembershipType(ctx context.Context, mt *types.MembershipType) error {
	defer s.lock(ctx)()
	prev, ok := s.state.plans[mt.ID]
	if !ok {
		return types.ErrUnknownPlan
	}
	mt.CreatedAt = prev.CreatedAt
	mt.UpdatedAt = s.now()
	s.state.plans[mt.ID] = *mt
	return nil
}

func (s *MemoryStore) GetMembershipType(ctx context.Context, id string) (*types.MembershipType, error) {
	defer s.lock(ctx)()
	mt, ok := s.state.plans[id]
	if !ok {
		return nil, types.ErrUnknownPlan
	}
	return &mt, nil
}

func (s *MemoryStore) ListMembershipTypes(ctx context.Context, activeOnly bool) ([]types.MembershipType, error) {
	defer s.lock(ctx)()
	out := make([]types.MembershipType, 0, len(s.state.plans))
	for _, mt := range s.state.plans {
		if activeOnly && !mt.IsActive {
			continue
		}
		out = append(out, mt)
	}
	if activeOnly {
		sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out, nil
}

func (s *MemoryStore) LockUserMemberships(ctx context.Context, userID int64) error {
	return nil
}

func (s *MemoryStore) DeactivateUserMemberships(ctx context.Context, userID int64) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	for i := range s.state.memberships {
		m := &s.state.memberships[i]
		if m.UserID == userID && m.IsActive {
			m.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) InsertMembership(ctx context.Context, m *types.UserMembership) error {
	defer s.lock(ctx)()
	if m.IsActive {
		for _, existing := range s.state.memberships {
			if existing.UserID == m.UserID && existing.IsActive {
				return types.ErrMembershipConflict
			}
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = s.now()
	s.state.memberships = append(s.state.memberships, *m)
	return nil
}

func (s *MemoryStore) FindActiveMembership(ctx context.Context, userID int64, now time.Time) (*types.UserMembership, error) {
	defer s.lock(ctx)()
	for i := len(s.state.memberships) - 1; i >= 0; i-- {
		m := s.state.memberships[i]
		if m.UserID == userID && m.IsActive && m.ExpireAt.After(now) {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CountActiveMemberships(ctx context.Context, userID int64) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, m := range s.state.memberships {
		if m.UserID == userID && m.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListMemberships(ctx context.Context, userID int64) ([]types.UserMembership, error) {
	defer s.lock(ctx)()
	out := make([]types.UserMembership, 0)
	for i := len(s.state.memberships) - 1; i >= 0; i-- {
		if m := s.state.memberships[i]; m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	for i := range s.state.memberships {
		m := &s.state.memberships[i]
		if m.IsActive && !m.ExpireAt.After(now) {
			m.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CreatePaymentOrder(ctx context.Context, o *types.PaymentOrder) error {
	defer s.lock(ctx)()
	if _, ok := s.state.orders[o.OrderID]; ok {
		return fmt.Errorf("payment order %s already exists", o.OrderID)
	}
	now := s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	s.state.orders[o.OrderID] = *o
	return nil
}

func (s *MemoryStore) GetPaymentOrder(ctx context.Context, orderID string) (*types.PaymentOrder, error) {
	defer s.lock(ctx)()
	o, ok := s.state.orders[orderID]
	if !ok {
		return nil, types.ErrUnknownOrder
	}
	return &o, nil
}

func (s *MemoryStore) LockPaymentOrder(ctx context.Context, orderID string) (*types.PaymentOrder, error) {
	return s.GetPaymentOrder(ctx, orderID)
}

func (s *MemoryStore) UpdatePaymentOrder(ctx context.Context, o *types.PaymentOrder) error {
	defer s.lock(ctx)()
	prev, ok := s.state.orders[o.OrderID]
	if !ok {
		return types.ErrUnknownOrder
	}
	prev.Status = o.Status
	prev.FulfilledAt = o.FulfilledAt
	prev.UpdatedAt = s.now()
	o.UpdatedAt = prev.UpdatedAt
	s.state.orders[o.OrderID] = prev
	return nil
}

func (s *MemoryStore) FailPendingOrders(ctx context.Context, createdBefore time.Time) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	now := s.now()
	for id, o := range s.state.orders {
		if o.Status == types.OrderPending && o.CreatedAt.Before(createdBefore) {
			expiredAt := now
			o.Status = types.OrderFailed
			o.ExpiredAt = &expiredAt
			o.UpdatedAt = now
			s.state.orders[id] = o
			n++
		}
	}
	for i := range s.state.orderTxs {
		t := &s.state.orderTxs[i]
		if t.Status == types.TxStatusPending && t.CreatedAt.Before(createdBefore) {
			t.Status = types.TxStatusFailed
			t.UpdatedAt = now
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateMembershipTransaction(ctx context.Context, t *types.MembershipTransaction) error {
	defer s.lock(ctx)()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.state.orderTxs = append(s.state.orderTxs, *t)
	return nil
}

func (s *MemoryStore) SetMembershipTransactionStatus(ctx context.Context, orderID string, status types.TransactionStatus, paidAt *time.Time) error {
	defer s.lock(ctx)()
	for i := range s.state.orderTxs {
		t := &s.state.orderTxs[i]
		if t.OrderID != orderID || t.Status == types.TxStatusSuccess {
			continue
		}
		t.Status = status
		if paidAt != nil {
			t.PaidAt = paidAt
		}
		t.UpdatedAt = s.now()
	}
	return nil
}

func (s *MemoryStore) ListMembershipTransactions(ctx context.Context, userID int64) ([]types.MembershipTransaction, error) {
	defer s.lock(ctx)()
	out := make([]types.MembershipTransaction, 0)
	for i := len(s.state.orderTxs) - 1; i >= 0; i-- {
		if t := s.state.orderTxs[i]; t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) HasPurchase(ctx context.Context, userID int64, articleID string) (bool, error) {
	defer s.lock(ctx)()
	_, ok := s.state.purchased[purchaseKey{userID, articleID}]
	return ok, nil
}

func (s *MemoryStore) InsertPurchase(ctx context.Context, p *types.ArticlePurchase) error {
	defer s.lock(ctx)()
	key := purchaseKey{p.UserID, p.ArticleID}
	if _, ok := s.state.purchased[key]; ok {
		return types.ErrAlreadyPurchased
	}
	if _, ok := s.state.articles[p.ArticleID]; !ok {
		return types.ErrArticleNotFound
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PurchaseDate.IsZero() {
		p.PurchaseDate = s.now()
	}
	s.state.purchased[key] = struct{}{}
	s.state.purchases = append(s.state.purchases, *p)
	return nil
}

func (s *MemoryStore) ListPurchases(ctx context.Context, userID int64) ([]types.ArticlePurchase, error) {
	defer s.lock(ctx)()
	out := make([]types.ArticlePurchase, 0)
	for i := len(s.state.purchases) - 1; i >= 0; i-- {
		if p := s.state.purchases[i]; p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

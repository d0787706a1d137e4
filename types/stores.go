package types

import (
	"context"
	"time"
)

// TxRunner runs fn inside one store transaction. Calls made with the context passed to fn
// join that transaction, and a nested InTx joins the outer one.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PointsStore interface {
	TxRunner
	// LockAccount returns the account, creating it with zero balance when absent.
	// Inside a transaction the row stays locked until commit.
	LockAccount(ctx context.Context, userID int64) (*PointsAccount, error)
	SaveAccount(ctx context.Context, acc *PointsAccount) error
	AppendTransaction(ctx context.Context, t *PointsTransaction) error
	GetAccount(ctx context.Context, userID int64) (*PointsAccount, error)
	ListTransactions(ctx context.Context, userID int64, limit int) ([]PointsTransaction, error)
}

type MembershipStore interface {
	TxRunner
	CreateMembershipType(ctx context.Context, mt *MembershipType) error
	UpdateMembershipType(ctx context.Context, mt *MembershipType) error
	GetMembershipType(ctx context.Context, id string) (*MembershipType, error)
	ListMembershipTypes(ctx context.Context, activeOnly bool) ([]MembershipType, error)

	// LockUserMemberships serializes membership changes for one user until commit.
	LockUserMemberships(ctx context.Context, userID int64) error
	DeactivateUserMemberships(ctx context.Context, userID int64) (int64, error)
	InsertMembership(ctx context.Context, m *UserMembership) error
	FindActiveMembership(ctx context.Context, userID int64, now time.Time) (*UserMembership, error)
	CountActiveMemberships(ctx context.Context, userID int64) (int, error)
	ListMemberships(ctx context.Context, userID int64) ([]UserMembership, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type PaymentStore interface {
	TxRunner
	CreatePaymentOrder(ctx context.Context, o *PaymentOrder) error
	GetPaymentOrder(ctx context.Context, orderID string) (*PaymentOrder, error)
	LockPaymentOrder(ctx context.Context, orderID string) (*PaymentOrder, error)
	UpdatePaymentOrder(ctx context.Context, o *PaymentOrder) error
	FailPendingOrders(ctx context.Context, createdBefore time.Time) (int64, error)

	CreateMembershipTransaction(ctx context.Context, t *MembershipTransaction) error
	SetMembershipTransactionStatus(ctx context.Context, orderID string, status TransactionStatus, paidAt *time.Time) error
	ListMembershipTransactions(ctx context.Context, userID int64) ([]MembershipTransaction, error)
}

type PurchaseStore interface {
	TxRunner
	HasPurchase(ctx context.Context, userID int64, articleID string) (bool, error)
	// InsertPurchase returns ErrAlreadyPurchased when (user, article) already exists.
	InsertPurchase(ctx context.Context, p *ArticlePurchase) error
	ListPurchases(ctx context.Context, userID int64) ([]ArticlePurchase, error)
}

type ArticleStore interface {
	GetArticle(ctx context.Context, id string) (*Article, error)
}

// Cache is a key-value store with per-key TTL. Get returns ErrCacheMiss for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Notification struct {
	UserID int64
	Title  string
	Text   string
	Alert  bool
}

// Notifier delivers notifications without blocking the caller; delivery failures are not reported.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PointsAccount struct {
	UserID      int64     `json:"userId"`
	Balance     int64     `json:"points"`
	TotalEarned int64     `json:"totalEarned"`
	TotalSpent  int64     `json:"totalSpent"`
	CreatedAt   time.Time `json:"createAt"`
	UpdatedAt   time.Time `json:"updateAt"`
}

// Consistent reports whether the account satisfies balance == earned - spent with no negatives.
func (a *PointsAccount) Consistent() bool {
	if a == nil {
		return false
	}
	return a.Balance >= 0 && a.TotalEarned >= 0 && a.TotalSpent >= 0 &&
		a.Balance == a.TotalEarned-a.TotalSpent
}

type PointsTransaction struct {
	ID               string            `json:"id"`
	UserID           int64             `json:"userId"`
	Points           int64             `json:"points"`
	Type             TransactionType   `json:"type"`
	Description      string            `json:"description"`
	RelatedArticleID *string           `json:"articleId,omitempty"`
	RelatedOrderID   *string           `json:"orderId,omitempty"`
	Status           TransactionStatus `json:"status"`
	CreatedAt        time.Time         `json:"createAt"`
}

type MembershipType struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createAt"`
	UpdatedAt    time.Time       `json:"updateAt"`
}

type UserMembership struct {
	ID               string    `json:"id"`
	UserID           int64     `json:"userId"`
	MembershipTypeID string    `json:"membershipTypeId"`
	StartAt          time.Time `json:"startAt"`
	ExpireAt         time.Time `json:"expireAt"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createAt"`
}

// MembershipTransaction is the audit record of one membership purchase.
type MembershipTransaction struct {
	ID               string            `json:"id"`
	UserID           int64             `json:"userId"`
	MembershipTypeID string            `json:"membershipTypeId"`
	Amount           decimal.Decimal   `json:"amount"`
	OrderID          string            `json:"orderId"`
	Status           TransactionStatus `json:"status"`
	PaymentMethod    string            `json:"paymentMethod"`
	PaidAt           *time.Time        `json:"paidAt,omitempty"`
	CreatedAt        time.Time         `json:"createAt"`
	UpdatedAt        time.Time         `json:"updateAt"`
}

// RechargeMetadata is the purchase intent carried by a payment order.
type RechargeMetadata struct {
	Type         RechargeKind `json:"type"`
	UserID       int64        `json:"userId"`
	Points       int64        `json:"points,omitempty"`
	PlanID       string       `json:"planType,omitempty"`
	DurationDays int          `json:"duration,omitempty"`
}

type PaymentOrder struct {
	OrderID        string           `json:"orderId"`
	CorrelationKey string           `json:"redisKey"`
	Title          string           `json:"title"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         OrderStatus      `json:"status"`
	PayType        PayType          `json:"payType"`
	PayURL         string           `json:"payUrl"`
	QRCode         string           `json:"qrcode"`
	Metadata       RechargeMetadata `json:"metadata"`
	FulfilledAt    *time.Time       `json:"fulfilledAt,omitempty"`
	// ExpiredAt is set when the sweep failed the order without hearing from the gateway.
	ExpiredAt *time.Time `json:"expiredAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type ArticlePurchase struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"userId"`
	ArticleID    string    `json:"articleId"`
	PointsUsed   int64     `json:"pointsUsed"`
	PurchaseDate time.Time `json:"purchaseDate"`
}

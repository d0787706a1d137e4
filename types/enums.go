package types

import "fmt"

type TransactionType string

const (
	TxPurchase     TransactionType = "purchase"
	TxArticleRead  TransactionType = "article_read"
	TxSystemGrant  TransactionType = "system_grant"
	TxSystemDeduct TransactionType = "system_deduct"
	TxRefund       TransactionType = "refund"
)

type Direction int

const (
	DirectionCredit Direction = iota + 1
	DirectionDebit
)

// Direction reports whether the transaction type adds or removes points.
func (t TransactionType) Direction() (Direction, error) {
	switch t {
	case TxPurchase, TxSystemGrant, TxRefund:
		return DirectionCredit, nil
	case TxArticleRead, TxSystemDeduct:
		return DirectionDebit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTransactionType, string(t))
	}
}

func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if _, err := t.Direction(); err != nil {
		return "", err
	}
	return t, nil
}

type TransactionStatus string

const (
	TxStatusPending TransactionStatus = "pending"
	TxStatusSuccess TransactionStatus = "success"
	TxStatusFailed  TransactionStatus = "failed"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderSuccess OrderStatus = "success"
	OrderFailed  OrderStatus = "failed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderSuccess, OrderFailed:
		return true
	default:
		return false
	}
}

// Terminal orders never change status again.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderSuccess, OrderFailed:
		return true
	case OrderPending:
		return false
	default:
		return false
	}
}

type RechargeKind string

const (
	RechargePoints     RechargeKind = "points"
	RechargeMembership RechargeKind = "membership"
)

func (k RechargeKind) Valid() bool {
	switch k {
	case RechargePoints, RechargeMembership:
		return true
	default:
		return false
	}
}

type PayType string

const (
	PayAlipay PayType = "alipay"
	PayWechat PayType = "wxpay"
	PayQQ     PayType = "qqpay"
)

func ParsePayType(s string) (PayType, error) {
	switch p := PayType(s); p {
	case PayAlipay, PayWechat, PayQQ:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unsupported pay type %q", ErrValidation, s)
	}
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleVisitor Role = "visitor"
)

func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleVisitor
}

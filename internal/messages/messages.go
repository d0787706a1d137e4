package messages

import (
	"fmt"
	"strings"

	"github.com/BatmanBruc/inkpay/internal/i18n"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func Title(text string) string {
	return fmt.Sprintf("✨ <b>%s</b>", Escape(text))
}

// LockedNotice replaces the body of an article the reader is not entitled to.
func LockedNotice(lang i18n.Lang) string {
	if lang == i18n.EN {
		return "This article is locked. Become a member or buy it with points to read it."
	}
	return "您未解锁该文章，请充值会员或购买"
}

func PointsRechargeTitle(points int64) string {
	return fmt.Sprintf("Recharge %d points", points)
}

func MembershipRechargeTitle(planName string) string {
	return fmt.Sprintf("Membership: %s", strings.TrimSpace(planName))
}

func PointsCredited(lang i18n.Lang, points, balance int64) (title, text string) {
	if lang == i18n.EN {
		return "Recharge completed", fmt.Sprintf("%d points were added to your account. Balance: %d.", points, balance)
	}
	return "充值成功", fmt.Sprintf("已为您充值 %d 积分，当前余额 %d。", points, balance)
}

func MembershipActivated(lang i18n.Lang, planName, expireAt string) (title, text string) {
	if lang == i18n.EN {
		return "Membership activated", fmt.Sprintf("%s is active until %s.", planName, expireAt)
	}
	return "会员开通成功", fmt.Sprintf("%s 有效期至 %s。", planName, expireAt)
}

func IntegrityAlert(userID int64, detail string) (title, text string) {
	return "Ledger integrity fault", fmt.Sprintf("user %d: %s", userID, detail)
}

// LatePaymentAlert reports a payment that settled after its order was expired by the sweep.
func LatePaymentAlert(userID int64, orderID, amount string) (title, text string) {
	return "Late payment recovered", fmt.Sprintf("user %d: order %s paid %s after expiry, awaiting completion", userID, orderID, amount)
}

// Telegram renders a notification for an operator chat.
func Telegram(title, text string, alert bool) string {
	icon := "💳"
	if alert {
		icon = "🚨"
	}
	return fmt.Sprintf("%s <b>%s</b>\n%s", icon, Escape(title), Escape(text))
}

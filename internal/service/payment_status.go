package service

import (
	"time"

	"github.com/settlepay/internal/constants"
	"github.com/settlepay/internal/models"

	"github.com/shopspring/decimal"
)

// 观察器允许的状态流转
var observerTransitions = map[string]map[string]bool{
	constants.PaymentStatusPending: {
		constants.PaymentStatusPartiallyPaid: true,
		constants.PaymentStatusConfirmed:     true,
		constants.PaymentStatusOverpaid:      true,
		constants.PaymentStatusExpired:       true,
	},
	constants.PaymentStatusPartiallyPaid: {
		constants.PaymentStatusConfirmed: true,
		constants.PaymentStatusOverpaid:  true,
		constants.PaymentStatusExpired:   true,
	},
	// 已确认后仍可能有人继续转入
	constants.PaymentStatusConfirmed: {
		constants.PaymentStatusOverpaid: true,
	},
}

// canTransition 判断观察器是否可以把状态从 from 改为 to
func canTransition(from, to string) bool {
	if from == to {
		return true
	}
	return observerTransitions[from][to]
}

// ClassifyPayment 根据余额与应收金额计算新状态
// 不需观察的状态原样返回；余额为 0 且未过期时保持不变。
// confirmed 只会因余额超出应收转为 overpaid，不受过期时间影响。
func ClassifyPayment(payment *models.Payment, received, expected decimal.Decimal, now time.Time) string {
	if payment == nil {
		return ""
	}
	current := payment.Status
	if !payment.IsObservable() {
		return current
	}
	if current == constants.PaymentStatusConfirmed {
		if received.GreaterThan(expected) {
			return constants.PaymentStatusOverpaid
		}
		return current
	}
	if !payment.ExpiresAt.After(now) {
		return constants.PaymentStatusExpired
	}
	var next string
	switch {
	case !received.IsPositive():
		return current
	case received.LessThan(expected):
		next = constants.PaymentStatusPartiallyPaid
	case received.Equal(expected):
		next = constants.PaymentStatusConfirmed
	default:
		next = constants.PaymentStatusOverpaid
	}
	if !canTransition(current, next) {
		return current
	}
	return next
}

// isSettledStatus 是否为到账终态
func isSettledStatus(status string) bool {
	return status == constants.PaymentStatusConfirmed || status == constants.PaymentStatusOverpaid
}

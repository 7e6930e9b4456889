package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/settlepay/internal/constants"

	"github.com/shopspring/decimal"
)

// ErrAmountInvalid 金额非法（无法解析、非有限数或非正数）
var ErrAmountInvalid = errors.New("amount invalid")

// ParseAmount 解析链上金额文本，要求为有限正数
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrAmountInvalid)
	}
	// decimal 不接受 NaN/Inf，这里显式拦截以给出明确原因
	lower := strings.ToLower(strings.TrimLeft(trimmed, "+-"))
	if lower == "nan" || strings.HasPrefix(lower, "inf") {
		return decimal.Zero, fmt.Errorf("%w: non-finite %q", ErrAmountInvalid, trimmed)
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrAmountInvalid, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: not positive %s", ErrAmountInvalid, trimmed)
	}
	return amount, nil
}

// ParseBalance 解析余额文本，空值视为 0，允许 0
func ParseBalance(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrAmountInvalid, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative balance %s", ErrAmountInvalid, trimmed)
	}
	return amount, nil
}

// FormatAmount 统一输出 7 位小数
func FormatAmount(amount decimal.Decimal) string {
	return amount.Round(constants.AmountScale).StringFixed(constants.AmountScale)
}

// AmountToStroops 将金额转换为最小单位整数（×10^7）
func AmountToStroops(amount decimal.Decimal) int64 {
	return amount.Shift(constants.AmountScale).Truncate(0).IntPart()
}

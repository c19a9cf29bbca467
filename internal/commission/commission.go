// Package commission computes partner commissions and renders amounts in
// Korean magnitude units. The live preview on the settlement form and the
// stored settlement amount both go through Compute.
package commission

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/referral-desk/referral-desk/internal/labels"
)

const (
	eok = 100_000_000
	man = 10_000
)

var hundred = decimal.NewFromInt(100)

// Compute returns round(amount * ratePercent / 100) in whole won, rounding
// halves up. Negative inputs are treated as zero.
func Compute(amount int64, ratePercent float64) int64 {
	if amount <= 0 || ratePercent <= 0 {
		return 0
	}
	rate := decimal.NewFromFloat(ratePercent).Div(hundred)
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// RateToPercent converts a stored fractional rate (0.015) into the percent
// value Compute expects (1.5).
func RateToPercent(rate float64) float64 {
	f, _ := decimal.NewFromFloat(rate).Mul(hundred).Float64()
	return f
}

// SanitizeAmount strips every non-digit from free-text input ("1,500,000원")
// and parses the rest. Empty or overflowing input yields zero.
func SanitizeAmount(input string) int64 {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" || len(digits) > 18 {
		return 0
	}
	var n int64
	for _, r := range digits {
		n = n*10 + int64(r-'0')
	}
	return n
}

// FormatKorean decomposes amount into 억/만/원 components, keeping only the
// non-zero ones: 150,000,000 -> "1억 5,000만원", 12,345 -> "1만 2,345원".
// Zero renders as the empty string.
func FormatKorean(amount int64) string {
	if amount <= 0 {
		return ""
	}
	parts := make([]string, 0, 3)
	if v := amount / eok; v > 0 {
		parts = append(parts, labels.Number(v)+"억")
	}
	if v := (amount % eok) / man; v > 0 {
		parts = append(parts, labels.Number(v)+"만")
	}
	if v := amount % man; v > 0 {
		parts = append(parts, labels.Number(v))
	}
	return strings.Join(parts, " ") + "원"
}

// Preview is what the settlement form shows while the operator types.
type Preview struct {
	Amount         int64   `json:"amount"`
	RatePercent    float64 `json:"rate_percent"`
	Commission     int64   `json:"commission"`
	AmountText     string  `json:"amount_text"`
	CommissionText string  `json:"commission_text"`
}

// NewPreview sanitizes the typed amount and computes the commission.
func NewPreview(amountInput string, ratePercent float64) Preview {
	amount := SanitizeAmount(amountInput)
	value := Compute(amount, ratePercent)
	return Preview{
		Amount:         amount,
		RatePercent:    ratePercent,
		Commission:     value,
		AmountText:     FormatKorean(amount),
		CommissionText: FormatKorean(value),
	}
}

package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		rate   float64
		want   int64
	}{
		{"zero amount", 0, 1.5, 0},
		{"zero rate", 1_000_000, 0, 0},
		{"standard rate", 1_000_000, 1.5, 15_000},
		{"half rounds up", 100, 0.5, 1},
		{"below half rounds down", 149, 1, 1},
		{"half of odd amount", 150, 1, 2},
		{"fractional rate", 3_333_333, 1.5, 50_000},
		{"negative treated as zero", -500, 1.5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compute(tc.amount, tc.rate))
		})
	}
}

func TestRateToPercent(t *testing.T) {
	assert.Equal(t, 1.5, RateToPercent(0.015))
	assert.Equal(t, Compute(2_000_000, RateToPercent(0.015)), int64(30_000))
}

func TestSanitizeAmount(t *testing.T) {
	assert.Equal(t, int64(1_500_000), SanitizeAmount("1,500,000원"))
	assert.Equal(t, int64(0), SanitizeAmount(""))
	assert.Equal(t, int64(0), SanitizeAmount("abc"))
	assert.Equal(t, int64(42), SanitizeAmount(" 0042 "))
	assert.Equal(t, int64(0), SanitizeAmount("9999999999999999999999"))
}

func TestFormatKorean(t *testing.T) {
	assert.Equal(t, "", FormatKorean(0))
	assert.Equal(t, "1억 5,000만원", FormatKorean(150_000_000))
	assert.Equal(t, "1만 2,345원", FormatKorean(12_345))
	assert.Equal(t, "3억원", FormatKorean(300_000_000))
	assert.Equal(t, "2억 7원", FormatKorean(200_000_007))
	assert.Equal(t, "999원", FormatKorean(999))
}

func TestPreviewMatchesCompute(t *testing.T) {
	p := NewPreview("12,345,678", 1.5)
	assert.Equal(t, int64(12_345_678), p.Amount)
	assert.Equal(t, Compute(12_345_678, 1.5), p.Commission)
	assert.Equal(t, int64(185_185), p.Commission)
	assert.Equal(t, "1,234만 5,678원", p.AmountText)
	assert.Equal(t, "18만 5,185원", p.CommissionText)
}

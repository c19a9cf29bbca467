package labels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookupFallbacks(t *testing.T) {
	assert.Equal(t, "음식점", BusinessType("restaurant"))
	assert.Equal(t, "서울", Region("seoul"))
	assert.Equal(t, "unknown_code", Product("unknown_code"))
	assert.Equal(t, "-", PipelineStatus(""))
	assert.Equal(t, "-", PartnerStatus("   "))
	assert.Equal(t, "승인대기", PartnerStatus("pending"))
	assert.Equal(t, "지급완료", SettlementStatus("paid"))
	assert.Equal(t, "파트너 문의", Source("partner"))
}

func TestNumberAndCurrency(t *testing.T) {
	assert.Equal(t, "1,234,567", Number(1234567))
	assert.Equal(t, "0", Number(0))
	assert.Equal(t, "15,000원", Currency(15000))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "1.5%", Percent(0.015))
	assert.Equal(t, "2%", Percent(0.02))
	assert.Equal(t, "10%", Percent(0.1))
}

func TestDateFormatting(t *testing.T) {
	ts := time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024.03.05", Date(ts))
	assert.Equal(t, "2024.03.05 10:30", DateTime(ts))
	assert.Equal(t, "-", Date(time.Time{}))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;&#34;x&#34;&lt;/b&gt;", Escape(`<b>"x"</b>`))
}

func TestOptionsKeepDisplayOrder(t *testing.T) {
	opts := RegionOptions()
	if assert.NotEmpty(t, opts) {
		assert.Equal(t, "seoul", opts[0].Code)
		assert.Equal(t, "서울", opts[0].Label)
	}
	for _, opt := range BusinessTypeOptions() {
		assert.NotEmpty(t, opt.Label, opt.Code)
	}
}

func TestMonthUsesKoreanTime(t *testing.T) {
	assert.Equal(t, "2026-10", Month(time.Date(2026, 9, 30, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-09", Month(time.Date(2026, 9, 30, 14, 59, 0, 0, time.UTC)))
}

// Package labels maps stored codes onto the Korean display strings used by
// both dashboards and formats money and dates for the same locale.
package labels

import (
	"html"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const placeholder = "-"

var businessTypes = map[string]string{
	"restaurant": "음식점",
	"cafe":       "카페",
	"retail":     "소매업",
	"medical":    "병·의원",
	"beauty":     "뷰티·미용",
	"academy":    "학원·교육",
	"fitness":    "헬스·스포츠",
	"lodging":    "숙박업",
	"service":    "서비스업",
	"online":     "온라인 쇼핑몰",
	"other":      "기타",
}

var regions = map[string]string{
	"seoul":     "서울",
	"gyeonggi":  "경기",
	"incheon":   "인천",
	"busan":     "부산",
	"daegu":     "대구",
	"daejeon":   "대전",
	"gwangju":   "광주",
	"ulsan":     "울산",
	"sejong":    "세종",
	"gangwon":   "강원",
	"chungbuk":  "충북",
	"chungnam":  "충남",
	"jeonbuk":   "전북",
	"jeonnam":   "전남",
	"gyeongbuk": "경북",
	"gyeongnam": "경남",
	"jeju":      "제주",
}

var products = map[string]string{
	"card_terminal": "카드단말기",
	"pos":           "POS",
	"kiosk":         "키오스크",
	"table_order":   "테이블오더",
	"marketing":     "마케팅 대행",
	"loan":          "사업자 대출",
	"other":         "기타",
}

var revenueBrackets = map[string]string{
	"under_10m":  "월 1천만원 미만",
	"10m_30m":    "월 1천~3천만원",
	"30m_50m":    "월 3천~5천만원",
	"50m_100m":   "월 5천만~1억원",
	"over_100m":  "월 1억원 이상",
	"new_opened": "신규 창업",
}

var triageStatuses = map[string]string{
	"new":       "신규",
	"contacted": "상담중",
	"completed": "완료",
	"cancelled": "취소",
}

var pipelineStatuses = map[string]string{
	"received":  "접수",
	"reviewing": "심사중",
	"approved":  "승인",
	"installed": "설치완료",
	"rejected":  "반려",
}

var partnerStatuses = map[string]string{
	"new":       "신규",
	"pending":   "승인대기",
	"reviewing": "검토중",
	"approved":  "승인",
	"rejected":  "반려",
}

var settlementStatuses = map[string]string{
	"pending":   "정산대기",
	"confirmed": "정산확정",
	"paid":      "지급완료",
}

var sources = map[string]string{
	"partner":           "파트너 문의",
	"promo":             "프로모션",
	"marketing-medical": "마케팅(병원)",
	"marketing-biz":     "마케팅(사업자)",
	"consultation":      "상담신청",
}

func lookup(table map[string]string, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return placeholder
	}
	if label, ok := table[code]; ok {
		return label
	}
	return code
}

// BusinessType returns the label for a business type code.
func BusinessType(code string) string { return lookup(businessTypes, code) }

// Region returns the label for a region code.
func Region(code string) string { return lookup(regions, code) }

// Product returns the label for a product interest code.
func Product(code string) string { return lookup(products, code) }

// Revenue returns the label for a monthly revenue bracket code.
func Revenue(code string) string { return lookup(revenueBrackets, code) }

// TriageStatus returns the label for the admin triage status.
func TriageStatus(code string) string { return lookup(triageStatuses, code) }

// InquiryStatus labels the raw status of any inquiry origin; they share the
// triage vocabulary.
func InquiryStatus(code string) string { return lookup(triageStatuses, code) }

// PipelineStatus returns the label for a pipeline stage.
func PipelineStatus(code string) string { return lookup(pipelineStatuses, code) }

// PartnerStatus returns the label for a partner approval status.
func PartnerStatus(code string) string { return lookup(partnerStatuses, code) }

// SettlementStatus returns the label for a settlement status.
func SettlementStatus(code string) string { return lookup(settlementStatuses, code) }

// Source returns the label for a normalized inquiry source category.
func Source(category string) string { return lookup(sources, category) }

// Option is a code/label pair for select boxes.
type Option struct {
	Code  string
	Label string
}

// BusinessTypeOptions lists business types in display order.
func BusinessTypeOptions() []Option {
	return options(businessTypes, "restaurant", "cafe", "retail", "medical", "beauty", "academy", "fitness", "lodging", "service", "online", "other")
}

// RegionOptions lists regions in display order.
func RegionOptions() []Option {
	return options(regions, "seoul", "gyeonggi", "incheon", "busan", "daegu", "daejeon", "gwangju", "ulsan", "sejong", "gangwon", "chungbuk", "chungnam", "jeonbuk", "jeonnam", "gyeongbuk", "gyeongnam", "jeju")
}

// ProductOptions lists product interests in display order.
func ProductOptions() []Option {
	return options(products, "card_terminal", "pos", "kiosk", "table_order", "marketing", "loan", "other")
}

// RevenueOptions lists revenue brackets in display order.
func RevenueOptions() []Option {
	return options(revenueBrackets, "new_opened", "under_10m", "10m_30m", "30m_50m", "50m_100m", "over_100m")
}

func options(table map[string]string, order ...string) []Option {
	out := make([]Option, 0, len(order))
	for _, code := range order {
		out = append(out, Option{Code: code, Label: table[code]})
	}
	return out
}

var printer = message.NewPrinter(language.Korean)

// Number groups digits the way the Korean locale does ("1,234,567").
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Currency renders a whole-won amount, e.g. "1,500,000원".
func Currency(amount int64) string {
	return Number(amount) + "원"
}

// Percent renders a fractional rate as a percentage, e.g. 0.015 -> "1.5%".
func Percent(rate float64) string {
	return strings.TrimRight(strings.TrimRight(printer.Sprintf("%.2f", rate*100), "0"), ".") + "%"
}

// Date renders a calendar date as "2006.01.02".
func Date(t time.Time) string {
	if t.IsZero() {
		return placeholder
	}
	return t.In(seoul).Format("2006.01.02")
}

// DateTime renders a timestamp as "2006.01.02 15:04".
func DateTime(t time.Time) string {
	if t.IsZero() {
		return placeholder
	}
	return t.In(seoul).Format("2006.01.02 15:04")
}

// Escape HTML-escapes text that is injected outside html/template, such as
// server-sent toast payloads.
func Escape(s string) string {
	return html.EscapeString(s)
}

var seoul = loadSeoul()

// Month returns the YYYY-MM bucket of t in Korean time.
func Month(t time.Time) string {
	return t.In(seoul).Format("2006-01")
}

func loadSeoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

package inquiries

import "strings"

const (
	medicalMarker = "marketing_medical"
	bizMarker     = "marketing_biz"
)

// Classify derives the source category of a record from its origin and the
// landing page it was submitted from. The checks run in a fixed precedence:
// explicit origin tags win, then the page markers, then the generic
// marketing fallback.
func Classify(origin Origin, sourcePage string) Source {
	switch origin {
	case OriginPartnerInquiry:
		return SourcePartner
	case OriginPromo:
		return SourcePromo
	}
	page := strings.ToLower(sourcePage)
	switch {
	case strings.Contains(page, medicalMarker):
		return SourceMarketingMedical
	case strings.Contains(page, bizMarker):
		return SourceMarketingBiz
	}
	if origin == OriginMarketing {
		switch {
		case strings.Contains(page, "medical"):
			return SourceMarketingMedical
		case strings.Contains(page, "biz"):
			return SourceMarketingBiz
		default:
			return SourceMarketingMedical
		}
	}
	return SourceConsultation
}

package partners

// Level is the severity of a gate message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Decision is the outcome of a partner login attempt.
type Decision struct {
	Allow   bool
	Level   Level
	Message string
}

// Gate decides whether a signed-in partner may enter the dashboard. Only
// approved partners pass; everyone else is turned away and the caller must
// end the session.
func Gate(p Partner) Decision {
	switch p.Status {
	case StatusApproved:
		return Decision{Allow: true}
	case StatusRejected:
		msg := "파트너 가입이 반려되었습니다."
		if reason := p.Reason(); reason != "" {
			msg += " 사유: " + reason
		}
		return Decision{Level: LevelError, Message: msg}
	default:
		return Decision{Level: LevelInfo, Message: "파트너 승인 대기 중입니다. 승인 완료 후 이용하실 수 있습니다."}
	}
}

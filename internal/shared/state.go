package shared

import (
	"encoding/json"
	"strconv"
)

// DashboardState is the per-session screen state of one dashboard view.
// Handlers load it, apply the request, and save it back; nothing about the
// current tab or detail target lives in package variables.
type DashboardState struct {
	Tab      string            `json:"tab"`
	DetailID int64             `json:"detail_id,omitempty"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// Filter returns a filter value or fallback when unset.
func (s DashboardState) Filter(key, fallback string) string {
	if v, ok := s.Filters[key]; ok && v != "" {
		return v
	}
	return fallback
}

// WithFilter returns a copy with key set to value.
func (s DashboardState) WithFilter(key, value string) DashboardState {
	next := make(map[string]string, len(s.Filters)+1)
	for k, v := range s.Filters {
		next[k] = v
	}
	next[key] = value
	s.Filters = next
	return s
}

// WithTab returns a copy switched to tab, clearing the detail target.
func (s DashboardState) WithTab(tab string) DashboardState {
	if s.Tab != tab {
		s.DetailID = 0
	}
	s.Tab = tab
	return s
}

// WithDetail returns a copy pointing at a detail record.
func (s DashboardState) WithDetail(id int64) DashboardState {
	s.DetailID = id
	return s
}

// DetailKey renders the detail id for templates.
func (s DashboardState) DetailKey() string {
	if s.DetailID == 0 {
		return ""
	}
	return strconv.FormatInt(s.DetailID, 10)
}

func stateKey(view string) string {
	return "state:" + view
}

// LoadState reads the state of view from the session.
func LoadState(sess *Session, view string) DashboardState {
	var state DashboardState
	if sess == nil {
		return state
	}
	raw := sess.Get(stateKey(view))
	if raw == "" {
		return state
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return DashboardState{}
	}
	return state
}

// SaveState stores state for view in the session.
func SaveState(sess *Session, view string, state DashboardState) {
	if sess == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	sess.Set(stateKey(view), string(data))
}

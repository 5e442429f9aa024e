package entity

// SessionSummary is derived from tracking events on demand and never stored.
type SessionSummary struct {
	UserID           uint64               `json:"user_id"`
	SessionID        string               `json:"session_id"`
	StartedAt        uint64               `json:"started_at"`
	LastAt           uint64               `json:"last_at"`
	Counts           map[EventType]uint64 `json:"counts"`
	PageFlow         []string             `json:"page_flow"`
	FromNotification bool                 `json:"from_notification"`

	User *User `json:"user,omitempty"`
}

func (e *SessionSummary) Key() string {
	return SessionKey(e.UserID, e.SessionID)
}

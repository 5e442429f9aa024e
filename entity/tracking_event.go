package entity

import (
	"engage/pkg/goutil"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeEmailOpen  EventType = "email_open"
	EventTypeEmailClick EventType = "email_click"
	EventTypeView       EventType = "view"
	EventTypeClick      EventType = "click"
	EventTypePanelOpen  EventType = "panel_open"
)

// TrackingEvent is immutable once written. Ts is in unix milliseconds and is the
// ordering key for every aggregation.
type TrackingEvent struct {
	ID             *string                `json:"id,omitempty"`
	Type           EventType              `json:"type,omitempty"`
	NotificationID *string                `json:"notification_id,omitempty"`
	UserID         *uint64                `json:"user_id,omitempty"`
	SessionID      *string                `json:"session_id,omitempty"`
	Path           *string                `json:"path,omitempty"`
	URL            *string                `json:"url,omitempty"`
	Ref            *string                `json:"ref,omitempty"`
	UserAgent      *string                `json:"user_agent,omitempty"`
	IP             *string                `json:"ip,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
	Ts             *uint64                `json:"ts,omitempty"`
}

func NewTrackingEvent(eventType EventType, meta *RequestMeta) *TrackingEvent {
	e := &TrackingEvent{
		ID:   goutil.String(uuid.New().String()),
		Type: eventType,
		Ts:   goutil.Uint64(uint64(time.Now().UnixMilli())),
	}

	if ua := meta.GetUserAgent(); ua != "" {
		e.UserAgent = goutil.String(ua)
	}
	if ip := meta.GetIP(); ip != "" {
		e.IP = goutil.String(ip)
	}

	return e
}

func (e *TrackingEvent) GetID() string {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return ""
}

func (e *TrackingEvent) GetUserID() uint64 {
	if e != nil && e.UserID != nil {
		return *e.UserID
	}
	return 0
}

func (e *TrackingEvent) GetSessionID() string {
	if e != nil && e.SessionID != nil {
		return *e.SessionID
	}
	return ""
}

func (e *TrackingEvent) GetPath() string {
	if e != nil && e.Path != nil {
		return *e.Path
	}
	return ""
}

func (e *TrackingEvent) GetRef() string {
	if e != nil && e.Ref != nil {
		return *e.Ref
	}
	return ""
}

func (e *TrackingEvent) GetTs() uint64 {
	if e != nil && e.Ts != nil {
		return *e.Ts
	}
	return 0
}

// FromNotification reports whether the event can be attributed to a notification.
func (e *TrackingEvent) FromNotification() bool {
	return e != nil && (e.NotificationID != nil || e.GetRef() != "")
}

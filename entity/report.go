package entity

import (
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

type MetricCounts struct {
	Sent       uint64 `json:"sent"`
	EmailOpen  uint64 `json:"email_open"`
	EmailClick uint64 `json:"email_click"`
	SiteView   uint64 `json:"site_view"`
	SiteClick  uint64 `json:"site_click"`
	PanelOpen  uint64 `json:"panel_open"`
}

// AddEvents adds n events of the given type to its column. Unknown types are ignored.
func (c *MetricCounts) AddEvents(eventType EventType, n uint64) {
	switch eventType {
	case EventTypeEmailOpen:
		c.EmailOpen += n
	case EventTypeEmailClick:
		c.EmailClick += n
	case EventTypeView:
		c.SiteView += n
	case EventTypeClick:
		c.SiteClick += n
	case EventTypePanelOpen:
		c.PanelOpen += n
	}
}

type DailyMetricsRow struct {
	Day string `json:"day"`
	MetricCounts
}

// DayCount is one row of a per-day group-by.
type DayCount struct {
	Day   string
	Count uint64
}

// DayTypeCount is one row of a per-(day, event type) group-by.
type DayTypeCount struct {
	Day   string
	Type  EventType
	Count uint64
}

type CampaignRollup struct {
	CampaignID string `json:"campaign_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	CreateTime uint64 `json:"create_time"`
	Total      uint64 `json:"total"`
	OpenCount  uint64 `json:"open_count"`
	ClickCount uint64 `json:"click_count"`
}

// DayKey formats t as a UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

func SessionKey(userID uint64, sessionID string) string {
	return fmt.Sprintf("%d|%s", userID, sessionID)
}

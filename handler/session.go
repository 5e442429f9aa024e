package handler

import (
	"engage/entity"
	"sort"
)

// ReconstructSessions groups events into one summary per (user, session), in key order.
// Events without a user are ignored. The input slice is not modified.
func ReconstructSessions(events []*entity.TrackingEvent) []*entity.SessionSummary {
	sorted := make([]*entity.TrackingEvent, 0, len(events))
	for _, evt := range events {
		if evt.GetUserID() != 0 {
			sorted = append(sorted, evt)
		}
	}

	// the store already orders by these keys, sorting again keeps bucketing correct if it does not
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.GetUserID() != b.GetUserID() {
			return a.GetUserID() < b.GetUserID()
		}
		if a.GetSessionID() != b.GetSessionID() {
			return a.GetSessionID() < b.GetSessionID()
		}
		if a.GetTs() != b.GetTs() {
			return a.GetTs() < b.GetTs()
		}
		return a.GetID() < b.GetID()
	})

	var (
		sessions = make([]*entity.SessionSummary, 0)
		cur      *entity.SessionSummary
		curKey   string
	)
	for _, evt := range sorted {
		key := entity.SessionKey(evt.GetUserID(), evt.GetSessionID())

		if cur == nil || key != curKey {
			if cur != nil {
				sessions = append(sessions, cur)
			}
			cur = &entity.SessionSummary{
				UserID:    evt.GetUserID(),
				SessionID: evt.GetSessionID(),
				StartedAt: evt.GetTs(),
				LastAt:    evt.GetTs(),
				Counts:    make(map[entity.EventType]uint64),
				PageFlow:  make([]string, 0),
			}
			curKey = key
		}

		cur.LastAt = evt.GetTs()
		cur.Counts[evt.Type]++

		if evt.Type == entity.EventTypeView && evt.GetPath() != "" {
			cur.PageFlow = append(cur.PageFlow, evt.GetPath())
		}

		// sticky for the whole bucket
		if evt.FromNotification() {
			cur.FromNotification = true
		}
	}

	if cur != nil {
		sessions = append(sessions, cur)
	}

	return sessions
}

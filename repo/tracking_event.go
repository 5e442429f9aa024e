package repo

import (
	"context"
	"encoding/json"
	"engage/entity"
	"engage/pkg/goutil"
)

// unix milliseconds to a UTC calendar day
const eventDayExpr = "DATE_FORMAT(DATE_ADD('1970-01-01', INTERVAL ts DIV 1000 SECOND), '%Y-%m-%d')"

type TrackingEvent struct {
	ID             *string `gorm:"primaryKey"`
	Type           *string
	NotificationID *string
	UserID         *uint64
	SessionID      *string
	Path           *string
	URL            *string
	Ref            *string
	UserAgent      *string
	IP             *string
	Meta           *string
	Ts             *uint64
}

func (m *TrackingEvent) TableName() string {
	return "tracking_event_tab"
}

func (m *TrackingEvent) GetID() string {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return ""
}

func (m *TrackingEvent) GetType() string {
	if m != nil && m.Type != nil {
		return *m.Type
	}
	return ""
}

func (m *TrackingEvent) GetMeta() string {
	if m != nil && m.Meta != nil {
		return *m.Meta
	}
	return ""
}

// EventWriter appends tracking events, either to the store or to the event queue.
type EventWriter interface {
	Append(ctx context.Context, evt *entity.TrackingEvent) error
}

type EventRepo interface {
	EventWriter

	// GetManySince returns attributable events with ts >= since, ordered by (user_id, session_id, ts, id).
	GetManySince(ctx context.Context, since uint64, userID *uint64) ([]*entity.TrackingEvent, error)
	CountByDayAndType(ctx context.Context, since uint64) ([]*entity.DayTypeCount, error)
	// DeleteBefore removes up to batchSize events older than before.
	DeleteBefore(ctx context.Context, before uint64, batchSize int) (uint64, error)
	Close(ctx context.Context) error
}

type eventRepo struct {
	baseRepo BaseRepo
}

func NewEventRepo(_ context.Context, baseRepo BaseRepo) EventRepo {
	return &eventRepo{baseRepo: baseRepo}
}

func (r *eventRepo) Append(ctx context.Context, evt *entity.TrackingEvent) error {
	eventModel, err := ToTrackingEventModel(evt)
	if err != nil {
		return err
	}

	// a redelivered event keeps its id, so a replay is a no-op
	_, err = r.baseRepo.CreateIgnore(ctx, new(TrackingEvent), eventModel)
	return err
}

func (r *eventRepo) GetManySince(ctx context.Context, since uint64, userID *uint64) ([]*entity.TrackingEvent, error) {
	conditions := []*Condition{
		{
			Field: "ts",
			Op:    OpGte,
			Value: since,
		},
		{
			Field: "user_id",
			Op:    OpNotNull,
		},
	}
	if userID != nil {
		conditions = append(conditions, &Condition{
			Field: "user_id",
			Op:    OpEq,
			Value: *userID,
		})
	}

	mEvents := make([]*TrackingEvent, 0)
	if err := r.baseRepo.Find(ctx, new(TrackingEvent), &mEvents, &Filter{
		Conditions: conditions,
		Order:      "user_id ASC, session_id ASC, ts ASC, id ASC",
	}); err != nil {
		return nil, err
	}

	events := make([]*entity.TrackingEvent, len(mEvents))
	for i, mEvent := range mEvents {
		event, err := ToTrackingEvent(mEvent)
		if err != nil {
			return nil, err
		}
		events[i] = event
	}

	return events, nil
}

func (r *eventRepo) CountByDayAndType(ctx context.Context, since uint64) ([]*entity.DayTypeCount, error) {
	rows := make([]*entity.DayTypeCount, 0)

	if err := r.baseRepo.GroupBy(ctx, new(TrackingEvent), &rows,
		[]string{
			eventDayExpr + " AS day",
			"type",
			"COUNT(*) AS count",
		},
		[]string{"day", "type"},
		&Filter{
			Conditions: []*Condition{
				{
					Field: "ts",
					Op:    OpGte,
					Value: since,
				},
			},
		}); err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *eventRepo) DeleteBefore(ctx context.Context, before uint64, batchSize int) (uint64, error) {
	ids := make([]string, 0)

	if err := r.baseRepo.Pluck(ctx, new(TrackingEvent), "id", &ids, &Filter{
		Conditions: []*Condition{
			{
				Field: "ts",
				Op:    OpLt,
				Value: before,
			},
		},
		Order: "ts ASC",
		Limit: batchSize,
	}); err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	affected, err := r.baseRepo.Delete(ctx, new(TrackingEvent), &Filter{
		Conditions: []*Condition{
			{
				Field: "id",
				Op:    OpIn,
				Value: ids,
			},
		},
	})
	if err != nil {
		return 0, err
	}

	return uint64(affected), nil
}

func (r *eventRepo) Close(ctx context.Context) error {
	return r.baseRepo.Close(ctx)
}

func ToTrackingEventModel(evt *entity.TrackingEvent) (*TrackingEvent, error) {
	var meta *string
	if len(evt.Meta) > 0 {
		b, err := json.Marshal(evt.Meta)
		if err != nil {
			return nil, err
		}
		meta = goutil.String(string(b))
	}

	return &TrackingEvent{
		ID:             evt.ID,
		Type:           goutil.String(string(evt.Type)),
		NotificationID: evt.NotificationID,
		UserID:         evt.UserID,
		SessionID:      evt.SessionID,
		Path:           evt.Path,
		URL:            evt.URL,
		Ref:            evt.Ref,
		UserAgent:      evt.UserAgent,
		IP:             evt.IP,
		Meta:           meta,
		Ts:             evt.Ts,
	}, nil
}

func ToTrackingEvent(m *TrackingEvent) (*entity.TrackingEvent, error) {
	var meta map[string]interface{}
	if m.GetMeta() != "" {
		if err := json.Unmarshal([]byte(m.GetMeta()), &meta); err != nil {
			return nil, err
		}
	}

	return &entity.TrackingEvent{
		ID:             m.ID,
		Type:           entity.EventType(m.GetType()),
		NotificationID: m.NotificationID,
		UserID:         m.UserID,
		SessionID:      m.SessionID,
		Path:           m.Path,
		URL:            m.URL,
		Ref:            m.Ref,
		UserAgent:      m.UserAgent,
		IP:             m.IP,
		Meta:           meta,
		Ts:             m.Ts,
	}, nil
}

package repo

import (
	"context"
	"engage/entity"
	"engage/pkg/errutil"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errutil.NotFoundError(errors.New("notification not found"))
)

// MaxCampaignRollups caps the campaign rollup.
const MaxCampaignRollups = 200

// unix seconds to a UTC calendar day, independent of the session time zone
const notificationDayExpr = "DATE_FORMAT(DATE_ADD('1970-01-01', INTERVAL create_time SECOND), '%Y-%m-%d')"

type Notification struct {
	ID            *string `gorm:"primaryKey"`
	RecipientID   *uint64
	Sender        *string
	Title         *string
	Body          *string
	Type          *string
	Icon          *string
	Link          *string
	ProductID     *uint64
	CampaignID    *string
	Audience      *string
	SentEmailAt   *uint64
	OpenCount     *uint64
	ClickCount    *uint64
	LastOpenedAt  *uint64
	LastClickedAt *uint64
	ReadAt        *uint64
	CreateTime    *uint64
}

func (m *Notification) TableName() string {
	return "notification_tab"
}

func (m *Notification) GetID() string {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return ""
}

func (m *Notification) GetAudience() string {
	if m != nil && m.Audience != nil {
		return *m.Audience
	}
	return ""
}

type NotificationRepo interface {
	// CreateMany inserts all rows in one unordered batch and returns the rows that were persisted.
	CreateMany(ctx context.Context, notifications []*entity.Notification) ([]*entity.Notification, error)
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	GetManyByRecipient(ctx context.Context, recipientID uint64, p *entity.Pagination) ([]*entity.Notification, *entity.Pagination, error)
	CountUnread(ctx context.Context, recipientID uint64) (uint64, error)
	// IncrOpen and IncrClick increment the counter in the store and return the updated row.
	IncrOpen(ctx context.Context, id string, at uint64) (*entity.Notification, error)
	IncrClick(ctx context.Context, id string, at uint64) (*entity.Notification, error)
	MarkRead(ctx context.Context, recipientID uint64, id string, at uint64) error
	MarkAllRead(ctx context.Context, recipientID uint64, at uint64) (uint64, error)
	Delete(ctx context.Context, recipientID uint64, id string) error
	CountSentByDay(ctx context.Context, since uint64) ([]*entity.DayCount, error)
	GetCampaignRollups(ctx context.Context) ([]*entity.CampaignRollup, error)
	Close(ctx context.Context) error
}

type notificationRepo struct {
	baseRepo BaseRepo
}

func NewNotificationRepo(_ context.Context, baseRepo BaseRepo) NotificationRepo {
	return &notificationRepo{baseRepo: baseRepo}
}

func (r *notificationRepo) CreateMany(ctx context.Context, notifications []*entity.Notification) ([]*entity.Notification, error) {
	if len(notifications) == 0 {
		return nil, nil
	}

	var (
		models = make([]*Notification, len(notifications))
		ids    = make([]string, len(notifications))
	)
	for i, n := range notifications {
		models[i] = ToNotificationModel(n)
		ids[i] = n.GetID()
	}

	affected, err := r.baseRepo.CreateIgnore(ctx, new(Notification), &models)
	if err != nil {
		return nil, err
	}

	if int(affected) == len(notifications) {
		return notifications, nil
	}

	// some rows were rejected, keep only what landed
	persisted := make([]*Notification, 0)
	if err := r.baseRepo.Find(ctx, new(Notification), &persisted, &Filter{
		Conditions: []*Condition{
			{
				Field: "id",
				Op:    OpIn,
				Value: ids,
			},
		},
	}); err != nil {
		return nil, err
	}

	landed := make(map[string]struct{}, len(persisted))
	for _, m := range persisted {
		landed[m.GetID()] = struct{}{}
	}

	res := make([]*entity.Notification, 0, len(persisted))
	for _, n := range notifications {
		if _, ok := landed[n.GetID()]; ok {
			res = append(res, n)
		}
	}

	return res, nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	return r.get(ctx, []*Condition{
		{
			Field: "id",
			Op:    OpEq,
			Value: id,
		},
	})
}

func (r *notificationRepo) get(ctx context.Context, conditions []*Condition) (*entity.Notification, error) {
	notification := new(Notification)

	if err := r.baseRepo.Get(ctx, notification, &Filter{
		Conditions: conditions,
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	return ToNotification(notification), nil
}

func (r *notificationRepo) GetManyByRecipient(ctx context.Context, recipientID uint64, p *entity.Pagination) ([]*entity.Notification, *entity.Pagination, error) {
	res, pagination, err := r.baseRepo.GetMany(ctx, new(Notification), &Filter{
		Conditions: r.getRecipientConditions(recipientID),
		Pagination: p,
		Order:      "create_time DESC, id DESC",
	})
	if err != nil {
		return nil, nil, err
	}

	notifications := make([]*entity.Notification, len(res))
	for i, m := range res {
		notifications[i] = ToNotification(m.(*Notification))
	}

	return notifications, pagination, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, recipientID uint64) (uint64, error) {
	return r.baseRepo.Count(ctx, new(Notification), &Filter{
		Conditions: append(r.getRecipientConditions(recipientID), &Condition{
			Field: "read_at",
			Op:    OpIsNull,
		}),
	})
}

func (r *notificationRepo) IncrOpen(ctx context.Context, id string, at uint64) (*entity.Notification, error) {
	return r.incr(ctx, id, map[string]interface{}{
		"open_count":     gorm.Expr("COALESCE(open_count, 0) + ?", 1),
		"last_opened_at": at,
	})
}

func (r *notificationRepo) IncrClick(ctx context.Context, id string, at uint64) (*entity.Notification, error) {
	return r.incr(ctx, id, map[string]interface{}{
		"click_count":     gorm.Expr("COALESCE(click_count, 0) + ?", 1),
		"last_clicked_at": at,
	})
}

func (r *notificationRepo) incr(ctx context.Context, id string, fields map[string]interface{}) (*entity.Notification, error) {
	affected, err := r.baseRepo.Update(ctx, new(Notification), &Filter{
		Conditions: []*Condition{
			{
				Field: "id",
				Op:    OpEq,
				Value: id,
			},
		},
	}, fields)
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		return nil, ErrNotificationNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *notificationRepo) MarkRead(ctx context.Context, recipientID uint64, id string, at uint64) error {
	conditions := append(r.getRecipientConditions(recipientID), &Condition{
		Field: "id",
		Op:    OpEq,
		Value: id,
	})

	notification, err := r.get(ctx, conditions)
	if err != nil {
		return err
	}

	if notification.IsRead() {
		return nil
	}

	_, err = r.baseRepo.Update(ctx, new(Notification), &Filter{
		Conditions: append(conditions, &Condition{
			Field: "read_at",
			Op:    OpIsNull,
		}),
	}, map[string]interface{}{
		"read_at": at,
	})

	return err
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, recipientID uint64, at uint64) (uint64, error) {
	affected, err := r.baseRepo.Update(ctx, new(Notification), &Filter{
		Conditions: append(r.getRecipientConditions(recipientID), &Condition{
			Field: "read_at",
			Op:    OpIsNull,
		}),
	}, map[string]interface{}{
		"read_at": at,
	})
	if err != nil {
		return 0, err
	}

	return uint64(affected), nil
}

func (r *notificationRepo) Delete(ctx context.Context, recipientID uint64, id string) error {
	affected, err := r.baseRepo.Delete(ctx, new(Notification), &Filter{
		Conditions: append(r.getRecipientConditions(recipientID), &Condition{
			Field: "id",
			Op:    OpEq,
			Value: id,
		}),
	})
	if err != nil {
		return err
	}

	if affected == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

func (r *notificationRepo) CountSentByDay(ctx context.Context, since uint64) ([]*entity.DayCount, error) {
	rows := make([]*entity.DayCount, 0)

	if err := r.baseRepo.GroupBy(ctx, new(Notification), &rows,
		[]string{
			notificationDayExpr + " AS day",
			"COUNT(*) AS count",
		},
		[]string{"day"},
		&Filter{
			Conditions: []*Condition{
				{
					Field: "create_time",
					Op:    OpGte,
					Value: since,
				},
			},
		}); err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *notificationRepo) GetCampaignRollups(ctx context.Context) ([]*entity.CampaignRollup, error) {
	rows := make([]*entity.CampaignRollup, 0)

	if err := r.baseRepo.GroupBy(ctx, new(Notification), &rows,
		[]string{
			"campaign_id",
			"ANY_VALUE(title) AS title",
			"ANY_VALUE(body) AS body",
			"MIN(create_time) AS create_time",
			"COUNT(*) AS total",
			"SUM(COALESCE(open_count, 0)) AS open_count",
			"SUM(COALESCE(click_count, 0)) AS click_count",
		},
		[]string{"campaign_id"},
		&Filter{
			Conditions: []*Condition{
				{
					Field: "audience",
					Op:    OpEq,
					Value: string(entity.AudienceGlobal),
				},
				{
					Field: "campaign_id",
					Op:    OpNotNull,
				},
			},
			Order: "create_time DESC",
			Limit: MaxCampaignRollups,
		}); err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *notificationRepo) Close(ctx context.Context) error {
	return r.baseRepo.Close(ctx)
}

func (r *notificationRepo) getRecipientConditions(recipientID uint64) []*Condition {
	return []*Condition{
		{
			Field:         "recipient_id",
			Op:            OpEq,
			Value:         recipientID,
			NextLogicalOp: LogicalOpAnd,
		},
	}
}

func ToNotificationModel(n *entity.Notification) *Notification {
	var audience *string
	if n.Audience != "" {
		a := string(n.Audience)
		audience = &a
	}

	return &Notification{
		ID:            n.ID,
		RecipientID:   n.RecipientID,
		Sender:        n.Sender,
		Title:         n.Title,
		Body:          n.Body,
		Type:          n.Type,
		Icon:          n.Icon,
		Link:          n.Link,
		ProductID:     n.ProductID,
		CampaignID:    n.CampaignID,
		Audience:      audience,
		SentEmailAt:   n.SentEmailAt,
		OpenCount:     n.OpenCount,
		ClickCount:    n.ClickCount,
		LastOpenedAt:  n.LastOpenedAt,
		LastClickedAt: n.LastClickedAt,
		ReadAt:        n.ReadAt,
		CreateTime:    n.CreateTime,
	}
}

func ToNotification(m *Notification) *entity.Notification {
	return &entity.Notification{
		ID:            m.ID,
		RecipientID:   m.RecipientID,
		Sender:        m.Sender,
		Title:         m.Title,
		Body:          m.Body,
		Type:          m.Type,
		Icon:          m.Icon,
		Link:          m.Link,
		ProductID:     m.ProductID,
		CampaignID:    m.CampaignID,
		Audience:      entity.Audience(m.GetAudience()),
		SentEmailAt:   m.SentEmailAt,
		OpenCount:     m.OpenCount,
		ClickCount:    m.ClickCount,
		LastOpenedAt:  m.LastOpenedAt,
		LastClickedAt: m.LastClickedAt,
		ReadAt:        m.ReadAt,
		CreateTime:    m.CreateTime,
	}
}

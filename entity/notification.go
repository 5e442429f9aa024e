package entity

import (
	"engage/pkg/goutil"
	"time"

	"github.com/google/uuid"
)

type Audience string

const (
	AudienceGlobal Audience = "global"
	AudienceList   Audience = "list"
)

const DefaultNotificationType = "promo"

type Notification struct {
	ID            *string  `json:"id,omitempty"`
	RecipientID   *uint64  `json:"recipient_id,omitempty"`
	Sender        *string  `json:"sender,omitempty"`
	Title         *string  `json:"title,omitempty"`
	Body          *string  `json:"body,omitempty"`
	Type          *string  `json:"type,omitempty"`
	Icon          *string  `json:"icon,omitempty"`
	Link          *string  `json:"link,omitempty"`
	ProductID     *uint64  `json:"product_id,omitempty"`
	CampaignID    *string  `json:"campaign_id,omitempty"`
	Audience      Audience `json:"audience,omitempty"`
	SentEmailAt   *uint64  `json:"sent_email_at,omitempty"`
	OpenCount     *uint64  `json:"open_count,omitempty"`
	ClickCount    *uint64  `json:"click_count,omitempty"`
	LastOpenedAt  *uint64  `json:"last_opened_at,omitempty"`
	LastClickedAt *uint64  `json:"last_clicked_at,omitempty"`
	ReadAt        *uint64  `json:"read_at,omitempty"`
	CreateTime    *uint64  `json:"create_time,omitempty"`

	Product *Product `json:"product,omitempty"`
}

// NewNotification copies the shared content of a send into a fresh per-recipient row.
// campaignID must be set if and only if the audience is global.
func NewNotification(recipientID uint64, content *Notification, campaignID *string) *Notification {
	now := uint64(time.Now().Unix())

	audience := AudienceList
	if campaignID != nil {
		audience = AudienceGlobal
	}

	return &Notification{
		ID:          goutil.String(uuid.New().String()),
		RecipientID: goutil.Uint64(recipientID),
		Sender:      content.Sender,
		Title:       content.Title,
		Body:        content.Body,
		Type:        content.Type,
		Icon:        content.Icon,
		Link:        content.Link,
		ProductID:   content.ProductID,
		CampaignID:  campaignID,
		Audience:    audience,
		SentEmailAt: goutil.Uint64(now),
		OpenCount:   goutil.Uint64(0),
		ClickCount:  goutil.Uint64(0),
		CreateTime:  goutil.Uint64(now),
	}
}

func (e *Notification) GetID() string {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return ""
}

func (e *Notification) GetRecipientID() uint64 {
	if e != nil && e.RecipientID != nil {
		return *e.RecipientID
	}
	return 0
}

func (e *Notification) GetTitle() string {
	if e != nil && e.Title != nil {
		return *e.Title
	}
	return ""
}

func (e *Notification) GetBody() string {
	if e != nil && e.Body != nil {
		return *e.Body
	}
	return ""
}

func (e *Notification) GetLink() string {
	if e != nil && e.Link != nil {
		return *e.Link
	}
	return ""
}

func (e *Notification) GetProductID() uint64 {
	if e != nil && e.ProductID != nil {
		return *e.ProductID
	}
	return 0
}

func (e *Notification) GetCampaignID() string {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return ""
}

func (e *Notification) GetOpenCount() uint64 {
	if e != nil && e.OpenCount != nil {
		return *e.OpenCount
	}
	return 0
}

func (e *Notification) GetClickCount() uint64 {
	if e != nil && e.ClickCount != nil {
		return *e.ClickCount
	}
	return 0
}

func (e *Notification) IsRead() bool {
	return e != nil && e.ReadAt != nil
}

// IsValidID reports whether s can be a notification or event id.
func IsValidID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

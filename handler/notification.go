package handler

import (
	"context"
	"engage/config"
	"engage/dep"
	"engage/entity"
	"engage/pkg/goutil"
	"engage/pkg/metric"
	"engage/repo"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	TargetAll  = "all"
	TargetList = "list"

	DefaultListLimit = 20
	MaxListLimit     = 100
)

type NotificationHandler interface {
	SendNotification(ctx context.Context, req *SendNotificationRequest, res *SendNotificationResponse) error
	GetNotifications(ctx context.Context, req *GetNotificationsRequest, res *GetNotificationsResponse) error
	GetUnreadCount(ctx context.Context, req *GetUnreadCountRequest, res *GetUnreadCountResponse) error
	MarkRead(ctx context.Context, req *MarkReadRequest, res *MarkReadResponse) error
	MarkAllRead(ctx context.Context, req *MarkAllReadRequest, res *MarkAllReadResponse) error
	DeleteNotification(ctx context.Context, req *DeleteNotificationRequest, res *DeleteNotificationResponse) error
}

type notificationHandler struct {
	cfg              *config.Config
	notificationRepo repo.NotificationRepo
	userRepo         repo.UserRepo
	productRepo      repo.ProductRepo
	emailService     dep.EmailService
}

func NewNotificationHandler(cfg *config.Config, notificationRepo repo.NotificationRepo, userRepo repo.UserRepo,
	productRepo repo.ProductRepo, emailService dep.EmailService) NotificationHandler {
	return &notificationHandler{
		cfg:              cfg,
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		productRepo:      productRepo,
		emailService:     emailService,
	}
}

type SendNotificationRequest struct {
	ContextInfo

	Title     *string  `json:"title,omitempty" validate:"required,min=1,max=200"`
	Body      *string  `json:"body,omitempty" validate:"required,min=1,max=2000"`
	Type      *string  `json:"type,omitempty" validate:"omitempty,max=32"`
	Icon      *string  `json:"icon,omitempty" validate:"omitempty,max=32"`
	Link      *string  `json:"link,omitempty" validate:"omitempty,max=2048"`
	ProductID *uint64  `json:"productId,omitempty"`
	Target    *string  `json:"target,omitempty" validate:"required,oneof=all list"`
	UserIDs   []string `json:"userIds,omitempty"`
}

func (req *SendNotificationRequest) GetTarget() string {
	if req != nil && req.Target != nil {
		return *req.Target
	}
	return ""
}

func (req *SendNotificationRequest) GetType() string {
	if req != nil && req.Type != nil && *req.Type != "" {
		return *req.Type
	}
	return entity.DefaultNotificationType
}

func (req *SendNotificationRequest) trim() {
	for _, s := range []**string{&req.Title, &req.Body, &req.Type, &req.Icon, &req.Link, &req.Target} {
		if *s != nil {
			*s = goutil.String(strings.TrimSpace(**s))
		}
	}
}

func (req *SendNotificationRequest) ToContent(senderName string) *entity.Notification {
	content := &entity.Notification{
		Sender:    goutil.String(senderName),
		Title:     req.Title,
		Body:      req.Body,
		Type:      goutil.String(req.GetType()),
		Icon:      goutil.StringOrNil(goutil.StringOrEmpty(req.Icon)),
		Link:      goutil.StringOrNil(goutil.StringOrEmpty(req.Link)),
		ProductID: req.ProductID,
	}
	if content.GetProductID() == 0 {
		content.ProductID = nil
	}
	return content
}

type SendNotificationResponse struct {
	Created     uint64 `json:"created"`
	Emailed     uint64 `json:"emailed"`
	EmailFailed uint64 `json:"email_failed"`
}

func (h *notificationHandler) SendNotification(ctx context.Context, req *SendNotificationRequest, res *SendNotificationResponse) error {
	req.trim()
	if err := validateRequest(req); err != nil {
		return err
	}

	if req.GetTarget() == TargetList && len(req.UserIDs) == 0 {
		return invalidRequest("userIds required for target list")
	}

	users, campaignID, err := h.resolveRecipients(ctx, req)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		return ErrNoRecipients
	}

	var (
		content       = req.ToContent(h.cfg.Sender.Name)
		notifications = make([]*entity.Notification, len(users))
		usersByID     = make(map[uint64]*entity.User, len(users))
	)
	for i, user := range users {
		notifications[i] = entity.NewNotification(user.GetID(), content, campaignID)
		usersByID[user.GetID()] = user
	}

	created, err := h.notificationRepo.CreateMany(ctx, notifications)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("create notifications failed: %v, recipients: %d", err, len(notifications))
		return err
	}

	if dropped := len(notifications) - len(created); dropped > 0 {
		log.Ctx(ctx).Warn().Msgf("notification rows rejected by store: %d", dropped)
	}
	metric.NotificationsCreated.Add(float64(len(created)))

	emailed, failed := h.sendEmails(ctx, created, usersByID)

	log.Ctx(ctx).Info().Msgf("notification sent, target: %s, campaign_id: %s, created: %d, emailed: %d, email_failed: %d",
		req.GetTarget(), goutil.StringOrEmpty(campaignID), len(created), emailed, failed)

	res.Created = uint64(len(created))
	res.Emailed = emailed
	res.EmailFailed = failed

	return nil
}

// resolveRecipients returns the target users, and a fresh campaign id for a send to all.
func (h *notificationHandler) resolveRecipients(ctx context.Context, req *SendNotificationRequest) ([]*entity.User, *string, error) {
	if req.GetTarget() == TargetAll {
		users, err := h.userRepo.GetAll(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Msgf("get all users failed: %v", err)
			return nil, nil, err
		}
		return users, goutil.String(uuid.New().String()), nil
	}

	userIDs := make([]uint64, 0, len(req.UserIDs))
	for _, s := range req.UserIDs {
		if userID, ok := goutil.ParseID(s); ok {
			userIDs = append(userIDs, userID)
		}
	}

	if len(userIDs) == 0 {
		return nil, nil, nil
	}

	users, err := h.userRepo.GetManyByIDs(ctx, userIDs)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get users failed: %v, user_ids: %v", err, userIDs)
		return nil, nil, err
	}

	return users, nil, nil
}

// sendEmails sends one email per created notification whose recipient has an address.
// Sends run concurrently and every failure is counted, never returned.
func (h *notificationHandler) sendEmails(ctx context.Context, notifications []*entity.Notification,
	usersByID map[uint64]*entity.User) (emailed, failed uint64) {
	var (
		g        = new(errgroup.Group)
		failures atomic.Uint64
		// emails go out even if the admin's request is cancelled
		sendCtx = context.WithoutCancel(ctx)
	)
	g.SetLimit(h.emailConcurrency())

	for _, n := range notifications {
		user := usersByID[n.GetRecipientID()]
		if user.GetEmail() == "" {
			continue
		}

		emailed++

		n := n
		g.Go(func() error {
			if err := h.sendEmail(sendCtx, n, user); err != nil {
				failures.Add(1)
				metric.NotificationEmails.WithLabelValues(metric.ResultFailed).Inc()
				log.Ctx(sendCtx).Error().Msgf("send notification email failed: %v, notification_id: %s, user_id: %d",
					err, n.GetID(), user.GetID())
				return nil
			}
			metric.NotificationEmails.WithLabelValues(metric.ResultSuccess).Inc()
			return nil
		})
	}

	_ = g.Wait()

	return emailed, failures.Load()
}

func (h *notificationHandler) sendEmail(ctx context.Context, n *entity.Notification, user *entity.User) error {
	email, err := composeEmail(h.cfg, n, user)
	if err != nil {
		return err
	}
	return h.emailService.SendEmail(ctx, email)
}

func (h *notificationHandler) emailConcurrency() int {
	if c := h.cfg.Dispatch.EmailConcurrency; c > 0 {
		return c
	}
	return 1
}

type GetNotificationsRequest struct {
	ContextInfo

	Limit *int `json:"limit,omitempty" schema:"limit,omitempty"`
	Page  *int `json:"page,omitempty" schema:"page,omitempty"`
}

func (req *GetNotificationsRequest) ToPagination() *entity.Pagination {
	limit := DefaultListLimit
	if req.Limit != nil {
		limit = goutil.Clamp(*req.Limit, 1, MaxListLimit)
	}

	page := 1
	if req.Page != nil && *req.Page > 1 {
		page = *req.Page
	}

	return &entity.Pagination{
		Limit: goutil.Uint32(uint32(limit)),
		Page:  goutil.Uint32(uint32(page)),
	}
}

type GetNotificationsResponse struct {
	Notifications []*entity.Notification `json:"notifications"`
	Pagination    *entity.Pagination     `json:"pagination,omitempty"`
	Unread        uint64                 `json:"unread"`
}

func (h *notificationHandler) GetNotifications(ctx context.Context, req *GetNotificationsRequest, res *GetNotificationsResponse) error {
	if req.GetUserID() == 0 {
		return ErrUnauthorized
	}

	notifications, pagination, err := h.notificationRepo.GetManyByRecipient(ctx, req.GetUserID(), req.ToPagination())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get notifications failed: %v, user_id: %d", err, req.GetUserID())
		return err
	}

	unread, err := h.notificationRepo.CountUnread(ctx, req.GetUserID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("count unread failed: %v, user_id: %d", err, req.GetUserID())
		return err
	}

	h.attachProducts(ctx, notifications)

	res.Notifications = notifications
	res.Pagination = pagination
	res.Unread = unread

	return nil
}

// attachProducts is best effort, a failed lookup leaves the list unenriched.
func (h *notificationHandler) attachProducts(ctx context.Context, notifications []*entity.Notification) {
	productIDs := make([]uint64, 0)
	for _, n := range notifications {
		if n.GetProductID() != 0 {
			productIDs = append(productIDs, n.GetProductID())
		}
	}

	if len(productIDs) == 0 {
		return
	}

	products, err := h.productRepo.GetManyByIDs(ctx, productIDs)
	if err != nil {
		log.Ctx(ctx).Warn().Msgf("get products failed: %v", err)
		return
	}

	byID := make(map[uint64]*entity.Product, len(products))
	for _, p := range products {
		byID[p.GetID()] = p
	}

	for _, n := range notifications {
		n.Product = byID[n.GetProductID()]
	}
}

type GetUnreadCountRequest struct {
	ContextInfo
}

type GetUnreadCountResponse struct {
	Unread uint64 `json:"unread"`
}

func (h *notificationHandler) GetUnreadCount(ctx context.Context, req *GetUnreadCountRequest, res *GetUnreadCountResponse) error {
	if req.GetUserID() == 0 {
		return ErrUnauthorized
	}

	unread, err := h.notificationRepo.CountUnread(ctx, req.GetUserID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("count unread failed: %v, user_id: %d", err, req.GetUserID())
		return err
	}

	res.Unread = unread

	return nil
}

type MarkReadRequest struct {
	ContextInfo

	NotificationID *string `json:"notificationId,omitempty"`
}

func (req *MarkReadRequest) GetNotificationID() string {
	if req != nil && req.NotificationID != nil {
		return strings.TrimSpace(*req.NotificationID)
	}
	return ""
}

type MarkReadResponse struct{}

func (h *notificationHandler) MarkRead(ctx context.Context, req *MarkReadRequest, _ *MarkReadResponse) error {
	if req.GetUserID() == 0 {
		return ErrUnauthorized
	}

	if !entity.IsValidID(req.GetNotificationID()) {
		return ErrNotificationNotFound
	}

	if err := h.notificationRepo.MarkRead(ctx, req.GetUserID(), req.GetNotificationID(), uint64(time.Now().Unix())); err != nil {
		log.Ctx(ctx).Error().Msgf("mark read failed: %v, notification_id: %s", err, req.GetNotificationID())
		return err
	}

	return nil
}

type MarkAllReadRequest struct {
	ContextInfo
}

type MarkAllReadResponse struct {
	Updated uint64 `json:"updated"`
}

func (h *notificationHandler) MarkAllRead(ctx context.Context, req *MarkAllReadRequest, res *MarkAllReadResponse) error {
	if req.GetUserID() == 0 {
		return ErrUnauthorized
	}

	updated, err := h.notificationRepo.MarkAllRead(ctx, req.GetUserID(), uint64(time.Now().Unix()))
	if err != nil {
		log.Ctx(ctx).Error().Msgf("mark all read failed: %v, user_id: %d", err, req.GetUserID())
		return err
	}

	res.Updated = updated

	return nil
}

type DeleteNotificationRequest struct {
	ContextInfo

	NotificationID *string `json:"notificationId,omitempty"`
}

func (req *DeleteNotificationRequest) GetNotificationID() string {
	if req != nil && req.NotificationID != nil {
		return strings.TrimSpace(*req.NotificationID)
	}
	return ""
}

type DeleteNotificationResponse struct{}

func (h *notificationHandler) DeleteNotification(ctx context.Context, req *DeleteNotificationRequest, _ *DeleteNotificationResponse) error {
	if req.GetUserID() == 0 {
		return ErrUnauthorized
	}

	if !entity.IsValidID(req.GetNotificationID()) {
		return ErrNotificationNotFound
	}

	if err := h.notificationRepo.Delete(ctx, req.GetUserID(), req.GetNotificationID()); err != nil {
		log.Ctx(ctx).Error().Msgf("delete notification failed: %v, notification_id: %s", err, req.GetNotificationID())
		return err
	}

	return nil
}

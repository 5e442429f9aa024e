package handler

import (
	"context"
	"engage/config"
	"engage/dep"
	"engage/entity"
	"engage/pkg/goutil"
	"engage/repo"
	"errors"
	"sync"
	"sync/atomic"
)

func newTestConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Sender.Email = "hello@maison.test"
	cfg.Tracking.BaseURL = "https://api.maison.test"
	cfg.Tracking.DefaultSiteURL = "https://maison.test"
	cfg.Tracking.UTMCampaign = "notification"
	cfg.Tracking.WriteTimeoutMs = 2_000
	cfg.Dispatch.EmailConcurrency = 4
	return cfg
}

func newTestUser(id uint64, email, name string) *entity.User {
	return &entity.User{
		ID:          goutil.Uint64(id),
		Email:       goutil.StringOrNil(email),
		DisplayName: goutil.StringOrNil(name),
		Status:      entity.UserStatusNormal,
	}
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*entity.Notification
	reject        map[uint64]bool
	createErr     error
	incrErr       error

	sent      []*entity.DayCount
	rollups   []*entity.CampaignRollup
	sentSince uint64
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		notifications: make(map[string]*entity.Notification),
		reject:        make(map[uint64]bool),
	}
}

func (r *fakeNotificationRepo) add(n *entity.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.GetID()] = n
}

func (r *fakeNotificationRepo) get(id string) *entity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notifications[id]
}

func (r *fakeNotificationRepo) all() []*entity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*entity.Notification, 0, len(r.notifications))
	for _, n := range r.notifications {
		res = append(res, n)
	}
	return res
}

func (r *fakeNotificationRepo) CreateMany(_ context.Context, notifications []*entity.Notification) ([]*entity.Notification, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := make([]*entity.Notification, 0, len(notifications))
	for _, n := range notifications {
		if r.reject[n.GetRecipientID()] {
			continue
		}
		r.notifications[n.GetID()] = n
		created = append(created, n)
	}
	return created, nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id string) (*entity.Notification, error) {
	if n := r.get(id); n != nil {
		return n, nil
	}
	return nil, repo.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) GetManyByRecipient(_ context.Context, recipientID uint64, p *entity.Pagination) ([]*entity.Notification, *entity.Pagination, error) {
	res := make([]*entity.Notification, 0)
	for _, n := range r.all() {
		if n.GetRecipientID() == recipientID {
			res = append(res, n)
		}
	}
	return res, &entity.Pagination{Page: p.Page, Limit: p.Limit, HasNext: goutil.Bool(false)}, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, recipientID uint64) (uint64, error) {
	var count uint64
	for _, n := range r.all() {
		if n.GetRecipientID() == recipientID && !n.IsRead() {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) IncrOpen(_ context.Context, id string, at uint64) (*entity.Notification, error) {
	return r.incr(id, func(n *entity.Notification) {
		n.OpenCount = goutil.Uint64(n.GetOpenCount() + 1)
		n.LastOpenedAt = goutil.Uint64(at)
	})
}

func (r *fakeNotificationRepo) IncrClick(_ context.Context, id string, at uint64) (*entity.Notification, error) {
	return r.incr(id, func(n *entity.Notification) {
		n.ClickCount = goutil.Uint64(n.GetClickCount() + 1)
		n.LastClickedAt = goutil.Uint64(at)
	})
}

func (r *fakeNotificationRepo) incr(id string, fn func(n *entity.Notification)) (*entity.Notification, error) {
	if r.incrErr != nil {
		return nil, r.incrErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, repo.ErrNotificationNotFound
	}
	fn(n)

	cp := *n
	return &cp, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, recipientID uint64, id string, at uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.GetRecipientID() != recipientID {
		return repo.ErrNotificationNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = goutil.Uint64(at)
	}
	return nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, recipientID uint64, at uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated uint64
	for _, n := range r.notifications {
		if n.GetRecipientID() == recipientID && n.ReadAt == nil {
			n.ReadAt = goutil.Uint64(at)
			updated++
		}
	}
	return updated, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, recipientID uint64, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.GetRecipientID() != recipientID {
		return repo.ErrNotificationNotFound
	}
	delete(r.notifications, id)
	return nil
}

func (r *fakeNotificationRepo) CountSentByDay(_ context.Context, since uint64) ([]*entity.DayCount, error) {
	r.sentSince = since
	return r.sent, nil
}

func (r *fakeNotificationRepo) GetCampaignRollups(_ context.Context) ([]*entity.CampaignRollup, error) {
	return r.rollups, nil
}

func (r *fakeNotificationRepo) Close(_ context.Context) error {
	return nil
}

type fakeUserRepo struct {
	users []*entity.User
	err   error
	calls atomic.Int32
}

func (r *fakeUserRepo) GetAll(_ context.Context) ([]*entity.User, error) {
	r.calls.Add(1)
	return r.users, r.err
}

func (r *fakeUserRepo) GetManyByIDs(_ context.Context, userIDs []uint64) ([]*entity.User, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}

	res := make([]*entity.User, 0)
	for _, id := range userIDs {
		for _, u := range r.users {
			if u.GetID() == id {
				res = append(res, u)
			}
		}
	}
	return res, nil
}

type fakeProductRepo struct {
	products []*entity.Product
	err      error
}

func (r *fakeProductRepo) GetManyByIDs(_ context.Context, _ []uint64) ([]*entity.Product, error) {
	return r.products, r.err
}

type fakeEmailService struct {
	mu     sync.Mutex
	failTo map[string]bool
	sent   []*dep.Email
}

func (s *fakeEmailService) SendEmail(_ context.Context, email *dep.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, email)
	if s.failTo[email.To.Email] {
		return errors.New("smtp relay unavailable")
	}
	return nil
}

func (s *fakeEmailService) Close(_ context.Context) error {
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*entity.TrackingEvent
	// block, when set, holds every Append until closed
	block chan struct{}

	counts      []*entity.DayTypeCount
	since       uint64
	sinceUserID *uint64
}

func (r *fakeEventRepo) Append(ctx context.Context, evt *entity.TrackingEvent) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *fakeEventRepo) all() []*entity.TrackingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.TrackingEvent(nil), r.events...)
}

func (r *fakeEventRepo) GetManySince(_ context.Context, since uint64, userID *uint64) ([]*entity.TrackingEvent, error) {
	r.since = since
	r.sinceUserID = userID
	return r.all(), nil
}

func (r *fakeEventRepo) CountByDayAndType(_ context.Context, since uint64) ([]*entity.DayTypeCount, error) {
	r.since = since
	return r.counts, nil
}

func (r *fakeEventRepo) DeleteBefore(_ context.Context, _ uint64, _ int) (uint64, error) {
	return 0, nil
}

func (r *fakeEventRepo) Close(_ context.Context) error {
	return nil
}

package handler

import (
	"context"
	"engage/entity"
	"engage/pkg/goutil"
	"engage/repo"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMetricsDays  = 30
	DefaultSessionsDays = 7
	MaxReportDays       = 365
)

type ReportHandler interface {
	GetDailyMetrics(ctx context.Context, req *GetDailyMetricsRequest, res *GetDailyMetricsResponse) error
	GetSessions(ctx context.Context, req *GetSessionsRequest, res *GetSessionsResponse) error
	GetCampaigns(ctx context.Context, req *GetCampaignsRequest, res *GetCampaignsResponse) error
}

type reportHandler struct {
	notificationRepo repo.NotificationRepo
	eventRepo        repo.EventRepo
	userRepo         repo.UserRepo
	now              func() time.Time
}

func NewReportHandler(notificationRepo repo.NotificationRepo, eventRepo repo.EventRepo, userRepo repo.UserRepo) ReportHandler {
	return &reportHandler{
		notificationRepo: notificationRepo,
		eventRepo:        eventRepo,
		userRepo:         userRepo,
		now:              time.Now,
	}
}

func clampDays(days *int, def int) int {
	if days == nil {
		return def
	}
	return goutil.Clamp(*days, 1, MaxReportDays)
}

type GetDailyMetricsRequest struct {
	ContextInfo

	Days *int `json:"days,omitempty" schema:"days,omitempty"`
}

type GetDailyMetricsResponse struct {
	RangeDays int                       `json:"rangeDays"`
	Totals    entity.MetricCounts       `json:"totals"`
	ByDay     []*entity.DailyMetricsRow `json:"byDay"`
}

func (h *reportHandler) GetDailyMetrics(ctx context.Context, req *GetDailyMetricsRequest, res *GetDailyMetricsResponse) error {
	var (
		days  = clampDays(req.Days, DefaultMetricsDays)
		since = h.now().Add(-time.Duration(days) * 24 * time.Hour)

		sent   []*entity.DayCount
		events []*entity.DayTypeCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if sent, err = h.notificationRepo.CountSentByDay(gctx, uint64(since.Unix())); err != nil {
			log.Ctx(ctx).Error().Msgf("count sent by day failed: %v", err)
		}
		return err
	})
	g.Go(func() error {
		var err error
		if events, err = h.eventRepo.CountByDayAndType(gctx, uint64(since.UnixMilli())); err != nil {
			log.Ctx(ctx).Error().Msgf("count events by day failed: %v", err)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	res.RangeDays = days
	res.Totals, res.ByDay = MergeDailyMetrics(sent, events)

	return nil
}

// MergeDailyMetrics joins both group-by passes on the union of their days, sorted ascending.
// Totals are summed from the raw rows, not from the merged ones.
func MergeDailyMetrics(sent []*entity.DayCount, events []*entity.DayTypeCount) (entity.MetricCounts, []*entity.DailyMetricsRow) {
	var (
		totals entity.MetricCounts
		byDay  = make(map[string]*entity.DailyMetricsRow)
	)

	getRow := func(day string) *entity.DailyMetricsRow {
		row, ok := byDay[day]
		if !ok {
			row = &entity.DailyMetricsRow{Day: day}
			byDay[day] = row
		}
		return row
	}

	for _, s := range sent {
		totals.Sent += s.Count
		getRow(s.Day).Sent += s.Count
	}

	for _, e := range events {
		totals.AddEvents(e.Type, e.Count)
		getRow(e.Day).AddEvents(e.Type, e.Count)
	}

	rows := make([]*entity.DailyMetricsRow, 0, len(byDay))
	for _, row := range byDay {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return strings.Compare(rows[i].Day, rows[j].Day) < 0
	})

	return totals, rows
}

type GetSessionsRequest struct {
	ContextInfo

	Days   *int    `json:"days,omitempty" schema:"days,omitempty"`
	UserID *string `json:"userId,omitempty" schema:"userId,omitempty"`
}

// GetUserFilter returns nil when no filter was given, and false when it is malformed.
func (req *GetSessionsRequest) GetUserFilter() (*uint64, bool) {
	if req.UserID == nil || strings.TrimSpace(*req.UserID) == "" {
		return nil, true
	}
	userID, ok := goutil.ParseID(*req.UserID)
	if !ok {
		return nil, false
	}
	return &userID, true
}

type GetSessionsResponse struct {
	Days     int                      `json:"days"`
	Sessions []*entity.SessionSummary `json:"sessions"`
}

func (h *reportHandler) GetSessions(ctx context.Context, req *GetSessionsRequest, res *GetSessionsResponse) error {
	userID, ok := req.GetUserFilter()
	if !ok {
		return invalidRequest("malformed userId")
	}

	var (
		days  = clampDays(req.Days, DefaultSessionsDays)
		since = h.now().Add(-time.Duration(days) * 24 * time.Hour)
	)

	events, err := h.eventRepo.GetManySince(ctx, uint64(since.UnixMilli()), userID)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get events failed: %v", err)
		return err
	}

	sessions := ReconstructSessions(events)
	h.attachUsers(ctx, sessions)

	res.Days = days
	res.Sessions = sessions

	return nil
}

// attachUsers resolves each distinct user once. Unresolved users keep just their id.
func (h *reportHandler) attachUsers(ctx context.Context, sessions []*entity.SessionSummary) {
	if len(sessions) == 0 {
		return
	}

	userIDs := make([]uint64, 0)
	for _, s := range sessions {
		userIDs = append(userIDs, s.UserID)
	}

	users, err := h.userRepo.GetManyByIDs(ctx, goutil.UniqUint64(userIDs))
	if err != nil {
		log.Ctx(ctx).Warn().Msgf("get session users failed: %v", err)
		return
	}

	byID := make(map[uint64]*entity.User, len(users))
	for _, u := range users {
		byID[u.GetID()] = u
	}

	for _, s := range sessions {
		s.User = byID[s.UserID]
	}
}

type GetCampaignsRequest struct {
	ContextInfo
}

type GetCampaignsResponse struct {
	Campaigns []*entity.CampaignRollup `json:"campaigns"`
}

func (h *reportHandler) GetCampaigns(ctx context.Context, _ *GetCampaignsRequest, res *GetCampaignsResponse) error {
	campaigns, err := h.notificationRepo.GetCampaignRollups(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign rollups failed: %v", err)
		return err
	}

	res.Campaigns = campaigns

	return nil
}

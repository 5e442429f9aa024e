package handler

import (
	"context"
	"engage/config"
	"engage/entity"
	"engage/pkg/errutil"
	"engage/pkg/goutil"
	"engage/pkg/metric"
	"engage/repo"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	utmSource = "email"
	utmMedium = "notification"
)

type TrackingHandler interface {
	// RecordOpen and RecordClick never fail. Store errors are logged and swallowed.
	RecordOpen(ctx context.Context, req *RecordOpenRequest, res *RecordOpenResponse) error
	RecordClick(ctx context.Context, req *RecordClickRequest, res *RecordClickResponse) error
	LogSiteEvent(ctx context.Context, req *LogSiteEventRequest, res *LogSiteEventResponse) error
}

type trackingHandler struct {
	cfg              config.Tracking
	notificationRepo repo.NotificationRepo
	eventWriter      repo.EventWriter
}

func NewTrackingHandler(cfg config.Tracking, notificationRepo repo.NotificationRepo, eventWriter repo.EventWriter) TrackingHandler {
	return &trackingHandler{
		cfg:              cfg,
		notificationRepo: notificationRepo,
		eventWriter:      eventWriter,
	}
}

type RecordOpenRequest struct {
	ContextInfo

	NotificationID *string `schema:"nid,omitempty"`
}

func (req *RecordOpenRequest) GetNotificationID() string {
	if req != nil && req.NotificationID != nil {
		return strings.TrimSpace(*req.NotificationID)
	}
	return ""
}

type RecordOpenResponse struct{}

func (h *trackingHandler) RecordOpen(ctx context.Context, req *RecordOpenRequest, _ *RecordOpenResponse) error {
	nid := req.GetNotificationID()
	if !entity.IsValidID(nid) {
		log.Ctx(ctx).Debug().Msgf("skip open tracking, malformed nid: %q", nid)
		return nil
	}

	h.runBounded(ctx, "record open", func(ctx context.Context) error {
		evt := entity.NewTrackingEvent(entity.EventTypeEmailOpen, req.GetRequestMeta())
		evt.Ref = goutil.String(nid)

		n, err := h.notificationRepo.IncrOpen(ctx, nid, uint64(time.Now().Unix()))
		h.attribute(ctx, evt, n, err)

		return h.appendEvent(ctx, evt)
	})

	return nil
}

type RecordClickRequest struct {
	ContextInfo

	NotificationID *string `schema:"nid,omitempty"`
	URL            *string `schema:"url,omitempty"`
}

func (req *RecordClickRequest) GetNotificationID() string {
	if req != nil && req.NotificationID != nil {
		return strings.TrimSpace(*req.NotificationID)
	}
	return ""
}

func (req *RecordClickRequest) GetURL() string {
	if req != nil && req.URL != nil {
		return strings.TrimSpace(*req.URL)
	}
	return ""
}

type RecordClickResponse struct {
	RedirectURL string `json:"redirect_url"`
}

func (h *trackingHandler) RecordClick(ctx context.Context, req *RecordClickRequest, res *RecordClickResponse) error {
	nid := req.GetNotificationID()
	if !entity.IsValidID(nid) {
		log.Ctx(ctx).Debug().Msgf("skip click tracking, malformed nid: %q", nid)
		nid = ""
	}

	res.RedirectURL = h.redirectTarget(ctx, req.GetURL(), nid)

	if nid == "" {
		return nil
	}

	h.runBounded(ctx, "record click", func(ctx context.Context) error {
		evt := entity.NewTrackingEvent(entity.EventTypeEmailClick, req.GetRequestMeta())
		evt.Ref = goutil.String(nid)
		evt.URL = goutil.String(res.RedirectURL)

		n, err := h.notificationRepo.IncrClick(ctx, nid, uint64(time.Now().Unix()))
		h.attribute(ctx, evt, n, err)

		return h.appendEvent(ctx, evt)
	})

	return nil
}

// attribute links evt to n when the counter update found it.
func (h *trackingHandler) attribute(ctx context.Context, evt *entity.TrackingEvent, n *entity.Notification, err error) {
	if err != nil {
		if errutil.IsNotFound(err) {
			log.Ctx(ctx).Info().Msgf("tracked notification not found, nid: %s", evt.GetRef())
		} else {
			log.Ctx(ctx).Warn().Msgf("increment %s counter failed: %v, nid: %s", evt.Type, err, evt.GetRef())
		}
		return
	}

	evt.NotificationID = n.ID
	evt.UserID = n.RecipientID
}

// redirectTarget resolves dest, or the default site URL, and adds UTM and nid
// parameters that are not already present. Anything unusable falls back to the site.
func (h *trackingHandler) redirectTarget(ctx context.Context, dest, nid string) string {
	site := h.cfg.DefaultSiteURL
	if dest == "" {
		dest = site
	}

	target, err := h.enrich(dest, nid)
	if err != nil {
		log.Ctx(ctx).Info().Msgf("unusable click url, fall back to site: %v, url: %q", err, dest)

		if target, err = h.enrich(site, nid); err != nil {
			return site
		}
	}

	return target
}

func (h *trackingHandler) enrich(dest, nid string) (string, error) {
	base, err := url.Parse(h.cfg.DefaultSiteURL)
	if err != nil {
		return "", err
	}

	u, err := base.Parse(dest)
	if err != nil {
		return "", err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errUnsupportedScheme
	}
	if u.Host == "" {
		return "", errMissingHost
	}

	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", err
	}

	params := [][2]string{
		{"utm_source", utmSource},
		{"utm_medium", utmMedium},
		{"utm_campaign", h.utmCampaign()},
	}
	if nid != "" {
		params = append(params, [2]string{"nid", nid})
	}

	for _, p := range params {
		if !q.Has(p[0]) {
			q.Set(p[0], p[1])
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (h *trackingHandler) utmCampaign() string {
	if h.cfg.UTMCampaign != "" {
		return h.cfg.UTMCampaign
	}
	return config.DefaultUTMCampaign
}

// runBounded waits at most WriteTimeoutMs for fn. A write that outlives the wait
// keeps running detached from the request until BackgroundTimeoutMs.
func (h *trackingHandler) runBounded(ctx context.Context, op string, fn func(ctx context.Context) error) {
	var (
		done        = make(chan struct{})
		bgCtx, stop = context.WithTimeout(context.WithoutCancel(ctx), h.backgroundTimeout())
	)

	go func() {
		defer close(done)
		defer stop()

		if err := fn(bgCtx); err != nil {
			log.Ctx(bgCtx).Warn().Msgf("%s failed: %v", op, err)
		}
	}()

	timer := time.NewTimer(h.writeTimeout())
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		metric.TrackingWriteTimeouts.Inc()
		log.Ctx(ctx).Warn().Msgf("%s still pending after %v, responding anyway", op, h.writeTimeout())
	}
}

func (h *trackingHandler) writeTimeout() time.Duration {
	if h.cfg.WriteTimeoutMs > 0 {
		return time.Duration(h.cfg.WriteTimeoutMs) * time.Millisecond
	}
	return 300 * time.Millisecond
}

func (h *trackingHandler) backgroundTimeout() time.Duration {
	if h.cfg.BackgroundTimeoutMs > 0 {
		return time.Duration(h.cfg.BackgroundTimeoutMs) * time.Millisecond
	}
	return 5 * time.Second
}

func (h *trackingHandler) appendEvent(ctx context.Context, evt *entity.TrackingEvent) error {
	if err := h.eventWriter.Append(ctx, evt); err != nil {
		return err
	}
	metric.TrackingEvents.WithLabelValues(string(evt.Type)).Inc()
	return nil
}

type LogSiteEventRequest struct {
	ContextInfo

	SessionID      *string                `json:"sessionId,omitempty" validate:"required,min=1,max=128"`
	Type           *string                `json:"type,omitempty" validate:"required,site_event"`
	Path           *string                `json:"path,omitempty" validate:"omitempty,max=2048"`
	URL            *string                `json:"url,omitempty" validate:"omitempty,max=2048"`
	NotificationID *string                `json:"notificationId,omitempty" validate:"omitempty,max=128"`
	Meta           map[string]interface{} `json:"meta,omitempty" schema:"-"`
}

func (req *LogSiteEventRequest) GetType() entity.EventType {
	if req != nil && req.Type != nil {
		return entity.EventType(*req.Type)
	}
	return ""
}

func (req *LogSiteEventRequest) GetNotificationID() string {
	if req != nil && req.NotificationID != nil {
		return strings.TrimSpace(*req.NotificationID)
	}
	return ""
}

func (req *LogSiteEventRequest) ToTrackingEvent() *entity.TrackingEvent {
	evt := entity.NewTrackingEvent(req.GetType(), req.GetRequestMeta())
	evt.UserID = goutil.Uint64(req.GetUserID())
	evt.SessionID = req.SessionID
	evt.Path = goutil.StringOrNil(goutil.StringOrEmpty(req.Path))
	evt.URL = goutil.StringOrNil(goutil.StringOrEmpty(req.URL))
	evt.Meta = req.Meta

	// the raw reference is kept even when it does not resolve
	if nid := req.GetNotificationID(); nid != "" {
		evt.Ref = goutil.String(nid)
		if entity.IsValidID(nid) {
			evt.NotificationID = goutil.String(nid)
		}
	}

	return evt
}

type LogSiteEventResponse struct{}

func (h *trackingHandler) LogSiteEvent(ctx context.Context, req *LogSiteEventRequest, _ *LogSiteEventResponse) error {
	if req.GetUserID() == 0 {
		return ErrUnauthorized
	}

	if req.SessionID != nil {
		req.SessionID = goutil.String(strings.TrimSpace(*req.SessionID))
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	evt := req.ToTrackingEvent()

	if evt.Type == entity.EventTypeClick && evt.NotificationID != nil {
		if _, err := h.notificationRepo.IncrClick(ctx, *evt.NotificationID, uint64(time.Now().Unix())); err != nil {
			if !errutil.IsNotFound(err) {
				log.Ctx(ctx).Error().Msgf("increment click counter failed: %v, nid: %s", err, *evt.NotificationID)
				return err
			}
			log.Ctx(ctx).Info().Msgf("clicked notification not found, nid: %s", *evt.NotificationID)
		}
	}

	if err := h.appendEvent(ctx, evt); err != nil {
		log.Ctx(ctx).Error().Msgf("append site event failed: %v, type: %s", err, evt.Type)
		return err
	}

	return nil
}

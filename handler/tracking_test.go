package handler

import (
	"context"
	"engage/config"
	"engage/entity"
	"engage/pkg/goutil"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSiteURL = "https://maison.test"

type trackingFixture struct {
	notificationRepo *fakeNotificationRepo
	eventRepo        *fakeEventRepo
	h                TrackingHandler
}

func newTrackingFixture(mods ...func(cfg *config.Tracking)) *trackingFixture {
	cfg := newTestConfig().Tracking
	for _, mod := range mods {
		mod(&cfg)
	}

	f := &trackingFixture{
		notificationRepo: newFakeNotificationRepo(),
		eventRepo:        new(fakeEventRepo),
	}
	f.h = NewTrackingHandler(cfg, f.notificationRepo, f.eventRepo)
	return f
}

func (f *trackingFixture) seed(recipientID uint64) *entity.Notification {
	n := newStoredNotification(recipientID)
	f.notificationRepo.add(n)
	return n
}

func TestRecordOpen(t *testing.T) {
	f := newTrackingFixture()
	n := f.seed(5)

	err := f.h.RecordOpen(context.Background(), &RecordOpenRequest{NotificationID: n.ID}, new(RecordOpenResponse))
	require.NoError(t, err)

	stored := f.notificationRepo.get(n.GetID())
	assert.Equal(t, uint64(1), stored.GetOpenCount())
	assert.NotNil(t, stored.LastOpenedAt)

	events := f.eventRepo.all()
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventTypeEmailOpen, events[0].Type)
	assert.Equal(t, n.GetID(), *events[0].NotificationID)
	assert.Equal(t, n.GetID(), events[0].GetRef())
	assert.Equal(t, uint64(5), events[0].GetUserID())
}

func TestRecordOpen_UnknownNotification(t *testing.T) {
	f := newTrackingFixture()
	nid := uuid.NewString()

	require.NoError(t, f.h.RecordOpen(context.Background(), &RecordOpenRequest{NotificationID: goutil.String(nid)}, new(RecordOpenResponse)))

	events := f.eventRepo.all()
	require.Len(t, events, 1)
	assert.Equal(t, nid, events[0].GetRef())
	assert.Nil(t, events[0].NotificationID)
	assert.Nil(t, events[0].UserID)
}

func TestRecordOpen_MalformedIDWritesNothing(t *testing.T) {
	for _, nid := range []*string{nil, goutil.String(""), goutil.String("12345"), goutil.String("<script>")} {
		f := newTrackingFixture()

		require.NoError(t, f.h.RecordOpen(context.Background(), &RecordOpenRequest{NotificationID: nid}, new(RecordOpenResponse)))
		assert.Empty(t, f.eventRepo.all())
	}
}

func TestRecordOpen_StoreFailureIsSwallowed(t *testing.T) {
	f := newTrackingFixture()
	f.notificationRepo.incrErr = errors.New("lock wait timeout")

	err := f.h.RecordOpen(context.Background(), &RecordOpenRequest{NotificationID: goutil.String(uuid.NewString())}, new(RecordOpenResponse))
	assert.NoError(t, err)
	assert.Len(t, f.eventRepo.all(), 1)
}

func TestRecordOpen_ConcurrentOpensAreAllCounted(t *testing.T) {
	f := newTrackingFixture()
	n := f.seed(1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.h.RecordOpen(context.Background(), &RecordOpenRequest{NotificationID: n.ID}, new(RecordOpenResponse))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), f.notificationRepo.get(n.GetID()).GetOpenCount())
	assert.Len(t, f.eventRepo.all(), 50)
}

func TestRecordOpen_SlowStoreDoesNotHoldResponse(t *testing.T) {
	f := newTrackingFixture(func(cfg *config.Tracking) {
		cfg.WriteTimeoutMs = 20
	})
	f.eventRepo.block = make(chan struct{})
	n := f.seed(1)

	start := time.Now()
	require.NoError(t, f.h.RecordOpen(context.Background(), &RecordOpenRequest{NotificationID: n.ID}, new(RecordOpenResponse)))
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, f.eventRepo.all())

	// the write finishes after the response
	close(f.eventRepo.block)
	assert.Eventually(t, func() bool {
		return len(f.eventRepo.all()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRecordClick_Redirect(t *testing.T) {
	nid := uuid.NewString()

	tests := []struct {
		name      string
		nid       string
		dest      string
		wantHost  string
		wantPath  string
		wantQuery map[string]string
		wantNoNid bool
	}{
		{
			name:     "absolute url keeps existing utm",
			nid:      nid,
			dest:     "https://shop.example.com/p/1?utm_source=ads&color=red",
			wantHost: "shop.example.com",
			wantPath: "/p/1",
			wantQuery: map[string]string{
				"utm_source":   "ads",
				"utm_medium":   utmMedium,
				"utm_campaign": config.DefaultUTMCampaign,
				"color":        "red",
				"nid":          nid,
			},
		},
		{
			name:     "existing nid is kept",
			nid:      nid,
			dest:     "https://maison.test/?nid=other",
			wantHost: "maison.test",
			wantPath: "/",
			wantQuery: map[string]string{
				"utm_source": utmSource,
				"nid":        "other",
			},
		},
		{
			name:     "relative url resolves against site",
			nid:      nid,
			dest:     "/products/42",
			wantHost: "maison.test",
			wantPath: "/products/42",
			wantQuery: map[string]string{
				"utm_source": utmSource,
				"nid":        nid,
			},
		},
		{
			name:     "empty url goes to site",
			nid:      nid,
			wantHost: "maison.test",
			wantQuery: map[string]string{
				"utm_medium": utmMedium,
				"nid":        nid,
			},
		},
		{
			name:     "script url falls back to site",
			nid:      nid,
			dest:     "javascript:alert(1)",
			wantHost: "maison.test",
			wantQuery: map[string]string{
				"utm_source": utmSource,
				"nid":        nid,
			},
		},
		{
			name:     "unsupported scheme falls back",
			nid:      nid,
			dest:     "ftp://files.example.com/a",
			wantHost: "maison.test",
			wantQuery: map[string]string{
				"utm_source": utmSource,
			},
		},
		{
			name:     "malformed nid is not forwarded",
			nid:      "not-a-uuid",
			dest:     "https://shop.example.com/",
			wantHost: "shop.example.com",
			wantPath: "/",
			wantQuery: map[string]string{
				"utm_source": utmSource,
			},
			wantNoNid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrackingFixture()

			res := new(RecordClickResponse)
			err := f.h.RecordClick(context.Background(), &RecordClickRequest{
				NotificationID: goutil.String(tt.nid),
				URL:            goutil.String(tt.dest),
			}, res)
			require.NoError(t, err)

			u, err := url.Parse(res.RedirectURL)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, u.Host)
			if tt.wantPath != "" {
				assert.Equal(t, tt.wantPath, u.Path)
			}
			for k, v := range tt.wantQuery {
				assert.Equal(t, v, u.Query().Get(k), k)
			}
			if tt.wantNoNid {
				assert.False(t, u.Query().Has("nid"))
				assert.Empty(t, f.eventRepo.all())
			}
		})
	}
}

func TestRecordClick_CountsAndRecordsDestination(t *testing.T) {
	f := newTrackingFixture()
	n := f.seed(3)

	res := new(RecordClickResponse)
	err := f.h.RecordClick(context.Background(), &RecordClickRequest{
		NotificationID: n.ID,
		URL:            goutil.String("/sale"),
	}, res)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), f.notificationRepo.get(n.GetID()).GetClickCount())

	events := f.eventRepo.all()
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventTypeEmailClick, events[0].Type)
	assert.Equal(t, res.RedirectURL, *events[0].URL)
	assert.Equal(t, uint64(3), events[0].GetUserID())
}

func TestOpenPixelHandler(t *testing.T) {
	f := newTrackingFixture()
	n := f.seed(1)

	for _, target := range []string{
		"/api/v1/notifications/t/o?nid=" + n.GetID(),
		"/api/v1/notifications/t/o?nid=garbage",
		"/api/v1/notifications/t/o",
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("User-Agent", "MailClient/1.0")

		NewOpenPixelHandler(f.h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
		assert.Equal(t, pixelGIF, rec.Body.Bytes())
	}

	assert.Equal(t, uint64(1), f.notificationRepo.get(n.GetID()).GetOpenCount())

	events := f.eventRepo.all()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].UserAgent)
	assert.Equal(t, "MailClient/1.0", *events[0].UserAgent)
}

func TestClickRedirectHandler(t *testing.T) {
	f := newTrackingFixture()
	n := f.seed(1)

	q := url.Values{}
	q.Set("nid", n.GetID())
	q.Set("url", "https://maison.test/products/9")

	rec := httptest.NewRecorder()
	NewClickRedirectHandler(f.h, testSiteURL).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/t/c?"+q.Encode(), nil))

	assert.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/products/9", loc.Path)
	assert.Equal(t, n.GetID(), loc.Query().Get("nid"))
	assert.Equal(t, uint64(1), f.notificationRepo.get(n.GetID()).GetClickCount())
}

func TestClickRedirectHandler_MalformedID(t *testing.T) {
	f := newTrackingFixture()

	rec := httptest.NewRecorder()
	NewClickRedirectHandler(f.h, testSiteURL).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/t/c?nid=%20oops", nil))

	assert.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "maison.test", loc.Host)
	assert.False(t, loc.Query().Has("nid"))
	assert.Empty(t, f.eventRepo.all())
}

type panickingTracker struct {
	TrackingHandler
}

func (panickingTracker) RecordOpen(context.Context, *RecordOpenRequest, *RecordOpenResponse) error {
	panic("boom")
}

func (panickingTracker) RecordClick(context.Context, *RecordClickRequest, *RecordClickResponse) error {
	panic("boom")
}

func TestTrackingHandlersSurvivePanics(t *testing.T) {
	rec := httptest.NewRecorder()
	NewOpenPixelHandler(panickingTracker{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t/o?nid=x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pixelGIF, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	NewClickRedirectHandler(panickingTracker{}, testSiteURL).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t/c?nid=x", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testSiteURL, rec.Header().Get("Location"))
}

func newSiteEventRequest(userID uint64, eventType string) *LogSiteEventRequest {
	return &LogSiteEventRequest{
		ContextInfo: asUser(userID),
		SessionID:   goutil.String("s-1"),
		Type:        goutil.String(eventType),
		Path:        goutil.String("/products/9"),
	}
}

func TestLogSiteEvent(t *testing.T) {
	f := newTrackingFixture()

	req := newSiteEventRequest(8, string(entity.EventTypeView))
	req.Meta = map[string]interface{}{"referrer": "bell"}

	require.NoError(t, f.h.LogSiteEvent(context.Background(), req, new(LogSiteEventResponse)))

	events := f.eventRepo.all()
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventTypeView, events[0].Type)
	assert.Equal(t, uint64(8), events[0].GetUserID())
	assert.Equal(t, "s-1", events[0].GetSessionID())
	assert.Equal(t, "/products/9", events[0].GetPath())
	assert.Equal(t, "bell", events[0].Meta["referrer"])
	assert.False(t, events[0].FromNotification())
}

func TestLogSiteEvent_ClickIncrementsNotification(t *testing.T) {
	f := newTrackingFixture()
	n := f.seed(8)

	req := newSiteEventRequest(8, string(entity.EventTypeClick))
	req.NotificationID = n.ID

	require.NoError(t, f.h.LogSiteEvent(context.Background(), req, new(LogSiteEventResponse)))

	assert.Equal(t, uint64(1), f.notificationRepo.get(n.GetID()).GetClickCount())

	events := f.eventRepo.all()
	require.Len(t, events, 1)
	assert.Equal(t, n.GetID(), *events[0].NotificationID)
	assert.True(t, events[0].FromNotification())
}

func TestLogSiteEvent_ViewDoesNotIncrement(t *testing.T) {
	f := newTrackingFixture()
	n := f.seed(8)

	req := newSiteEventRequest(8, string(entity.EventTypeView))
	req.NotificationID = n.ID

	require.NoError(t, f.h.LogSiteEvent(context.Background(), req, new(LogSiteEventResponse)))
	assert.Equal(t, uint64(0), f.notificationRepo.get(n.GetID()).GetClickCount())
}

func TestLogSiteEvent_UnresolvedReferenceIsKept(t *testing.T) {
	f := newTrackingFixture()

	req := newSiteEventRequest(8, string(entity.EventTypeClick))
	req.NotificationID = goutil.String("bell-item-3")

	require.NoError(t, f.h.LogSiteEvent(context.Background(), req, new(LogSiteEventResponse)))

	events := f.eventRepo.all()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].NotificationID)
	assert.Equal(t, "bell-item-3", events[0].GetRef())
	assert.True(t, events[0].FromNotification())
}

func TestLogSiteEvent_ClickOnUnknownNotification(t *testing.T) {
	f := newTrackingFixture()

	req := newSiteEventRequest(8, string(entity.EventTypeClick))
	req.NotificationID = goutil.String(uuid.NewString())

	require.NoError(t, f.h.LogSiteEvent(context.Background(), req, new(LogSiteEventResponse)))
	assert.Len(t, f.eventRepo.all(), 1)
}

func TestLogSiteEvent_StoreFailure(t *testing.T) {
	f := newTrackingFixture()
	f.notificationRepo.incrErr = errors.New("connection reset")

	req := newSiteEventRequest(8, string(entity.EventTypeClick))
	req.NotificationID = goutil.String(uuid.NewString())

	err := f.h.LogSiteEvent(context.Background(), req, new(LogSiteEventResponse))
	assert.Equal(t, http.StatusInternalServerError, statusOf(err))
	assert.Empty(t, f.eventRepo.all())
}

func TestLogSiteEvent_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		req      *LogSiteEventRequest
		wantCode int
		wantMsg  string
	}{
		{
			name:     "anonymous",
			req:      newSiteEventRequest(0, string(entity.EventTypeView)),
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "missing session",
			req: &LogSiteEventRequest{
				ContextInfo: asUser(1),
				Type:        goutil.String(string(entity.EventTypeView)),
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "sessionId",
		},
		{
			name: "blank session",
			req: &LogSiteEventRequest{
				ContextInfo: asUser(1),
				SessionID:   goutil.String("   "),
				Type:        goutil.String(string(entity.EventTypeView)),
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "sessionId",
		},
		{
			name:     "email event type from the site",
			req:      newSiteEventRequest(1, string(entity.EventTypeEmailOpen)),
			wantCode: http.StatusBadRequest,
			wantMsg:  "type failed on site_event",
		},
		{
			name:     "unknown type",
			req:      newSiteEventRequest(1, "purchase"),
			wantCode: http.StatusBadRequest,
			wantMsg:  "type failed on site_event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrackingFixture()

			err := f.h.LogSiteEvent(context.Background(), tt.req, new(LogSiteEventResponse))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, statusOf(err))
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Empty(t, f.eventRepo.all())
		})
	}
}

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

var (
	NotificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Total number of per-recipient notification rows created.",
	})

	NotificationEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_emails_total",
		Help: "Outbound notification emails by result.",
	}, []string{"result"})

	TrackingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_events_total",
		Help: "Tracking events accepted, by event type.",
	}, []string{"type"})

	TrackingEventsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_events_persisted_total",
		Help: "Queued tracking events written to the store by the consumer job.",
	})

	TrackingWriteTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_write_timeouts_total",
		Help: "Tracking responses served before their store writes finished.",
	})

	HttpRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_latency_seconds",
		Help:    "Latency of HTTP requests by route template and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

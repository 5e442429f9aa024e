package config

const (
	PathHealthCheck = "/"

	// recipient
	PathGetNotifications   = "/notifications"
	PathGetUnreadCount     = "/notifications/unread_count"
	PathMarkRead           = "/notifications/read"
	PathMarkAllRead        = "/notifications/read_all"
	PathDeleteNotification = "/notifications/delete"
	PathLogSiteEvent       = "/notifications/track"

	// public tracking, embedded in emails
	PathTrackOpen  = "/notifications/t/o"
	PathTrackClick = "/notifications/t/c"

	// admin
	PathSendNotification = "/notifications/admin/send"
	PathGetDailyMetrics  = "/notifications/admin/stats"
	PathGetSessions      = "/notifications/admin/sessions"
	PathGetCampaigns     = "/notifications/admin/campaigns"

	PathMetrics = "/metrics"
)

const (
	DefaultPort        = 9090
	LogLevelDebug      = "DEBUG"
	DefaultSenderName  = "Maison"
	DefaultUTMCampaign = "notification"
)

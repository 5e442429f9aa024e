package main

import (
	"context"
	"engage/config"
	"engage/dep"
	"engage/handler"
	"engage/middleware"
	"engage/pkg/logutil"
	"engage/pkg/mq"
	"engage/pkg/router"
	"engage/pkg/service"
	"engage/repo"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type server struct {
	ctx context.Context
	opt *config.Option
	cfg *config.Config

	httpServer *http.Server

	baseRepo  repo.BaseRepo
	baseCache repo.BaseCache
	producer  *mq.Producer

	notificationRepo repo.NotificationRepo
	eventRepo        repo.EventRepo
	userRepo         repo.UserRepo
	productRepo      repo.ProductRepo

	emailService dep.EmailService

	// api handlers
	notificationHandler handler.NotificationHandler
	trackingHandler     handler.TrackingHandler
	reportHandler       handler.ReportHandler
}

func main() {
	s := new(server)
	if err := service.Run(s); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func (s *server) Init() error {
	opt := config.NewOptions()

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		opt.LogLevel = logLevel
	}

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		opt.ConfigPath = configPath
	}

	if serverPort := os.Getenv("PORT"); serverPort != "" {
		if port, err := strconv.Atoi(serverPort); err == nil {
			opt.Port = port
		}
	}

	s.opt = opt

	return nil
}

func (s *server) Start() error {
	var err error

	// ====== init logger ===== //

	s.ctx = logutil.InitZeroLog(context.Background(), s.opt.LogLevel)

	// ===== init config ===== //

	s.cfg = config.NewConfig()
	if err = s.cfg.Load(s.ctx, s.opt.ConfigPath); err != nil {
		log.Ctx(s.ctx).Error().Msgf("load config failed, err: %v", err)
		return err
	}

	if s.cfg.Auth.JWTSecret == "" {
		err = errors.New("empty jwt secret")
		log.Ctx(s.ctx).Error().Msgf("invalid auth config, err: %v", err)
		return err
	}

	// ===== init repos ===== //

	// base repo
	s.baseRepo, err = repo.NewBaseRepo(s.ctx, s.cfg.MetadataDB)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init base repo failed, err: %v", err)
		return err
	}
	defer func() {
		if err != nil && s.baseRepo != nil {
			if err := s.baseRepo.Close(s.ctx); err != nil {
				log.Ctx(s.ctx).Error().Msgf("close base repo failed, err: %v", err)
				return
			}
		}
	}()

	// user cache
	s.baseCache = repo.NewBaseCache(s.ctx, time.Duration(s.cfg.UserCache.TTLSeconds)*time.Second)

	s.notificationRepo = repo.NewNotificationRepo(s.ctx, s.baseRepo)
	s.eventRepo = repo.NewEventRepo(s.ctx, s.baseRepo)
	s.userRepo = repo.NewUserRepo(s.ctx, s.baseRepo, s.baseCache)
	s.productRepo = repo.NewProductRepo(s.ctx, s.baseRepo)

	// ===== init deps ===== //

	s.emailService, err = dep.NewEmailService(s.ctx, s.cfg.Brevo, s.cfg.Dispatch.MaxRetries)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init email service failed, err: %v", err)
		return err
	}

	// tracking events go to the queue when one is configured
	var eventWriter repo.EventWriter = s.eventRepo
	if s.cfg.EventQueue.Enabled() {
		s.producer, err = mq.NewProducer(s.ctx, s.cfg.EventQueue.Producer)
		if err != nil {
			log.Ctx(s.ctx).Error().Msgf("init event producer failed, err: %v", err)
			return err
		}
		eventWriter = repo.NewQueuedEventWriter(s.producer)
		log.Ctx(s.ctx).Info().Msgf("tracking events are queued, brokers: %v", s.cfg.EventQueue.Producer.Brokers)
	}

	// ===== init handlers ===== //

	s.notificationHandler = handler.NewNotificationHandler(s.cfg, s.notificationRepo, s.userRepo, s.productRepo, s.emailService)
	s.trackingHandler = handler.NewTrackingHandler(s.cfg.Tracking, s.notificationRepo, eventWriter)
	s.reportHandler = handler.NewReportHandler(s.notificationRepo, s.eventRepo, s.userRepo)

	// ===== start server ===== //

	addr := fmt.Sprintf(":%d", s.opt.Port)

	s.httpServer = &http.Server{
		BaseContext: func(_ net.Listener) context.Context {
			return s.ctx
		},
		Addr:              addr,
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("starting HTTP server at %s", addr)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fail to start HTTP server, err: %v", err)
		}
	}()

	return nil
}

func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("shutdown HTTP server failed, err: %v", err)
		}
	}

	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close event producer failed, err: %v", err)
		}
	}

	if s.emailService != nil {
		if err := s.emailService.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close email service failed, err: %v", err)
		}
	}

	if s.baseCache != nil {
		if err := s.baseCache.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close base cache failed, err: %v", err)
		}
	}

	if s.baseRepo != nil {
		if err := s.baseRepo.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close base repo failed, err: %v", err)
			return err
		}
	}

	return nil
}

type HealthCheckRequest struct{}

type HealthCheckResponse struct{}

func (s *server) registerRoutes() http.Handler {
	var (
		r = router.NewHttpRouter()

		authMW  = router.NewAuthMiddleware(s.cfg.Auth.JWTSecret, s.cfg.Auth.AdminRole)
		adminMW = router.NewAdminMiddleware()
	)

	r.Use(middleware.Log)

	// health_check
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathHealthCheck,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(HealthCheckRequest),
			Res: new(HealthCheckResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return nil
			},
		},
	})

	// ===== recipient ===== //

	// get_notifications
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetNotifications,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetNotificationsRequest),
			Res: new(handler.GetNotificationsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.notificationHandler.GetNotifications(ctx, req.(*handler.GetNotificationsRequest), res.(*handler.GetNotificationsResponse))
			},
		},
		Middlewares: []router.Middleware{authMW},
	})

	// get_unread_count
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetUnreadCount,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetUnreadCountRequest),
			Res: new(handler.GetUnreadCountResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.notificationHandler.GetUnreadCount(ctx, req.(*handler.GetUnreadCountRequest), res.(*handler.GetUnreadCountResponse))
			},
		},
		Middlewares: []router.Middleware{authMW},
	})

	// mark_read
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathMarkRead,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.MarkReadRequest),
			Res: new(handler.MarkReadResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.notificationHandler.MarkRead(ctx, req.(*handler.MarkReadRequest), res.(*handler.MarkReadResponse))
			},
		},
		Middlewares: []router.Middleware{authMW},
	})

	// mark_all_read
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathMarkAllRead,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.MarkAllReadRequest),
			Res: new(handler.MarkAllReadResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.notificationHandler.MarkAllRead(ctx, req.(*handler.MarkAllReadRequest), res.(*handler.MarkAllReadResponse))
			},
		},
		Middlewares: []router.Middleware{authMW},
	})

	// delete_notification
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathDeleteNotification,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.DeleteNotificationRequest),
			Res: new(handler.DeleteNotificationResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.notificationHandler.DeleteNotification(ctx, req.(*handler.DeleteNotificationRequest), res.(*handler.DeleteNotificationResponse))
			},
		},
		Middlewares: []router.Middleware{authMW},
	})

	// log_site_event
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathLogSiteEvent,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.LogSiteEventRequest),
			Res: new(handler.LogSiteEventResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.trackingHandler.LogSiteEvent(ctx, req.(*handler.LogSiteEventRequest), res.(*handler.LogSiteEventResponse))
			},
		},
		Middlewares: []router.Middleware{authMW},
	})

	// ===== public tracking ===== //

	// track_open
	r.RegisterRawRoute(&router.RawRoute{
		Path:    config.PathTrackOpen,
		Method:  http.MethodGet,
		Handler: handler.NewOpenPixelHandler(s.trackingHandler),
	})

	// track_click
	r.RegisterRawRoute(&router.RawRoute{
		Path:    config.PathTrackClick,
		Method:  http.MethodGet,
		Handler: handler.NewClickRedirectHandler(s.trackingHandler, s.cfg.Tracking.DefaultSiteURL),
	})

	// ===== admin ===== //

	// send_notification
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathSendNotification,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.SendNotificationRequest),
			Res: new(handler.SendNotificationResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.notificationHandler.SendNotification(ctx, req.(*handler.SendNotificationRequest), res.(*handler.SendNotificationResponse))
			},
		},
		Middlewares: []router.Middleware{authMW, adminMW},
	})

	// get_daily_metrics
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetDailyMetrics,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetDailyMetricsRequest),
			Res: new(handler.GetDailyMetricsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.reportHandler.GetDailyMetrics(ctx, req.(*handler.GetDailyMetricsRequest), res.(*handler.GetDailyMetricsResponse))
			},
		},
		Middlewares: []router.Middleware{authMW, adminMW},
	})

	// get_sessions
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetSessions,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetSessionsRequest),
			Res: new(handler.GetSessionsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.reportHandler.GetSessions(ctx, req.(*handler.GetSessionsRequest), res.(*handler.GetSessionsResponse))
			},
		},
		Middlewares: []router.Middleware{authMW, adminMW},
	})

	// get_campaigns
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetCampaigns,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetCampaignsRequest),
			Res: new(handler.GetCampaignsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.reportHandler.GetCampaigns(ctx, req.(*handler.GetCampaignsRequest), res.(*handler.GetCampaignsResponse))
			},
		},
		Middlewares: []router.Middleware{authMW, adminMW},
	})

	// metrics
	r.Methods(http.MethodGet).Path(config.PathMetrics).Handler(promhttp.Handler())

	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}

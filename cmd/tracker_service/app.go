package trackerservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"geotrack/internal/general/config"
	"geotrack/internal/general/jwt"
	"geotrack/internal/general/logger"
	"geotrack/internal/general/metrics"
	"geotrack/internal/general/postgres"
	"geotrack/internal/general/rabbitmq"
	"geotrack/internal/general/websocket"
	"geotrack/internal/location"
	"geotrack/internal/notification"
	"geotrack/internal/ports"
	"geotrack/internal/software/tracking/bridge"
	"geotrack/internal/software/tracking/handler"
	"geotrack/internal/software/tracking/service"

	"golang.org/x/sync/errgroup"
)

func Run(ctx context.Context, configPath string, maxConcurrent int) error {
	// set up a new logger for the tracker service with a static request ID for startup logs
	logger := logger.New("tracker-service")
	defer func() { _ = logger.Sync() }()
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load configuration
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": configPath})
		return err
	}

	subCfg, err := cfg.Subscription()
	if err != nil {
		logger.Error(ctx, "config_invalid", "Invalid tracking configuration", err, nil)
		return err
	}

	m := metrics.New()

	// location provider
	route := location.SinglePointRoute(cfg.Location.StartLatitude, cfg.Location.StartLongitude)
	if cfg.Location.RouteFile != "" {
		if route, err = location.LoadRoute(cfg.Location.RouteFile); err != nil {
			logger.Error(ctx, "route_load_failed", "Failed to load route file", err, map[string]any{"path": cfg.Location.RouteFile})
			return err
		}
	}
	provider := location.NewSimulatedProvider(route, cfg.Location.PermissionGranted, logger)
	subscriber := location.NewSubscriber(provider, logger, m)

	// notification backend
	var backend ports.NotificationBackend
	switch cfg.Notification.Backend {
	case "dbus":
		dbusBackend := notification.NewDBusBackend(cfg.Notification.AppName)
		defer func() { _ = dbusBackend.Shutdown() }()
		backend = dbusBackend
	default:
		backend = notification.NewLogBackend(logger)
	}
	presenter := notification.NewPresenter(backend, logger)

	importance, err := notification.ParseImportance(cfg.Notification.Importance)
	if err != nil {
		return fmt.Errorf("notification.importance: %w", err)
	}

	// optional session audit in Postgres
	var recorder ports.SessionRecorder
	if cfg.Database.Enabled {
		pool, err := postgres.NewPool(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
			return err
		}
		defer pool.Close()

		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			logger.Error(ctx, "db_schema_failed", "Failed to ensure audit schema", err, nil)
			return err
		}

		sessionRecorder := postgres.NewSessionRecorder(postgres.NewUnitOfWork(pool), postgres.NewTrackingSessionRepo(), logger)
		if _, err := sessionRecorder.CloseAbandoned(ctx); err != nil {
			logger.Error(ctx, "abandoned_sessions_failed", "Failed to close abandoned sessions", err, nil)
		}
		recorder = sessionRecorder
	}

	// optional RabbitMQ: status events and the RPC command channel
	var (
		rmq    *rabbitmq.Client
		status ports.StatusPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()
		status = rabbitmq.NewStatusPublisher(rabbitmq.NewMQPublisher(rmq), logger)
	}

	// lifecycle controller
	opts := service.Options{
		Category: notification.Category{
			ID:          cfg.Notification.CategoryID,
			DisplayName: cfg.Notification.CategoryName,
			Importance:  importance,
		},
		Message: notification.Message{
			Title: cfg.Notification.Title,
			Body:  cfg.Notification.Body,
			Icon:  cfg.Notification.Icon,
		},
		Subscription: subCfg,
		QueueSize:    cfg.Samples.QueueSize,
	}
	controller := service.NewController(logger, m, presenter, subscriber, service.NewLoggingSink(logger), recorder, status, opts)
	if err := controller.OnCreate(ctx); err != nil {
		return err
	}

	// command bridge and its transports
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)
	b := bridge.New(controller, logger, m)
	ws := websocket.NewWebSocket(logger, jwtManager, b)

	mux := http.NewServeMux()
	httpHandler := handler.NewTrackingHTTPHandler(b, controller, logger, jwtManager, ws, m)
	httpHandler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.TrackerServicePort), // listen on the specified port
		Handler:           withConcurrencyLimit(maxConcurrent, mux),            // apply the concurrency limiter to HTTP handler
		ReadHeaderTimeout: 5 * time.Second,                                     // time to read headers
		ReadTimeout:       10 * time.Second,                                    // time to read full request body
		WriteTimeout:      15 * time.Second,                                    // full response write timeout
		IdleTimeout:       60 * time.Second,                                    // keep-alive window
		BaseContext:       func(net.Listener) context.Context { return ctx },   // pass base ctx to all handlers
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Tracker Service started on port %d", cfg.Services.TrackerServicePort),
		map[string]any{
			"port":           cfg.Services.TrackerServicePort,
			"max_concurrent": maxConcurrent,
			"provider":       provider.Name(),
			"notifications":  cfg.Notification.Backend,
			"audit":          cfg.Database.Enabled,
			"amqp":           cfg.RabbitMQ.Enabled,
		},
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Services.TrackerServicePort})
			return err
		}
		return nil
	})

	if rmq != nil {
		consumer := handler.NewCommandConsumer(rmq, b, logger, cfg.RabbitMQ.Prefetch)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	// teardown: release tracking resources before closing transports
	g.Go(func() error {
		<-gctx.Done()
		controller.OnDestroy(ctx)

		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		return nil
	})

	err = g.Wait()
	logger.Info(context.WithoutCancel(ctx), "service_stopped", "Tracker Service stopped", nil)
	return err
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}

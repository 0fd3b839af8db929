package locationservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"marketplace/internal/general/config"
	"marketplace/internal/general/jwt"
	"marketplace/internal/general/logger"
	"marketplace/internal/general/rabbitmq"
	"marketplace/internal/general/redisbridge"
	"marketplace/internal/ports"
	"marketplace/internal/software/location/channel"
	"marketplace/internal/software/location/handler"
	"marketplace/internal/software/location/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// Run starts the location service and blocks until ctx is cancelled or the server fails.
func Run(ctx context.Context, cfgPath string, maxConcurrent int) error {
	logger := logger.New("location-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": cfgPath})
		return err
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		logger.Warn(ctx, "log_level_invalid", "Unknown log level, keeping info", map[string]any{"level": cfg.Log.Level})
	}

	// user directory
	dir, err := openDirectory(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "directory_open_failed", "Failed to open user directory", err,
			map[string]any{"driver": cfg.Directory.Driver})
		return err
	}
	defer dir.close()

	if err := seedUsers(ctx, dir.users, cfg.Directory.Seed, logger); err != nil {
		logger.Error(ctx, "directory_seed_failed", "Failed to seed users", err, nil)
		return err
	}

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.AccessTTL)

	mgr := channel.NewManager(logger, dir.users, channel.WithIdentityBinding(cfg.WebSocket.BindIdentity))

	// optional RabbitMQ feed; a nil publisher disables sharing notifications
	var pub ports.MessagePublisher
	if cfg.RabbitMQ.Enabled {
		rmq, err := rabbitmq.Dial(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()

		mqPub := rabbitmq.NewPublisher(rmq)
		pub = mqPub
		mgr.AddPublisher(service.NewLocationFeed(mqPub, logger))
	}

	// optional cross-instance relay
	if cfg.Redis.Enabled {
		bridge := redisbridge.New(cfg, logger)
		if err := bridge.Start(mgr); err != nil {
			// local fan-out still works; only peer instances miss updates
			logger.Error(ctx, "redis_bridge_failed", "Failed to start Redis bridge, running single-instance", err,
				map[string]any{"addr": cfg.Redis.Addr})
			_ = bridge.Stop()
		} else {
			defer func() { _ = bridge.Stop() }()
			mgr.AddPublisher(bridge)
		}
	}

	svc := service.NewSharingService(logger, dir.uow, dir.users, pub)

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	httpHandler := handler.NewLocationHTTPHandler(svc, logger, jwtManager, mgr, handler.Options{
		DevTokens:      cfg.JWT.DevTokens,
		BindIdentity:   cfg.WebSocket.BindIdentity,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
	})
	httpHandler.RegisterRoutes(router, concurrencyLimit(maxConcurrent))

	port := cfg.Services.LocationServicePort
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started", fmt.Sprintf("Location Service started on port %d", port), map[string]any{
		"port":           port,
		"max_concurrent": maxConcurrent,
		"directory":      cfg.Directory.Driver,
		"rabbitmq":       cfg.RabbitMQ.Enabled,
		"redis":          cfg.Redis.Enabled,
		"bind_identity":  cfg.WebSocket.BindIdentity,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// hijacked websocket connections are not tracked by Shutdown
		if err := httpHandler.Websocket().CloseAll(shCtx); err != nil {
			logger.Error(ctx, "ws_shutdown_failed", "Failed to close channel sessions", err, nil)
		}
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		logger.Info(ctx, "service_stopped", "Location Service stopped", nil)
		return nil

	case err := <-errCh:
		if err != nil {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": port})
		}
		return err
	}
}

// concurrencyLimit bounds in-flight REST requests with a semaphore.
func concurrencyLimit(n int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		sem := make(chan struct{}, n)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
				next.ServeHTTP(w, r)
			case <-r.Context().Done():
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			}
		})
	}
}

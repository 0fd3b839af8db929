package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marketplace/internal/domain/user"
	"marketplace/internal/general/jwt"
	"marketplace/internal/general/logger"
	"marketplace/internal/general/websocket"
	"marketplace/internal/ports"
	"marketplace/internal/software/location/channel"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const restTimeout = 15 * time.Second

// LocationHTTPHandler exposes the sharing toggle, seller lookup, health and
// the realtime location channel.
type LocationHTTPHandler struct {
	svc       ports.SharingService
	logger    *logger.Logger
	auth      *jwt.Manager
	channel   *channel.Manager
	websocket *websocket.Server
	devTokens bool
}

// Options selects optional routes and channel behaviour.
type Options struct {
	DevTokens      bool
	BindIdentity   bool
	SendBuffer     int
	AllowedOrigins []string
}

// NewLocationHTTPHandler wires the handler and the websocket server around mgr.
func NewLocationHTTPHandler(
	svc ports.SharingService,
	logger *logger.Logger,
	auth *jwt.Manager,
	mgr *channel.Manager,
	opts Options,
) *LocationHTTPHandler {
	handler := &LocationHTTPHandler{
		svc:       svc,
		logger:    logger,
		auth:      auth,
		channel:   mgr,
		devTokens: opts.DevTokens,
	}

	wsOpts := websocket.Options{
		SendBuffer:     opts.SendBuffer,
		AllowedOrigins: opts.AllowedOrigins,
	}
	if opts.BindIdentity {
		wsOpts.Identify = auth.IdentityFromUpgrade
	}
	handler.websocket = websocket.NewServer(channelAdapter{mgr}, logger, wsOpts)
	return handler
}

// Websocket returns the server that owns the live connections (for shutdown).
func (handler *LocationHTTPHandler) Websocket() *websocket.Server {
	return handler.websocket
}

// RegisterRoutes mounts every endpoint. rest wraps the request/response routes only;
// the websocket route is long-lived and stays outside it.
func (handler *LocationHTTPHandler) RegisterRoutes(r chi.Router, rest ...func(http.Handler) http.Handler) {
	r.Get("/ws/location", handler.websocket.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(rest...)
		r.Use(middleware.Timeout(restTimeout))

		r.Get("/health", handler.handleHealth)
		r.Get("/location/sellers/{user_id}", handler.handleSellerLocation)

		r.Group(func(r chi.Router) {
			r.Use(handler.auth.AuthMiddleware(user.RoleSeller))
			r.Post("/location/activate", handler.handleActivate)
			r.Post("/location/deactivate", handler.handleDeactivate)
		})

		if handler.devTokens {
			r.Post("/tokens", handler.handleCreateToken)
		}
	})
}

// channelAdapter lets the manager consume websocket sessions.
type channelAdapter struct {
	mgr *channel.Manager
}

func (a channelAdapter) OnConnect(s *websocket.Session)    { a.mgr.OnConnect(s) }
func (a channelAdapter) OnDisconnect(s *websocket.Session) { a.mgr.OnDisconnect(s) }

func (a channelAdapter) OnMessage(ctx context.Context, s *websocket.Session, event string, data json.RawMessage) {
	a.mgr.Dispatch(ctx, s, event, data)
}

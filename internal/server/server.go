package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/liberchat/relay/internal/config"
	"github.com/liberchat/relay/internal/hub"
	"github.com/liberchat/relay/internal/logging"
	"github.com/liberchat/relay/internal/pubsub"
	ws "github.com/liberchat/relay/internal/websocket"
)

// Server wires the relay together: configuration, the in-memory bus, the hub
// and the websocket bridge behind an echo HTTP server.
type Server struct {
	E      *echo.Echo
	Cfg    *config.Config
	Bus    *pubsub.WatermillBridge
	Hub    *hub.Hub
	Bridge *ws.Bridge
}

// New creates a fully assembled Server. The hub and bridge subscriptions are
// active when New returns; their run loops are already started.
func New() *Server {
	logging.New()
	cfg := config.New()

	bus := pubsub.NewWatermillBridge()

	h, err := hub.New(bus, bus,
		hub.WithMaxHistory(cfg.MaxHistory),
		hub.WithTrimInterval(cfg.TrimInterval),
		hub.WithMaxPayloadBytes(cfg.MaxPayloadBytes),
	)
	if err != nil {
		slog.Error("Failed to initialize hub", "error", err)
		os.Exit(1)
	}
	go h.Run()

	bridge := ws.NewBridge(bus, cfg)
	if err := bridge.Attach(context.Background(), bus); err != nil {
		slog.Error("Failed to attach websocket bridge to the bus", "error", err)
		os.Exit(1)
	}
	go bridge.Run()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		E:      e,
		Cfg:    cfg,
		Bus:    bus,
		Hub:    h,
		Bridge: bridge,
	}
	s.RegisterRoutes()

	return s
}

package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/pubsub"
	"github.com/parleychat/parley/internal/websocket"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E      *echo.Echo
	Cfg    config.Provider
	engine *chat.Engine
	bridge *websocket.Bridge
	bus    *pubsub.WatermillBridge
}

// New creates a new Server instance: config, logging, the in-process
// pub/sub bus, the chat engine, and the websocket bridge wired together.
func New() *Server {
	logging.New()
	cfg := config.New()

	bus := pubsub.NewWatermillBridge()
	engine := chat.NewEngine(bus, chat.WithHistoryCapacity(cfg.GetHistoryCapacity()))
	bridge := websocket.NewBridge(engine, bus)

	if err := bridge.Start(context.Background()); err != nil {
		slog.Error("Failed to start websocket bridge", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	return &Server{
		E:      e,
		Cfg:    cfg,
		engine: engine,
		bridge: bridge,
		bus:    bus,
	}
}

// Engine is a getter for the server's chat engine, useful for testing.
func (s *Server) Engine() *chat.Engine {
	return s.engine
}

// Package server hosts the room platform's HTTP surface: chat history
// storage, room token issuance and the websocket relay that carries room
// events between clients.
package server

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/mikemainguy/video-conferencing-app/auth"
	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/observability"
)

type Server struct {
	log        *slog.Logger
	app        *fiber.App
	issuer     *auth.TokenIssuer
	accounts   *auth.Accounts
	store      contract.HistoryStore
	hub        *Hub
	monitoring *observability.MonitoringManager
}

func New(log *slog.Logger, issuer *auth.TokenIssuer, accounts *auth.Accounts, store contract.HistoryStore, monitoring *observability.MonitoringManager) *Server {
	s := &Server{
		log:        log,
		app:        fiber.New(fiber.Config{DisableStartupMessage: true}),
		issuer:     issuer,
		accounts:   accounts,
		store:      store,
		hub:        NewHub(log, issuer, monitoring),
		monitoring: monitoring,
	}
	s.routes()
	return s
}

// Hub exposes the relay hub, mainly as an occupancy source for workers.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/token", s.handleToken)
	api.Get("/messages/:roomName", s.handleMessages)
	api.Post("/messages/:roomName", s.handleAppendMessage)
	api.Delete("/messages/:roomName", s.handleClearMessages)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/rooms/:room", websocket.New(s.hub.Join))
}

// App exposes the fiber application for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.Info("Server listening", "address", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

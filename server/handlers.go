package server

import (
	"encoding/base64"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/mikemainguy/video-conferencing-app/domain"
)

var validate = validator.New()

type tokenRequest struct {
	Identity string `json:"identity" validate:"required"`
	Room     string `json:"room" validate:"required"`
	Name     string `json:"name"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleToken issues a room join token. When accounts are configured the
// caller must present valid basic credentials; an empty account table
// leaves the endpoint open for local development.
func (s *Server) handleToken(c *fiber.Ctx) error {
	if !s.accounts.Empty() {
		username, password, ok := basicAuth(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not authenticated"})
		}
		if err := s.accounts.Verify(username, password); err != nil {
			s.log.Warn("Rejected token request", "username", username, "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not authenticated"})
		}
	}

	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	token, err := s.issuer.IssueRoomToken(req.Identity, req.Room, req.Name)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.monitoring.IncrTokensIssued()
	return c.JSON(fiber.Map{"token": token})
}

func (s *Server) handleMessages(c *fiber.Ctx) error {
	room := c.Params("roomName")
	messages, err := s.store.Messages(c.Context(), room)
	if err != nil {
		s.log.Error("Loading chat history failed", "room", room, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load history"})
	}
	if messages == nil {
		messages = []domain.StoredMessage{}
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (s *Server) handleAppendMessage(c *fiber.Ctx) error {
	room := c.Params("roomName")
	var msg domain.StoredMessage
	if err := c.BodyParser(&msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	stored, err := s.store.Append(c.Context(), room, msg)
	if err != nil {
		s.monitoring.IncrMessagesDropped()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.monitoring.IncrMessagesStored()
	return c.JSON(fiber.Map{"success": true, "message": stored})
}

func (s *Server) handleClearMessages(c *fiber.Ctx) error {
	room := c.Params("roomName")
	if err := s.store.Clear(c.Context(), room); err != nil {
		s.log.Error("Clearing chat history failed", "room", room, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to clear history"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "Chat history cleared"})
}

func basicAuth(header string) (username, password string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return username, password, true
}

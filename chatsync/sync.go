// Package chatsync merges the live broadcast chat of a room with its
// durable history store and maintains the per-participant unread and
// latest-message indexes that decorate the video tiles.
//
// The live in-memory log is the source of truth for the session. The
// history store is a best-effort mirror: writes to it never block or roll
// back a local append, and only an explicit, store-confirmed clear empties
// the log.
package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
	"github.com/mikemainguy/video-conferencing-app/errors"
)

// envelope is the wire shape broadcast over the transport's reliable data
// channel. Payloads that do not decode to type "chat" are dropped.
type envelope struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Color     string `json:"color"`
}

const envelopeType = "chat"

// Sync is the chat state of one room visit.
type Sync struct {
	mu       sync.Mutex
	log      *slog.Logger
	store    contract.HistoryStore
	room     contract.Room
	roomName string
	listener *contract.RoomListener
	detached bool

	messages  []domain.ChatMessage
	unread    map[string]struct{}
	latest    map[string]string
	onMessage func(domain.ChatMessage)
}

func New(log *slog.Logger, room contract.Room, store contract.HistoryStore, roomName string) *Sync {
	return &Sync{
		log:      log,
		store:    store,
		room:     room,
		roomName: roomName,
		unread:   make(map[string]struct{}),
		latest:   make(map[string]string),
	}
}

// Attach starts listening for data-channel messages. The listener is
// independent of the history fetch; messages arriving while history loads
// are appended as they arrive.
func (s *Sync) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return
	}
	s.listener = &contract.RoomListener{DataReceived: s.onData}
	s.detached = false
	s.room.Attach(s.listener)
}

// SetOnMessage registers a callback fired for every remote message after
// it has been recorded. Used by front ends that render messages live.
func (s *Sync) SetOnMessage(fn func(domain.ChatMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// Detach removes the listener attached by Attach. Mirror calls still in
// flight may resolve afterwards; they no longer touch local state.
func (s *Sync) Detach() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.detached = true
	s.mu.Unlock()
	if listener != nil {
		s.room.Detach(listener)
	}
}

// onData handles one broadcast payload. Malformed input is a recoverable,
// non-fatal condition: it is dropped with no state change.
func (s *Sync) onData(payload []byte, sender domain.Participant) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.log.Debug("Dropping undecodable data payload", "error", err)
		return
	}
	if env.Type != envelopeType || env.Message == "" {
		return
	}

	name := sender.DisplayName()
	timestamp := env.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}
	color := env.Color
	if color == "" {
		color = domain.DefaultRemoteColor
	}

	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, domain.ChatMessage{
		Sender:    name,
		Text:      env.Message,
		Timestamp: timestamp,
		Color:     color,
		Origin:    domain.OriginRemote,
	})
	s.latest[name] = env.Message
	s.unread[name] = struct{}{}
	notify := s.onMessage
	s.mu.Unlock()

	if notify != nil {
		notify(domain.ChatMessage{
			Sender:    name,
			Text:      env.Message,
			Timestamp: timestamp,
			Color:     color,
			Origin:    domain.OriginRemote,
		})
	}

	go s.mirror(domain.StoredMessage{
		Sender:    name,
		Message:   env.Message,
		Timestamp: timestamp,
		Color:     color,
	})
}

// Send broadcasts text over the data channel, then appends the local-origin
// entry only once the publish succeeded. On publish failure nothing is
// appended and the caller surfaces the error to the user.
func (s *Sync) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	env := envelope{
		Type:      envelopeType,
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
		Color:     domain.LocalSendColor,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPublishFailed, err)
	}
	if err := s.room.PublishData(ctx, payload, contract.PublishDataOptions{Reliable: true}); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPublishFailed, err)
	}

	s.mu.Lock()
	s.messages = append(s.messages, domain.ChatMessage{
		Sender:    domain.LocalSenderMarker,
		Text:      text,
		Timestamp: env.Timestamp,
		Color:     env.Color,
		Origin:    domain.OriginLocal,
	})
	s.mu.Unlock()

	go s.mirror(domain.StoredMessage{
		Sender:    domain.LocalSenderMarker,
		Message:   text,
		Timestamp: env.Timestamp,
		Color:     env.Color,
	})
	return nil
}

// mirror persists one message to the history store. Persistence is a
// best-effort cache, not the source of truth for the live session, so a
// failure is logged and never rolls back the in-memory append.
func (s *Sync) mirror(msg domain.StoredMessage) {
	if _, err := s.store.Append(context.Background(), s.roomName, msg); err != nil {
		s.log.Warn("Failed to mirror chat message to history store", "error", err)
	}
}

// LoadHistory fetches the persisted messages once on room entry and merges
// them into the live log by replacement, not appending, to avoid
// duplication. The latest-message index is rebuilt from every persisted
// message whose sender is not this client's own marker. Log order stays
// receipt order; no resorting happens afterwards.
func (s *Sync) LoadHistory(ctx context.Context) error {
	stored, err := s.store.Messages(ctx, s.roomName)
	if err != nil {
		s.log.Warn("Failed to load chat history", "room", s.roomName, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return nil
	}
	s.messages = make([]domain.ChatMessage, 0, len(stored))
	s.latest = make(map[string]string, len(stored))
	for _, m := range stored {
		s.messages = append(s.messages, domain.ChatMessage{
			Sender:    m.Sender,
			Text:      m.Message,
			Timestamp: m.Timestamp,
			Color:     m.Color,
			Origin:    domain.OriginHistorical,
		})
		if m.Sender != domain.LocalSenderMarker {
			s.latest[m.Sender] = m.Message
		}
	}
	return nil
}

// Clear issues the durable clear and, only on confirmed success, resets
// the live log, the unread index, and the latest-message index together.
// On failure all three stay exactly as they were.
func (s *Sync) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx, s.roomName); err != nil {
		s.log.Warn("Failed to clear chat history", "room", s.roomName, "error", err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.unread = make(map[string]struct{})
	s.latest = make(map[string]string)
	return nil
}

// MarkViewed removes one participant's unread flag. Unread membership is
// monotonic otherwise: rendering a preview never clears it, only this
// explicit viewed-history action does.
func (s *Sync) MarkViewed(displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unread, displayName)
}

// MarkAllViewed clears every unread flag, for a viewer that shows the whole
// history at once.
func (s *Sync) MarkAllViewed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = make(map[string]struct{})
}

// Messages returns a snapshot of the live log in receipt order.
func (s *Sync) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Unread reports whether a participant has a message not yet viewed.
func (s *Sync) Unread(displayName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unread[displayName]
	return ok
}

// Latest returns the most recent message text of a participant.
func (s *Sync) Latest(displayName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.latest[displayName]
	return text, ok
}

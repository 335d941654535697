// Package repositories holds the room-keyed, append-only message stores
// backing the chat history service. Both implementations satisfy
// contract.HistoryStore: writes are pure appends with store-assigned
// ordering, and each room keeps only its most recent messages, discarding
// the oldest on overflow.
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
)

// DefaultRetention is the per-room bound on stored messages.
const DefaultRetention = 100

var _ contract.HistoryStore = (*MemoryRepository)(nil)

// MemoryRepository is an explicit, lifecycle-owned in-memory table keyed by
// room name, with bounded per-room retention and oldest-first eviction.
type MemoryRepository struct {
	mu    sync.Mutex
	log   *slog.Logger
	limit int
	rooms map[string][]domain.StoredMessage
}

func NewMemoryRepository(log *slog.Logger, limit int) *MemoryRepository {
	if limit <= 0 {
		limit = DefaultRetention
	}
	return &MemoryRepository{
		log:   log,
		limit: limit,
		rooms: make(map[string][]domain.StoredMessage),
	}
}

func (r *MemoryRepository) Messages(_ context.Context, room string) ([]domain.StoredMessage, error) {
	if room == "" {
		return nil, fmt.Errorf("room name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StoredMessage, len(r.rooms[room]))
	copy(out, r.rooms[room])
	return out, nil
}

func (r *MemoryRepository) Append(_ context.Context, room string, msg domain.StoredMessage) (domain.StoredMessage, error) {
	if room == "" || msg.Sender == "" || msg.Message == "" {
		return domain.StoredMessage{}, fmt.Errorf("room, sender, and message are required")
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	if msg.Color == "" {
		msg.Color = domain.DefaultRemoteColor
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	messages := append(r.rooms[room], msg)
	if overflow := len(messages) - r.limit; overflow > 0 {
		r.log.Debug("Evicting oldest messages", "room", room, "count", overflow)
		messages = messages[overflow:]
	}
	r.rooms[room] = messages
	return msg, nil
}

// Clear drops a room's log entirely. Clearing an absent room succeeds.
func (r *MemoryRepository) Clear(_ context.Context, room string) error {
	if room == "" {
		return fmt.Errorf("room name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, room)
	return nil
}

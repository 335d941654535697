package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
)

var _ contract.HistoryStore = (*BadgerRepository)(nil)

// BadgerRepository persists room messages in BadgerDB.
// The key is formatted as "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disambiguator if two
//     messages arrive with the same millisecond timestamp.
type BadgerRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit int
}

func NewBadgerRepository(db *badger.DB, log *slog.Logger, limit int) *BadgerRepository {
	if limit <= 0 {
		limit = DefaultRetention
	}
	return &BadgerRepository{db: db, log: log, limit: limit}
}

func roomPrefix(room string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", room))
}

func messageKey(room string, msg domain.StoredMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", room, msg.Timestamp, uuid.NewString()))
}

// Messages retrieves a room's messages with a prefix scan. Thanks to the
// padded timestamp in the key, messages come back oldest first.
func (r *BadgerRepository) Messages(_ context.Context, room string) ([]domain.StoredMessage, error) {
	if room == "" {
		return nil, fmt.Errorf("room name is required")
	}
	var messages []domain.StoredMessage
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var msg domain.StoredMessage
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Append stores one message and then enforces the retention window by
// deleting the oldest keys beyond the limit in the same transaction.
func (r *BadgerRepository) Append(_ context.Context, room string, msg domain.StoredMessage) (domain.StoredMessage, error) {
	if room == "" || msg.Sender == "" || msg.Message == "" {
		return domain.StoredMessage{}, fmt.Errorf("room, sender, and message are required")
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	if msg.Color == "" {
		msg.Color = domain.DefaultRemoteColor
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return domain.StoredMessage{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(room, msg), value); err != nil {
			return err
		}
		return r.evictOldest(txn, room)
	})
	if err != nil {
		return domain.StoredMessage{}, err
	}
	return msg, nil
}

// evictOldest removes the oldest keys of a room once the count exceeds the
// retention limit. Keys sort chronologically, so a forward scan visits the
// eviction candidates first.
func (r *BadgerRepository) evictOldest(txn *badger.Txn, room string) error {
	prefix := roomPrefix(room)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	overflow := len(keys) - r.limit
	for i := 0; i < overflow; i++ {
		if err := txn.Delete(keys[i]); err != nil {
			return err
		}
	}
	if overflow > 0 {
		r.log.Debug("Evicted oldest messages", "room", room, "count", overflow)
	}
	return nil
}

// Clear drops every key of the room. Clearing an absent room succeeds.
func (r *BadgerRepository) Clear(_ context.Context, room string) error {
	if room == "" {
		return fmt.Errorf("room name is required")
	}
	return r.db.DropPrefix(roomPrefix(room))
}

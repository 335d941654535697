package repositories

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/mikemainguy/video-conferencing-app/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Badger_Record_Multiple_Messages(t *testing.T) {
	req := require.New(t)
	repository := NewBadgerRepository(openTestDB(t), slog.Default(), 0)
	ctx := context.Background()
	room := "demo"
	stored := []domain.StoredMessage{
		{Sender: "Alice", Message: "first", Timestamp: 1000, Color: "#228be6"},
		{Sender: "Bob", Message: "second", Timestamp: 2000, Color: "#228be6"},
		{Sender: "Clara", Message: "third", Timestamp: 3000, Color: "#228be6"},
	}
	for _, msg := range stored {
		_, err := repository.Append(ctx, room, msg)
		req.NoError(err)
	}
	fetched, err := repository.Messages(ctx, room)
	req.NoError(err)
	req.Equal(stored, fetched)
}

func Test_Badger_Messages_Come_Back_Oldest_First(t *testing.T) {
	req := require.New(t)
	repository := NewBadgerRepository(openTestDB(t), slog.Default(), 0)
	ctx := context.Background()
	room := "demo"

	// Out-of-order writes still read back chronologically thanks to the
	// padded timestamp in the key.
	timestamps := []int64{3000, 1000, 2000}
	for _, ts := range timestamps {
		_, err := repository.Append(ctx, room, domain.StoredMessage{
			Sender: "Alice", Message: "hello", Timestamp: ts,
		})
		req.NoError(err)
	}
	fetched, err := repository.Messages(ctx, room)
	req.NoError(err)
	req.Len(fetched, 3)
	req.Equal(int64(1000), fetched[0].Timestamp)
	req.Equal(int64(2000), fetched[1].Timestamp)
	req.Equal(int64(3000), fetched[2].Timestamp)
}

func Test_Badger_Record_Multiple_Messages_And_Limit(t *testing.T) {
	req := require.New(t)
	repository := NewBadgerRepository(openTestDB(t), slog.Default(), 2)
	ctx := context.Background()
	room := "demo"
	for _, msg := range []domain.StoredMessage{
		{Sender: "Alice", Message: "first", Timestamp: 1000},
		{Sender: "Bob", Message: "second", Timestamp: 2000},
		{Sender: "Clara", Message: "third", Timestamp: 3000},
	} {
		_, err := repository.Append(ctx, room, msg)
		req.NoError(err)
	}
	fetched, err := repository.Messages(ctx, room)
	req.NoError(err)
	req.Len(fetched, 2)
	req.Equal("Bob", fetched[0].Sender)
	req.Equal("Clara", fetched[1].Sender)
}

func Test_Badger_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	repository := NewBadgerRepository(openTestDB(t), slog.Default(), 0)
	ctx := context.Background()

	_, err := repository.Append(ctx, "one", domain.StoredMessage{Sender: "Alice", Message: "hello", Timestamp: 1000})
	req.NoError(err)
	_, err = repository.Append(ctx, "two", domain.StoredMessage{Sender: "Bob", Message: "bye", Timestamp: 2000})
	req.NoError(err)

	req.NoError(repository.Clear(ctx, "one"))
	fetched, err := repository.Messages(ctx, "one")
	req.NoError(err)
	req.Empty(fetched)
	fetched, err = repository.Messages(ctx, "two")
	req.NoError(err)
	req.Len(fetched, 1)
}

func Test_Badger_Clear_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewBadgerRepository(openTestDB(t), slog.Default(), 0)
	ctx := context.Background()
	room := "demo"

	_, err := repository.Append(ctx, room, domain.StoredMessage{Sender: "Alice", Message: "hello", Timestamp: 1000})
	req.NoError(err)
	req.NoError(repository.Clear(ctx, room))
	req.NoError(repository.Clear(ctx, room))
	fetched, err := repository.Messages(ctx, room)
	req.NoError(err)
	req.Empty(fetched)
}

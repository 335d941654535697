package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
	"github.com/mikemainguy/video-conferencing-app/errors"
	"github.com/mikemainguy/video-conferencing-app/mocks"
)

// fakeRoom captures published payloads and lets the test inject data
// events into attached listeners.
type fakeRoom struct {
	contract.Room
	published  [][]byte
	publishErr error
	listeners  []*contract.RoomListener
}

func (f *fakeRoom) PublishData(_ context.Context, payload []byte, _ contract.PublishDataOptions) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeRoom) Attach(l *contract.RoomListener) { f.listeners = append(f.listeners, l) }

func (f *fakeRoom) Detach(l *contract.RoomListener) {
	for i, existing := range f.listeners {
		if existing == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *fakeRoom) receive(payload []byte, sender domain.Participant) {
	for _, l := range f.listeners {
		if l.DataReceived != nil {
			l.DataReceived(payload, sender)
		}
	}
}

// expectMirror arms the store mock for the fire-and-forget Append mirror
// and returns a channel delivering mirrored messages. The expectation is
// permissive because the mirror runs on its own goroutine.
func expectMirror(store *mocks.MockHistoryStore, room string) <-chan domain.StoredMessage {
	mirrored := make(chan domain.StoredMessage, 4)
	store.EXPECT().
		Append(gomock.Any(), room, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, msg domain.StoredMessage) (domain.StoredMessage, error) {
			select {
			case mirrored <- msg:
			default:
			}
			return msg, nil
		}).
		AnyTimes()
	return mirrored
}

func waitMirror(t *testing.T, ch <-chan domain.StoredMessage) domain.StoredMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("mirror append never happened")
		return domain.StoredMessage{}
	}
}

func newSync(t *testing.T) (*Sync, *fakeRoom, *mocks.MockHistoryStore) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockHistoryStore(ctrl)
	room := &fakeRoom{}
	s := New(slog.Default(), room, store, "demo")
	s.Attach()
	return s, room, store
}

func Test_Send_Publishes_Before_Appending_Locally(t *testing.T) {
	req := require.New(t)
	s, room, store := newSync(t)
	mirrored := expectMirror(store, "demo")

	// When sending a message
	req.NoError(s.Send(context.Background(), "hello"))

	// Then the broadcast went out with the chat envelope
	req.Len(room.published, 1)
	var env struct {
		Type      string `json:"type"`
		Message   string `json:"message"`
		Timestamp int64  `json:"timestamp"`
		Color     string `json:"color"`
	}
	req.NoError(json.Unmarshal(room.published[0], &env))
	req.Equal("chat", env.Type)
	req.Equal("hello", env.Message)
	req.Equal(domain.LocalSendColor, env.Color)
	req.NotZero(env.Timestamp)

	// And the local log holds one own-marker entry
	msgs := s.Messages()
	req.Len(msgs, 1)
	req.Equal(domain.LocalSenderMarker, msgs[0].Sender)
	req.Equal(domain.OriginLocal, msgs[0].Origin)

	// And own messages never flag themselves unread
	req.False(s.Unread(domain.LocalSenderMarker))

	// And the store mirror carries the same content
	stored := waitMirror(t, mirrored)
	req.Equal(domain.LocalSenderMarker, stored.Sender)
	req.Equal("hello", stored.Message)
}

func Test_Send_Failure_Appends_Nothing(t *testing.T) {
	req := require.New(t)
	s, room, _ := newSync(t)
	room.publishErr = fmt.Errorf("transport down")

	err := s.Send(context.Background(), "hello")

	req.ErrorIs(err, errors.ErrPublishFailed)
	req.Empty(s.Messages())
}

func Test_Send_Ignores_Blank_Input(t *testing.T) {
	req := require.New(t)
	s, room, _ := newSync(t)

	req.NoError(s.Send(context.Background(), "   "))
	req.Empty(room.published)
	req.Empty(s.Messages())
}

func Test_Receive_Records_Message_And_Unread(t *testing.T) {
	req := require.New(t)
	s, room, store := newSync(t)
	mirrored := expectMirror(store, "demo")

	payload, _ := json.Marshal(map[string]any{
		"type": "chat", "message": "hi there", "timestamp": int64(1712000000000), "color": "#ff0000",
	})
	room.receive(payload, domain.Participant{Identity: "bob"})

	msgs := s.Messages()
	req.Len(msgs, 1)
	req.Equal("bob", msgs[0].Sender)
	req.Equal("hi there", msgs[0].Text)
	req.Equal(int64(1712000000000), msgs[0].Timestamp)
	req.Equal("#ff0000", msgs[0].Color)
	req.Equal(domain.OriginRemote, msgs[0].Origin)

	req.True(s.Unread("bob"))
	latest, ok := s.Latest("bob")
	req.True(ok)
	req.Equal("hi there", latest)

	stored := waitMirror(t, mirrored)
	req.Equal("bob", stored.Sender)
}

func Test_Receive_Defaults_Timestamp_And_Color(t *testing.T) {
	req := require.New(t)
	s, room, store := newSync(t)
	_ = expectMirror(store, "demo")

	payload, _ := json.Marshal(map[string]any{"type": "chat", "message": "hi"})
	before := time.Now().UnixMilli()
	room.receive(payload, domain.Participant{Identity: "bob"})

	msgs := s.Messages()
	req.Len(msgs, 1)
	req.GreaterOrEqual(msgs[0].Timestamp, before)
	req.Equal(domain.DefaultRemoteColor, msgs[0].Color)
}

func Test_Receive_Drops_Malformed_Payloads_Silently(t *testing.T) {
	req := require.New(t)
	s, room, _ := newSync(t)

	room.receive([]byte("{not json"), domain.Participant{Identity: "bob"})
	room.receive([]byte(`{"type":"poll","message":"x"}`), domain.Participant{Identity: "bob"})
	room.receive([]byte(`{"type":"chat","message":""}`), domain.Participant{Identity: "bob"})

	req.Empty(s.Messages())
	req.False(s.Unread("bob"))
}

func Test_LoadHistory_Replaces_The_Log(t *testing.T) {
	req := require.New(t)
	s, room, store := newSync(t)
	_ = expectMirror(store, "demo")

	payload, _ := json.Marshal(map[string]any{"type": "chat", "message": "live one"})
	room.receive(payload, domain.Participant{Identity: "bob"})
	req.Len(s.Messages(), 1)

	store.EXPECT().
		Messages(gomock.Any(), "demo").
		Return([]domain.StoredMessage{
			{Sender: "alice", Message: "old one", Timestamp: 1, Color: "#111111"},
			{Sender: domain.LocalSenderMarker, Message: "mine", Timestamp: 2, Color: "#222222"},
		}, nil)

	req.NoError(s.LoadHistory(context.Background()))

	// Then the log was replaced, not appended to
	msgs := s.Messages()
	req.Len(msgs, 2)
	req.Equal(domain.OriginHistorical, msgs[0].Origin)
	req.Equal("alice", msgs[0].Sender)

	// And the latest index skips this client's own marker
	latest, ok := s.Latest("alice")
	req.True(ok)
	req.Equal("old one", latest)
	_, ok = s.Latest(domain.LocalSenderMarker)
	req.False(ok)
}

func Test_LoadHistory_Failure_Keeps_Current_Log(t *testing.T) {
	req := require.New(t)
	s, room, store := newSync(t)
	_ = expectMirror(store, "demo")

	payload, _ := json.Marshal(map[string]any{"type": "chat", "message": "live one"})
	room.receive(payload, domain.Participant{Identity: "bob"})

	store.EXPECT().
		Messages(gomock.Any(), "demo").
		Return(nil, fmt.Errorf("store down"))

	req.Error(s.LoadHistory(context.Background()))
	req.Len(s.Messages(), 1)
}

func Test_Clear_Resets_Everything_Only_On_Store_Success(t *testing.T) {
	req := require.New(t)
	s, room, store := newSync(t)
	_ = expectMirror(store, "demo")

	payload, _ := json.Marshal(map[string]any{"type": "chat", "message": "hi"})
	room.receive(payload, domain.Participant{Identity: "bob"})

	// Given the durable clear fails, all three structures stay untouched
	store.EXPECT().Clear(gomock.Any(), "demo").Return(fmt.Errorf("store down"))
	req.Error(s.Clear(context.Background()))
	req.Len(s.Messages(), 1)
	req.True(s.Unread("bob"))
	_, ok := s.Latest("bob")
	req.True(ok)

	// When the durable clear succeeds, all three reset together
	store.EXPECT().Clear(gomock.Any(), "demo").Return(nil)
	req.NoError(s.Clear(context.Background()))
	req.Empty(s.Messages())
	req.False(s.Unread("bob"))
	_, ok = s.Latest("bob")
	req.False(ok)
}

func Test_Unread_Cleared_Only_By_Explicit_View(t *testing.T) {
	req := require.New(t)
	s, room, store := newSync(t)
	_ = expectMirror(store, "demo")

	payload, _ := json.Marshal(map[string]any{"type": "chat", "message": "hi"})
	room.receive(payload, domain.Participant{Identity: "bob"})
	room.receive(payload, domain.Participant{Identity: "carol"})

	// Reading the preview does not clear the flag
	_, _ = s.Latest("bob")
	req.True(s.Unread("bob"))

	s.MarkViewed("bob")
	req.False(s.Unread("bob"))
	req.True(s.Unread("carol"))

	s.MarkAllViewed()
	req.False(s.Unread("carol"))
}

func Test_Detach_Stops_Recording(t *testing.T) {
	req := require.New(t)
	s, room, _ := newSync(t)

	s.Detach()
	req.Empty(room.listeners)

	payload, _ := json.Marshal(map[string]any{"type": "chat", "message": "hi"})
	room.receive(payload, domain.Participant{Identity: "bob"})
	req.Empty(s.Messages())
}

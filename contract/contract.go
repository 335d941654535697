//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/mikemainguy/video-conferencing-app/domain"
)

// Transport is the externally supplied real-time media layer. The client
// core never implements media handling itself; it only drives this contract.
type Transport interface {
	Connect(ctx context.Context, serverURL, token string, opts ConnectOptions) (Room, error)
}

type ConnectOptions struct {
	RoomName      string
	AutoSubscribe bool
}

type PublishDataOptions struct {
	Reliable bool
}

// LocalTrackOptions selects which local devices to acquire in one attempt.
type LocalTrackOptions struct {
	Audio bool
	Video bool
}

// LocalTrack is an acquired but not yet published local media source.
type LocalTrack struct {
	Kind domain.TrackKind
}

// Room is one live connection to a room. Exactly one component (the session
// controller) may call Disconnect; everyone else issues only the specific
// calls they are responsible for.
type Room interface {
	Name() string
	LocalParticipant() domain.Participant
	Participants() []domain.Participant

	// Tracks returns the active remote and local published tracks of the
	// given kinds, in the transport's own enumeration order. No kinds
	// means all tracks.
	Tracks(kinds ...domain.TrackKind) []domain.Track

	// PublishData broadcasts an arbitrary payload to every participant in
	// the room over the transport's data channel.
	PublishData(ctx context.Context, payload []byte, opts PublishDataOptions) error

	// CreateLocalTracks acquires the requested local devices as one
	// logical attempt. Partial grants return the tracks that succeeded.
	CreateLocalTracks(ctx context.Context, opts LocalTrackOptions) ([]LocalTrack, error)
	PublishTrack(ctx context.Context, track LocalTrack) (domain.Track, error)

	SetCameraEnabled(ctx context.Context, enabled bool) error
	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
	SetScreenShareEnabled(ctx context.Context, enabled bool) error

	// Attach registers a listener for room events. Detach removes the same
	// listener by identity; components must detach exactly what they
	// attached so teardown cancels their future effects.
	Attach(l *RoomListener)
	Detach(l *RoomListener)

	Disconnect() error
}

// RoomListener receives transport events. Nil fields are skipped. Events
// are delivered sequentially in the transport's emission order.
type RoomListener struct {
	ConnectionStateChanged func(state domain.SessionState)
	ParticipantJoined      func(p domain.Participant)
	ParticipantLeft        func(p domain.Participant)
	TrackPublished         func(t domain.Track)
	TrackUnpublished       func(t domain.Track)
	TrackMuted             func(t domain.Track)
	TrackUnmuted           func(t domain.Track)
	DataReceived           func(payload []byte, sender domain.Participant)
}

// HistoryStore is the durable, room-scoped, append-only message log.
// Writes are pure appends with store-assigned ordering; the store keeps a
// bounded retention window and discards the oldest messages on overflow.
type HistoryStore interface {
	Messages(ctx context.Context, room string) ([]domain.StoredMessage, error)

	// Append stores one message and echoes it back with the timestamp the
	// store assigned when the input carried none.
	Append(ctx context.Context, room string, msg domain.StoredMessage) (domain.StoredMessage, error)

	// Clear empties a room's log. Clearing an absent room still succeeds.
	Clear(ctx context.Context, room string) error
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type WorkerName string

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

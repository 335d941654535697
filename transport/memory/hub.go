// Package memory is an in-process implementation of the media transport
// contract. Every client connected to the same Hub shares its rooms:
// track announcements and data payloads fan out synchronously, in emission
// order, exactly like a transport delivering events on one dispatch loop.
//
// Tracks are metadata-only records. No media flows anywhere; the package
// exists so the client core and the end-to-end tests can run against a
// complete transport without a network.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
)

// TokenResolver turns a join token into the joining participant.
type TokenResolver func(token string) (domain.Participant, error)

// IdentityResolver treats the token itself as the participant identity.
// Handy in tests where real tokens would be noise.
func IdentityResolver(token string) (domain.Participant, error) {
	if token == "" {
		return domain.Participant{}, fmt.Errorf("empty token")
	}
	return domain.Participant{Identity: token}, nil
}

// Hub is the shared in-process room fabric.
type Hub struct {
	mu    sync.Mutex
	log   *slog.Logger
	rooms map[string]*hubRoom
}

type hubRoom struct {
	name    string
	members []*Room
	tracks  []domain.Track
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, rooms: make(map[string]*hubRoom)}
}

var _ contract.Transport = (*Transport)(nil)

// Transport joins rooms on a Hub. ConnectErr, when set, makes every
// connect attempt fail; DenyDevices makes local device acquisition fail.
// Both exist to exercise the error paths of the client core.
type Transport struct {
	hub         *Hub
	resolve     TokenResolver
	ConnectErr  error
	DenyDevices bool
}

func NewTransport(hub *Hub, resolve TokenResolver) *Transport {
	return &Transport{hub: hub, resolve: resolve}
}

func (t *Transport) Connect(_ context.Context, _ string, token string, opts contract.ConnectOptions) (contract.Room, error) {
	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}
	if opts.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}
	local, err := t.resolve(token)
	if err != nil {
		return nil, err
	}

	t.hub.mu.Lock()
	hr, ok := t.hub.rooms[opts.RoomName]
	if !ok {
		hr = &hubRoom{name: opts.RoomName}
		t.hub.rooms[opts.RoomName] = hr
	}
	room := &Room{hub: t.hub, hr: hr, local: local, denyDevices: t.DenyDevices}
	hr.members = append(hr.members, room)
	others := hr.othersLocked(room)
	t.hub.mu.Unlock()

	for _, member := range others {
		member.emitParticipantJoined(local)
	}
	return room, nil
}

// othersLocked returns every member except the given one. Callers hold the
// hub lock and must emit only after releasing it.
func (hr *hubRoom) othersLocked(except *Room) []*Room {
	others := make([]*Room, 0, len(hr.members))
	for _, m := range hr.members {
		if m != except {
			others = append(others, m)
		}
	}
	return others
}

func (hr *hubRoom) removeMemberLocked(room *Room) {
	for i, m := range hr.members {
		if m == room {
			hr.members = append(hr.members[:i], hr.members[i+1:]...)
			return
		}
	}
}

func (hr *hubRoom) removeTracksOfLocked(identity string) []domain.Track {
	var removed []domain.Track
	kept := hr.tracks[:0]
	for _, t := range hr.tracks {
		if t.Participant.Identity == identity {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	hr.tracks = kept
	return removed
}

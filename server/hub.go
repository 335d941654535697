package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mikemainguy/video-conferencing-app/auth"
	"github.com/mikemainguy/video-conferencing-app/domain"
	"github.com/mikemainguy/video-conferencing-app/observability"
	"github.com/mikemainguy/video-conferencing-app/transport/relay"
)

// Hub relays room events between websocket clients. It is the server side
// of the relay transport: it owns the authoritative participant and track
// lists per room and pushes every change to every member in publish order.
type Hub struct {
	mu         sync.Mutex
	log        *slog.Logger
	issuer     *auth.TokenIssuer
	monitoring *observability.MonitoringManager
	rooms      map[string]*hubRoom
}

type hubRoom struct {
	name    string
	members []*member
	tracks  []domain.Track
}

// member pairs a connection with its participant. Outbound frames go
// through a buffered channel so a slow reader never blocks the hub lock;
// frames to a full channel are dropped with a warning.
type member struct {
	participant domain.Participant
	send        chan relay.ServerFrame
	conn        *websocket.Conn
}

func NewHub(log *slog.Logger, issuer *auth.TokenIssuer, monitoring *observability.MonitoringManager) *Hub {
	return &Hub{log: log, issuer: issuer, monitoring: monitoring, rooms: map[string]*hubRoom{}}
}

// Occupancy reports live room and connection counts.
func (h *Hub) Occupancy() (rooms, conns int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		conns += len(room.members)
	}
	return len(h.rooms), conns
}

// Join upgrades a client into a room. It validates the join token, sends
// the welcome snapshot, then pumps client operations until the connection
// drops.
func (h *Hub) Join(conn *websocket.Conn) {
	roomName := conn.Params("room")
	token := conn.Query("token")

	claims, err := h.issuer.ValidateRoomToken(token)
	if err != nil {
		h.log.Warn("Rejected relay join", "room", roomName, "error", err)
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		return
	}
	if claims.Room != roomName {
		h.log.Warn("Rejected relay join for wrong room", "room", roomName, "granted", claims.Room)
		_ = conn.WriteJSON(map[string]string{"error": "token not valid for this room"})
		_ = conn.Close()
		return
	}

	m := &member{
		participant: domain.Participant{Identity: claims.Identity, Metadata: claims.Metadata},
		send:        make(chan relay.ServerFrame, 64),
		conn:        conn,
	}

	h.register(roomName, m)
	h.log.Info("Participant joined", "room", roomName, "identity", m.participant.Identity)

	go m.writePump()
	h.readPump(roomName, m)

	h.unregister(roomName, m)
	h.log.Info("Participant left", "room", roomName, "identity", m.participant.Identity)
}

func (h *Hub) register(roomName string, m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[roomName]
	if room == nil {
		room = &hubRoom{name: roomName}
		h.rooms[roomName] = room
	}

	local := relay.ToWireParticipant(m.participant)
	welcome := relay.ServerFrame{
		Event: relay.EventWelcome,
		Room:  roomName,
		Local: &local,
	}
	welcome.Participants = lo.Map(room.members, func(existing *member, _ int) relay.WireParticipant {
		return relay.ToWireParticipant(existing.participant)
	})
	welcome.Tracks = lo.Map(room.tracks, func(t domain.Track, _ int) relay.WireTrack {
		return relay.ToWireTrack(t)
	})
	m.enqueue(welcome, h.log)

	joined := relay.ToWireParticipant(m.participant)
	h.broadcastLocked(room, relay.ServerFrame{Event: relay.EventParticipantJoined, Participant: &joined}, m)

	room.members = append(room.members, m)
}

func (h *Hub) unregister(roomName string, m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[roomName]
	if room == nil {
		return
	}
	for i, existing := range room.members {
		if existing == m {
			room.members = append(room.members[:i], room.members[i+1:]...)
			break
		}
	}

	remaining := room.tracks[:0]
	for _, t := range room.tracks {
		if t.Participant.Identity == m.participant.Identity {
			wire := relay.ToWireTrack(t)
			h.broadcastLocked(room, relay.ServerFrame{Event: relay.EventTrackUnpublished, Track: &wire}, nil)
			continue
		}
		remaining = append(remaining, t)
	}
	room.tracks = remaining

	left := relay.ToWireParticipant(m.participant)
	h.broadcastLocked(room, relay.ServerFrame{Event: relay.EventParticipantLeft, Participant: &left}, nil)

	close(m.send)
	if len(room.members) == 0 {
		delete(h.rooms, roomName)
	}
}

func (h *Hub) readPump(roomName string, m *member) {
	for {
		_, raw, err := m.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame relay.ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.log.Debug("Dropping undecodable client frame", "room", roomName, "error", err)
			continue
		}
		h.handleFrame(roomName, m, frame)
	}
}

func (h *Hub) handleFrame(roomName string, m *member, frame relay.ClientFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[roomName]
	if room == nil {
		return
	}

	switch frame.Op {
	case relay.OpPublishTrack:
		id := frame.TrackID
		if id == "" {
			id = uuid.NewString()
		}
		track := domain.Track{
			ID:          domain.TrackID(id),
			Kind:        domain.TrackKind(frame.Kind),
			Participant: m.participant,
		}
		room.tracks = append(room.tracks, track)
		wire := relay.ToWireTrack(track)
		h.broadcastLocked(room, relay.ServerFrame{Event: relay.EventTrackPublished, Track: &wire}, nil)

	case relay.OpUnpublishTrack:
		for i, t := range room.tracks {
			if string(t.ID) == frame.TrackID && t.Participant.Identity == m.participant.Identity {
				room.tracks = append(room.tracks[:i], room.tracks[i+1:]...)
				wire := relay.ToWireTrack(t)
				h.broadcastLocked(room, relay.ServerFrame{Event: relay.EventTrackUnpublished, Track: &wire}, nil)
				break
			}
		}

	case relay.OpSetEnabled:
		h.setEnabledLocked(room, m, domain.TrackKind(frame.Kind), frame.Enabled)

	case relay.OpData:
		sender := relay.ToWireParticipant(m.participant)
		h.monitoring.IncrRelayBytes(uint64(len(frame.Payload)) * uint64(len(room.members)-1))
		h.broadcastLocked(room, relay.ServerFrame{Event: relay.EventData, Sender: &sender, Payload: frame.Payload}, m)

	default:
		h.log.Debug("Ignoring unknown client op", "room", roomName, "op", frame.Op)
	}
}

// setEnabledLocked publishes a fresh track when the member enables a kind
// it never published, otherwise it toggles the mute flag on the existing
// track.
func (h *Hub) setEnabledLocked(room *hubRoom, m *member, kind domain.TrackKind, enabled bool) {
	for i, t := range room.tracks {
		if t.Kind != kind || t.Participant.Identity != m.participant.Identity {
			continue
		}
		room.tracks[i].Muted = !enabled
		wire := relay.ToWireTrack(room.tracks[i])
		event := relay.EventTrackUnmuted
		if !enabled {
			event = relay.EventTrackMuted
		}
		h.broadcastLocked(room, relay.ServerFrame{Event: event, Track: &wire}, nil)
		return
	}
	if !enabled {
		return
	}
	track := domain.Track{
		ID:          domain.TrackID(uuid.NewString()),
		Kind:        kind,
		Participant: m.participant,
	}
	room.tracks = append(room.tracks, track)
	wire := relay.ToWireTrack(track)
	h.broadcastLocked(room, relay.ServerFrame{Event: relay.EventTrackPublished, Track: &wire}, nil)
}

// broadcastLocked queues a frame for every member except the excluded one.
// Callers hold the hub lock.
func (h *Hub) broadcastLocked(room *hubRoom, frame relay.ServerFrame, except *member) {
	for _, m := range room.members {
		if m == except {
			continue
		}
		m.enqueue(frame, h.log)
	}
}

func (m *member) enqueue(frame relay.ServerFrame, log *slog.Logger) {
	select {
	case m.send <- frame:
	default:
		log.Warn("Dropping frame for slow relay client", "identity", m.participant.Identity, "event", frame.Event)
	}
}

func (m *member) writePump() {
	for frame := range m.send {
		if err := m.conn.WriteJSON(frame); err != nil {
			break
		}
	}
	_ = m.conn.Close()
}

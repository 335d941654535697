package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
	"github.com/mikemainguy/video-conferencing-app/errors"
)

var _ contract.Transport = (*Transport)(nil)

// Transport dials the relay's websocket endpoint. One Connect call yields
// one Room whose events are dispatched by a single read pump, preserving
// the relay's emission order.
type Transport struct {
	log    *slog.Logger
	dialer *websocket.Dialer
}

func NewTransport(log *slog.Logger) *Transport {
	return &Transport{log: log, dialer: websocket.DefaultDialer}
}

// wsEndpoint converts the configured http(s) server URL into the ws(s)
// room endpoint.
func wsEndpoint(serverURL, roomName, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/rooms/" + url.PathEscape(roomName)
	u.RawQuery = url.Values{"token": []string{token}}.Encode()
	return u.String(), nil
}

func (t *Transport) Connect(ctx context.Context, serverURL, token string, opts contract.ConnectOptions) (contract.Room, error) {
	endpoint, err := wsEndpoint(serverURL, opts.RoomName, token)
	if err != nil {
		return nil, err
	}
	conn, _, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing relay: %w", err)
	}

	// The relay greets with the full room state before any event flows.
	var welcome ServerFrame
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("reading relay welcome: %w", err)
	}
	if welcome.Event != EventWelcome || welcome.Local == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected relay greeting %q", welcome.Event)
	}

	room := &Room{
		log:   t.log,
		conn:  conn,
		name:  welcome.Room,
		local: welcome.Local.ToDomain(),
		participants: lo.Map(welcome.Participants, func(p WireParticipant, _ int) domain.Participant {
			return p.ToDomain()
		}),
		tracks: lo.Map(welcome.Tracks, func(t WireTrack, _ int) domain.Track {
			return t.ToDomain()
		}),
	}
	go room.readPump()
	return room, nil
}

var _ contract.Room = (*Room)(nil)

// Room mirrors the relay's view of one room. The track list is maintained
// exclusively from server events, so every client shares the relay's
// enumeration order.
type Room struct {
	log  *slog.Logger
	conn *websocket.Conn
	name string

	local domain.Participant

	mu           sync.Mutex
	writeMu      sync.Mutex
	participants []domain.Participant
	tracks       []domain.Track
	listeners    []*contract.RoomListener
	closed       bool
}

func (r *Room) Name() string                         { return r.name }
func (r *Room) LocalParticipant() domain.Participant { return r.local }

func (r *Room) Participants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Participant(nil), r.participants...)
}

func (r *Room) Tracks(kinds ...domain.TrackKind) []domain.Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Track, 0, len(r.tracks))
	for _, t := range r.tracks {
		if len(kinds) == 0 {
			out = append(out, t)
			continue
		}
		for _, k := range kinds {
			if t.Kind == k {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func (r *Room) send(frame ClientFrame) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return errors.ErrRoomClosed
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(frame)
}

func (r *Room) PublishData(_ context.Context, payload []byte, _ contract.PublishDataOptions) error {
	return r.send(ClientFrame{Op: OpData, Payload: payload})
}

// CreateLocalTracks grants virtual devices for the requested kinds. The
// relay carries no media, so acquisition cannot fail here; real device
// errors belong to transports that own hardware.
func (r *Room) CreateLocalTracks(_ context.Context, opts contract.LocalTrackOptions) ([]contract.LocalTrack, error) {
	var tracks []contract.LocalTrack
	if opts.Audio {
		tracks = append(tracks, contract.LocalTrack{Kind: domain.KindMicrophone})
	}
	if opts.Video {
		tracks = append(tracks, contract.LocalTrack{Kind: domain.KindCamera})
	}
	return tracks, nil
}

func (r *Room) PublishTrack(_ context.Context, track contract.LocalTrack) (domain.Track, error) {
	id := uuid.NewString()
	err := r.send(ClientFrame{Op: OpPublishTrack, TrackID: id, Kind: string(track.Kind)})
	if err != nil {
		return domain.Track{}, err
	}
	// The authoritative track_published event follows; the returned value
	// lets the caller reference the id immediately.
	return domain.Track{
		ID:          domain.TrackID(id),
		Kind:        track.Kind,
		Participant: r.local,
	}, nil
}

func (r *Room) SetCameraEnabled(_ context.Context, enabled bool) error {
	return r.send(ClientFrame{Op: OpSetEnabled, Kind: string(domain.KindCamera), Enabled: enabled})
}

func (r *Room) SetMicrophoneEnabled(_ context.Context, enabled bool) error {
	return r.send(ClientFrame{Op: OpSetEnabled, Kind: string(domain.KindMicrophone), Enabled: enabled})
}

func (r *Room) SetScreenShareEnabled(_ context.Context, enabled bool) error {
	return r.send(ClientFrame{Op: OpSetEnabled, Kind: string(domain.KindScreenShare), Enabled: enabled})
}

func (r *Room) Attach(l *contract.RoomListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Room) Detach(l *contract.RoomListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *Room) Disconnect() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	err := r.conn.Close()
	r.emit(func(l *contract.RoomListener) {
		if l.ConnectionStateChanged != nil {
			l.ConnectionStateChanged(domain.StateDisconnected)
		}
	})
	return err
}

// readPump dispatches server frames one at a time until the connection
// dies. A read error after Disconnect is the expected shutdown path.
func (r *Room) readPump() {
	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			wasClosed := r.closed
			r.closed = true
			r.mu.Unlock()
			if !wasClosed {
				r.log.Warn("Relay connection lost", "room", r.name, "error", err)
				r.emit(func(l *contract.RoomListener) {
					if l.ConnectionStateChanged != nil {
						l.ConnectionStateChanged(domain.StateDisconnected)
					}
				})
			}
			return
		}
		var frame ServerFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			r.log.Debug("Dropping undecodable relay frame", "error", err)
			continue
		}
		r.dispatch(frame)
	}
}

func (r *Room) dispatch(frame ServerFrame) {
	switch frame.Event {
	case EventParticipantJoined:
		if frame.Participant == nil {
			return
		}
		p := frame.Participant.ToDomain()
		r.mu.Lock()
		r.participants = append(r.participants, p)
		r.mu.Unlock()
		r.emit(func(l *contract.RoomListener) {
			if l.ParticipantJoined != nil {
				l.ParticipantJoined(p)
			}
		})
	case EventParticipantLeft:
		if frame.Participant == nil {
			return
		}
		p := frame.Participant.ToDomain()
		r.mu.Lock()
		for i, existing := range r.participants {
			if existing.Identity == p.Identity {
				r.participants = append(r.participants[:i], r.participants[i+1:]...)
				break
			}
		}
		r.mu.Unlock()
		r.emit(func(l *contract.RoomListener) {
			if l.ParticipantLeft != nil {
				l.ParticipantLeft(p)
			}
		})
	case EventTrackPublished:
		if frame.Track == nil {
			return
		}
		t := frame.Track.ToDomain()
		r.mu.Lock()
		r.tracks = append(r.tracks, t)
		r.mu.Unlock()
		r.emit(func(l *contract.RoomListener) {
			if l.TrackPublished != nil {
				l.TrackPublished(t)
			}
		})
	case EventTrackUnpublished:
		if frame.Track == nil {
			return
		}
		t := frame.Track.ToDomain()
		r.mu.Lock()
		for i, existing := range r.tracks {
			if existing.ID == t.ID {
				r.tracks = append(r.tracks[:i], r.tracks[i+1:]...)
				break
			}
		}
		r.mu.Unlock()
		r.emit(func(l *contract.RoomListener) {
			if l.TrackUnpublished != nil {
				l.TrackUnpublished(t)
			}
		})
	case EventTrackMuted, EventTrackUnmuted:
		if frame.Track == nil {
			return
		}
		t := frame.Track.ToDomain()
		r.mu.Lock()
		for i, existing := range r.tracks {
			if existing.ID == t.ID {
				r.tracks[i].Muted = t.Muted
				break
			}
		}
		r.mu.Unlock()
		r.emit(func(l *contract.RoomListener) {
			if frame.Event == EventTrackMuted && l.TrackMuted != nil {
				l.TrackMuted(t)
			}
			if frame.Event == EventTrackUnmuted && l.TrackUnmuted != nil {
				l.TrackUnmuted(t)
			}
		})
	case EventData:
		if frame.Sender == nil {
			return
		}
		sender := frame.Sender.ToDomain()
		r.emit(func(l *contract.RoomListener) {
			if l.DataReceived != nil {
				l.DataReceived(frame.Payload, sender)
			}
		})
	default:
		r.log.Debug("Ignoring unknown relay event", "event", frame.Event)
	}
}

func (r *Room) emit(fn func(l *contract.RoomListener)) {
	r.mu.Lock()
	listeners := append([]*contract.RoomListener(nil), r.listeners...)
	r.mu.Unlock()
	for _, l := range listeners {
		fn(l)
	}
}

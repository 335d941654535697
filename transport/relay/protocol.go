// Package relay implements the media transport contract over a websocket
// relay server. Tracks are metadata-only announcements and the data
// channel is a room-wide broadcast; actual media never crosses the relay,
// which keeps this package a transport adapter rather than a media engine.
package relay

import "github.com/mikemainguy/video-conferencing-app/domain"

// Client → server operations.
const (
	OpPublishTrack   = "publish_track"
	OpUnpublishTrack = "unpublish_track"
	OpSetEnabled     = "set_enabled"
	OpData           = "data"
)

// Server → client events.
const (
	EventWelcome           = "welcome"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventTrackPublished    = "track_published"
	EventTrackUnpublished  = "track_unpublished"
	EventTrackMuted        = "track_muted"
	EventTrackUnmuted      = "track_unmuted"
	EventData              = "data"
)

// ClientFrame is every message a client sends after the websocket upgrade.
type ClientFrame struct {
	Op      string `json:"op"`
	TrackID string `json:"track_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

// ServerFrame is every message the relay pushes to a client. Which fields
// are set depends on Event; Welcome carries the full current room state so
// a joiner starts from the relay's enumeration order.
type ServerFrame struct {
	Event        string            `json:"event"`
	Room         string            `json:"room,omitempty"`
	Local        *WireParticipant  `json:"local,omitempty"`
	Participant  *WireParticipant  `json:"participant,omitempty"`
	Participants []WireParticipant `json:"participants,omitempty"`
	Track        *WireTrack        `json:"track,omitempty"`
	Tracks       []WireTrack       `json:"tracks,omitempty"`
	Sender       *WireParticipant  `json:"sender,omitempty"`
	Payload      []byte            `json:"payload,omitempty"`
}

type WireParticipant struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

type WireTrack struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Muted       bool            `json:"muted,omitempty"`
	Participant WireParticipant `json:"participant"`
}

func ToWireParticipant(p domain.Participant) WireParticipant {
	return WireParticipant{Identity: p.Identity, Name: p.Name, Metadata: p.Metadata}
}

func (p WireParticipant) ToDomain() domain.Participant {
	return domain.Participant{Identity: p.Identity, Name: p.Name, Metadata: p.Metadata}
}

func ToWireTrack(t domain.Track) WireTrack {
	return WireTrack{
		ID:          string(t.ID),
		Kind:        string(t.Kind),
		Muted:       t.Muted,
		Participant: ToWireParticipant(t.Participant),
	}
}

func (t WireTrack) ToDomain() domain.Track {
	return domain.Track{
		ID:          domain.TrackID(t.ID),
		Kind:        domain.TrackKind(t.Kind),
		Muted:       t.Muted,
		Participant: t.Participant.ToDomain(),
	}
}

package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
	"github.com/mikemainguy/video-conferencing-app/errors"
)

var _ contract.Room = (*Room)(nil)

// Room is one member's live connection to a hub room. All mutable state is
// guarded by the hub lock; events are emitted after the lock is released
// so listener callbacks may query the room freely.
type Room struct {
	hub         *Hub
	hr          *hubRoom
	local       domain.Participant
	denyDevices bool

	listeners []*contract.RoomListener
	closed    bool
}

func (r *Room) Name() string { return r.hr.name }

func (r *Room) LocalParticipant() domain.Participant { return r.local }

func (r *Room) Participants() []domain.Participant {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()
	out := make([]domain.Participant, 0, len(r.hr.members))
	for _, m := range r.hr.members {
		out = append(out, m.local)
	}
	return out
}

func (r *Room) Tracks(kinds ...domain.TrackKind) []domain.Track {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()
	out := make([]domain.Track, 0, len(r.hr.tracks))
	for _, t := range r.hr.tracks {
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

func (r *Room) PublishData(_ context.Context, payload []byte, _ contract.PublishDataOptions) error {
	r.hub.mu.Lock()
	if r.closed {
		r.hub.mu.Unlock()
		return errors.ErrRoomClosed
	}
	others := r.hr.othersLocked(r)
	sender := r.local
	r.hub.mu.Unlock()

	data := make([]byte, len(payload))
	copy(data, payload)
	for _, member := range others {
		member.emitData(data, sender)
	}
	return nil
}

func (r *Room) CreateLocalTracks(_ context.Context, opts contract.LocalTrackOptions) ([]contract.LocalTrack, error) {
	if r.denyDevices {
		return nil, fmt.Errorf("device access denied")
	}
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
	r.hub.mu.Lock()
	if r.closed {
		r.hub.mu.Unlock()
		return domain.Track{}, errors.ErrRoomClosed
	}
	published := domain.Track{
		ID:          domain.TrackID(uuid.NewString()),
		Kind:        track.Kind,
		Participant: r.local,
	}
	r.hr.tracks = append(r.hr.tracks, published)
	members := append([]*Room(nil), r.hr.members...)
	r.hub.mu.Unlock()

	for _, member := range members {
		member.emitTrackPublished(published)
	}
	return published, nil
}

func (r *Room) SetCameraEnabled(ctx context.Context, enabled bool) error {
	return r.setKindEnabled(ctx, domain.KindCamera, enabled)
}

func (r *Room) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	return r.setKindEnabled(ctx, domain.KindMicrophone, enabled)
}

func (r *Room) SetScreenShareEnabled(ctx context.Context, enabled bool) error {
	return r.setKindEnabled(ctx, domain.KindScreenShare, enabled)
}

// setKindEnabled mirrors the usual media SDK semantics: enabling without a
// published track publishes one, enabling a muted track unmutes it, and
// disabling mutes rather than unpublishing.
func (r *Room) setKindEnabled(ctx context.Context, kind domain.TrackKind, enabled bool) error {
	r.hub.mu.Lock()
	if r.closed {
		r.hub.mu.Unlock()
		return errors.ErrRoomClosed
	}
	idx := -1
	for i, t := range r.hr.tracks {
		if t.Participant.Identity == r.local.Identity && t.Kind == kind {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.hub.mu.Unlock()
		if !enabled {
			return nil
		}
		_, err := r.PublishTrack(ctx, contract.LocalTrack{Kind: kind})
		return err
	}
	if r.hr.tracks[idx].Muted == !enabled {
		r.hub.mu.Unlock()
		return nil
	}
	r.hr.tracks[idx].Muted = !enabled
	track := r.hr.tracks[idx]
	members := append([]*Room(nil), r.hr.members...)
	r.hub.mu.Unlock()

	for _, member := range members {
		if enabled {
			member.emitTrackUnmuted(track)
		} else {
			member.emitTrackMuted(track)
		}
	}
	return nil
}

func (r *Room) Attach(l *contract.RoomListener) {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Room) Detach(l *contract.RoomListener) {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Disconnect removes the member from the room, unpublishes its tracks for
// the remaining members, and tells the departing member's own listeners
// the connection reached Disconnected. Safe to call twice.
func (r *Room) Disconnect() error {
	r.hub.mu.Lock()
	if r.closed {
		r.hub.mu.Unlock()
		return nil
	}
	r.closed = true
	r.hr.removeMemberLocked(r)
	removed := r.hr.removeTracksOfLocked(r.local.Identity)
	remaining := append([]*Room(nil), r.hr.members...)
	if len(r.hr.members) == 0 {
		delete(r.hub.rooms, r.hr.name)
	}
	r.hub.mu.Unlock()

	for _, member := range remaining {
		for _, t := range removed {
			member.emitTrackUnpublished(t)
		}
		member.emitParticipantLeft(r.local)
	}
	r.emitConnectionState(domain.StateDisconnected)
	return nil
}

func (r *Room) snapshotListeners() []*contract.RoomListener {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()
	return append([]*contract.RoomListener(nil), r.listeners...)
}

func (r *Room) emitConnectionState(state domain.SessionState) {
	for _, l := range r.snapshotListeners() {
		if l.ConnectionStateChanged != nil {
			l.ConnectionStateChanged(state)
		}
	}
}

func (r *Room) emitParticipantJoined(p domain.Participant) {
	for _, l := range r.snapshotListeners() {
		if l.ParticipantJoined != nil {
			l.ParticipantJoined(p)
		}
	}
}

func (r *Room) emitParticipantLeft(p domain.Participant) {
	for _, l := range r.snapshotListeners() {
		if l.ParticipantLeft != nil {
			l.ParticipantLeft(p)
		}
	}
}

func (r *Room) emitTrackPublished(t domain.Track) {
	for _, l := range r.snapshotListeners() {
		if l.TrackPublished != nil {
			l.TrackPublished(t)
		}
	}
}

func (r *Room) emitTrackUnpublished(t domain.Track) {
	for _, l := range r.snapshotListeners() {
		if l.TrackUnpublished != nil {
			l.TrackUnpublished(t)
		}
	}
}

func (r *Room) emitTrackMuted(t domain.Track) {
	for _, l := range r.snapshotListeners() {
		if l.TrackMuted != nil {
			l.TrackMuted(t)
		}
	}
}

func (r *Room) emitTrackUnmuted(t domain.Track) {
	for _, l := range r.snapshotListeners() {
		if l.TrackUnmuted != nil {
			l.TrackUnmuted(t)
		}
	}
}

func (r *Room) emitData(payload []byte, sender domain.Participant) {
	for _, l := range r.snapshotListeners() {
		if l.DataReceived != nil {
			l.DataReceived(payload, sender)
		}
	}
}

// Package layout derives the ordered, reorderable tile list of a room from
// the transport's current track set.
//
// Camera tracks form the reorderable grid; screen-share tracks render in a
// fixed row and never take part in reordering. Manual order survives only
// within a stable-membership window: any track or participant change resets
// the order to the transport's own enumeration order.
package layout

import (
	"sync"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
)

// previewLimit is the maximum number of runes of a chat preview before it
// is truncated with a trailing ellipsis.
const previewLimit = 30

// ChatIndex is the read-only chat state the engine pulls tile decoration
// from. The engine holds no other reference to chat internals.
type ChatIndex interface {
	Unread(displayName string) bool
	Latest(displayName string) (string, bool)
}

// Engine maintains the ordered sequence of camera track ids for one room.
type Engine struct {
	mu       sync.Mutex
	room     contract.Room
	index    ChatIndex
	listener *contract.RoomListener
	order    []domain.TrackID
}

func New(room contract.Room, index ChatIndex) *Engine {
	e := &Engine{room: room, index: index}
	e.Refresh()
	return e
}

// Attach subscribes the engine to membership changes so the order is
// recomputed whenever a track is published or unpublished or a participant
// joins or leaves.
func (e *Engine) Attach() {
	e.mu.Lock()
	if e.listener != nil {
		e.mu.Unlock()
		return
	}
	l := &contract.RoomListener{
		TrackPublished:    func(domain.Track) { e.Refresh() },
		TrackUnpublished:  func(domain.Track) { e.Refresh() },
		ParticipantJoined: func(domain.Participant) { e.Refresh() },
		ParticipantLeft:   func(domain.Participant) { e.Refresh() },
	}
	e.listener = l
	e.mu.Unlock()
	e.room.Attach(l)
}

// Detach removes the listener attached by Attach.
func (e *Engine) Detach() {
	e.mu.Lock()
	listener := e.listener
	e.listener = nil
	e.mu.Unlock()
	if listener != nil {
		e.room.Detach(listener)
	}
}

// Refresh resets the order to the current camera track ids in the
// transport's enumeration order. Any prior manual reordering is discarded;
// manual order is deliberately not preserved across membership changes.
func (e *Engine) Refresh() {
	tracks := e.room.Tracks(domain.KindCamera)
	order := make([]domain.TrackID, 0, len(tracks))
	for _, t := range tracks {
		order = append(order, t.ID)
	}
	e.mu.Lock()
	e.order = order
	e.mu.Unlock()
}

// Reorder applies one drag gesture: the source id is removed from its
// position and reinserted at the target id's position, leaving every other
// relative order unchanged. Unknown ids and dragging a tile onto itself
// are no-ops.
func (e *Engine) Reorder(source, target domain.TrackID) {
	if source == target {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	from, to := -1, -1
	for i, id := range e.order {
		switch id {
		case source:
			from = i
		case target:
			to = i
		}
	}
	if from < 0 || to < 0 {
		return
	}
	order := append(e.order[:from:from], e.order[from+1:]...)
	order = append(order[:to], append([]domain.TrackID{source}, order[to:]...)...)
	e.order = order
}

// Order returns a snapshot of the current camera track id sequence.
func (e *Engine) Order() []domain.TrackID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.TrackID, len(e.order))
	copy(out, e.order)
	return out
}

// Tiles resolves the ordered ids against the live track set and decorates
// each tile with the owning participant's unread flag and latest-message
// preview. An id whose track vanished between a recompute and this render
// is skipped rather than failing the render.
func (e *Engine) Tiles() []domain.Tile {
	order := e.Order()
	byID := make(map[domain.TrackID]domain.Track)
	for _, t := range e.room.Tracks(domain.KindCamera) {
		byID[t.ID] = t
	}

	tiles := make([]domain.Tile, 0, len(order))
	for _, id := range order {
		track, ok := byID[id]
		if !ok {
			continue
		}
		name := track.Participant.DisplayName()
		preview := ""
		if text, ok := e.index.Latest(name); ok {
			preview = TruncatePreview(text)
		}
		tiles = append(tiles, domain.Tile{
			TrackID:  id,
			Position: len(tiles),
			Track:    track,
			Unread:   e.index.Unread(name),
			Preview:  preview,
		})
	}
	return tiles
}

// ScreenShareTiles returns the fixed, never-reorderable screen-share row in
// enumeration order, without chat decoration.
func (e *Engine) ScreenShareTiles() []domain.Tile {
	tracks := e.room.Tracks(domain.KindScreenShare)
	tiles := make([]domain.Tile, 0, len(tracks))
	for i, t := range tracks {
		tiles = append(tiles, domain.Tile{TrackID: t.ID, Position: i, Track: t})
	}
	return tiles
}

// TruncatePreview shortens a message to its first 30 runes plus an
// ellipsis; shorter messages come back unmodified.
func TruncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}

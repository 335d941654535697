package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
)

// fakeRoom is a minimal in-memory Room whose track set the test controls
// directly.
type fakeRoom struct {
	contract.Room
	tracks    []domain.Track
	listeners []*contract.RoomListener
}

func (f *fakeRoom) Tracks(kinds ...domain.TrackKind) []domain.Track {
	var out []domain.Track
	for _, t := range f.tracks {
		for _, k := range kinds {
			if t.Kind == k {
				out = append(out, t)
			}
		}
	}
	return out
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

func (f *fakeRoom) publishCamera(id, identity string) {
	track := domain.Track{
		ID:          domain.TrackID(id),
		Kind:        domain.KindCamera,
		Participant: domain.Participant{Identity: identity},
	}
	f.tracks = append(f.tracks, track)
	for _, l := range f.listeners {
		if l.TrackPublished != nil {
			l.TrackPublished(track)
		}
	}
}

func (f *fakeRoom) unpublish(id string) {
	for i, t := range f.tracks {
		if t.ID == domain.TrackID(id) {
			removed := t
			f.tracks = append(f.tracks[:i], f.tracks[i+1:]...)
			for _, l := range f.listeners {
				if l.TrackUnpublished != nil {
					l.TrackUnpublished(removed)
				}
			}
			return
		}
	}
}

// fakeIndex is a map-backed ChatIndex.
type fakeIndex struct {
	unread map[string]bool
	latest map[string]string
}

func (f *fakeIndex) Unread(name string) bool { return f.unread[name] }

func (f *fakeIndex) Latest(name string) (string, bool) {
	text, ok := f.latest[name]
	return text, ok
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{unread: map[string]bool{}, latest: map[string]string{}}
}

func roomWithCameras(ids ...string) *fakeRoom {
	room := &fakeRoom{}
	for _, id := range ids {
		room.tracks = append(room.tracks, domain.Track{
			ID:          domain.TrackID(id),
			Kind:        domain.KindCamera,
			Participant: domain.Participant{Identity: "owner-" + id},
		})
	}
	return room
}

func ids(order []domain.TrackID) []string {
	out := make([]string, len(order))
	for i, id := range order {
		out[i] = string(id)
	}
	return out
}

func Test_Order_Follows_Transport_Enumeration(t *testing.T) {
	req := require.New(t)

	engine := New(roomWithCameras("A", "B", "C"), newFakeIndex())

	req.Equal([]string{"A", "B", "C"}, ids(engine.Order()))
}

func Test_Reorder_Moves_Source_To_Target_Position(t *testing.T) {
	req := require.New(t)
	engine := New(roomWithCameras("A", "B", "C"), newFakeIndex())

	// When dragging the first tile onto the last
	engine.Reorder("A", "C")

	// Then the source lands at the target's slot, others keep their order
	req.Equal([]string{"B", "C", "A"}, ids(engine.Order()))
}

func Test_Reorder_Backwards_And_NoOps(t *testing.T) {
	req := require.New(t)
	engine := New(roomWithCameras("A", "B", "C", "D"), newFakeIndex())

	engine.Reorder("D", "B")
	req.Equal([]string{"A", "D", "B", "C"}, ids(engine.Order()))

	// Unknown ids and self-drags change nothing
	engine.Reorder("Z", "A")
	engine.Reorder("A", "Z")
	engine.Reorder("B", "B")
	req.Equal([]string{"A", "D", "B", "C"}, ids(engine.Order()))
}

func Test_Membership_Change_Resets_Manual_Order(t *testing.T) {
	req := require.New(t)
	room := roomWithCameras("A", "B", "C")
	engine := New(room, newFakeIndex())
	engine.Attach()
	defer engine.Detach()

	engine.Reorder("A", "C")
	req.Equal([]string{"B", "C", "A"}, ids(engine.Order()))

	// When a new camera appears, the manual order is discarded
	room.publishCamera("D", "dave")
	req.Equal([]string{"A", "B", "C", "D"}, ids(engine.Order()))

	// Same on departure
	engine.Reorder("D", "A")
	room.unpublish("B")
	req.Equal([]string{"A", "C", "D"}, ids(engine.Order()))
}

func Test_Tiles_Skip_Tracks_That_Vanished(t *testing.T) {
	req := require.New(t)
	room := roomWithCameras("A", "B", "C")
	engine := New(room, newFakeIndex())

	// Track B vanishes without the engine hearing about it
	room.tracks = append(room.tracks[:1], room.tracks[2:]...)

	tiles := engine.Tiles()
	req.Len(tiles, 2)
	req.Equal(domain.TrackID("A"), tiles[0].TrackID)
	req.Equal(domain.TrackID("C"), tiles[1].TrackID)
	req.Equal(0, tiles[0].Position)
	req.Equal(1, tiles[1].Position)
}

func Test_Tiles_Are_Decorated_From_The_Chat_Index(t *testing.T) {
	req := require.New(t)
	room := roomWithCameras("A", "B")
	index := newFakeIndex()
	index.unread["owner-A"] = true
	index.latest["owner-A"] = strings.Repeat("x", 40)
	engine := New(room, index)

	tiles := engine.Tiles()
	req.True(tiles[0].Unread)
	req.Equal(strings.Repeat("x", 30)+"...", tiles[0].Preview)
	req.False(tiles[1].Unread)
	req.Empty(tiles[1].Preview)
}

func Test_ScreenShare_Tiles_Are_Fixed_And_Undecorated(t *testing.T) {
	req := require.New(t)
	room := roomWithCameras("A")
	room.tracks = append(room.tracks, domain.Track{
		ID:          "S",
		Kind:        domain.KindScreenShare,
		Participant: domain.Participant{Identity: "owner-A"},
	})
	index := newFakeIndex()
	index.unread["owner-A"] = true
	engine := New(room, index)

	// Screen shares never join the reorderable camera sequence
	req.Equal([]string{"A"}, ids(engine.Order()))

	shares := engine.ScreenShareTiles()
	req.Len(shares, 1)
	req.Equal(domain.TrackID("S"), shares[0].TrackID)
	req.False(shares[0].Unread)
	req.Empty(shares[0].Preview)
}

func Test_TruncatePreview(t *testing.T) {
	req := require.New(t)

	req.Equal("short", TruncatePreview("short"))
	req.Equal(strings.Repeat("a", 30), TruncatePreview(strings.Repeat("a", 30)))
	req.Equal(strings.Repeat("a", 30)+"...", TruncatePreview(strings.Repeat("a", 31)))

	// Runes, not bytes
	long := strings.Repeat("é", 35)
	req.Equal(strings.Repeat("é", 30)+"...", TruncatePreview(long))
}

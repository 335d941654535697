package domain

// Tile is the render slot derived for one camera or screen-share track.
// Tiles are recomputed on demand and never persisted.
type Tile struct {
	TrackID  TrackID
	Position int
	Track    Track
	Unread   bool
	Preview  string
}

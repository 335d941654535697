package domain

// TrackID is the stable, transport-assigned identifier of a published track.
type TrackID string

// TrackKind is the media category of a track. Only cameras and screen
// shares are laid out as tiles; microphones exist for device handling.
type TrackKind string

const (
	KindCamera      TrackKind = "camera"
	KindMicrophone  TrackKind = "microphone"
	KindScreenShare TrackKind = "screenshare"
)

// Track references one published media stream. The transport owns the
// track's lifetime; this type only carries its identity and ownership.
type Track struct {
	ID          TrackID
	Kind        TrackKind
	Participant Participant
	Muted       bool
}

package session

import (
	"context"
	"log/slog"

	"github.com/mikemainguy/video-conferencing-app/contract"
)

// DeviceAcquirer publishes local camera and microphone tracks after a
// successful connection. Acquisition is strictly best-effort: a room with
// no local media is a valid, continuing state, so failures are logged and
// never fail the session. There is no automatic retry; re-enabling a
// device later is a separate user action.
type DeviceAcquirer struct {
	log *slog.Logger
}

func NewDeviceAcquirer(log *slog.Logger) *DeviceAcquirer {
	return &DeviceAcquirer{log: log}
}

// Publish requests camera and microphone together as one logical attempt
// and publishes whichever tracks were granted.
func (d *DeviceAcquirer) Publish(ctx context.Context, room contract.Room) {
	tracks, err := room.CreateLocalTracks(ctx, contract.LocalTrackOptions{Audio: true, Video: true})
	if err != nil {
		d.log.Warn("Failed to acquire camera and microphone", "error", err)
		return
	}
	published := 0
	for _, track := range tracks {
		if _, err := room.PublishTrack(ctx, track); err != nil {
			d.log.Warn("Failed to publish local track", "kind", track.Kind, "error", err)
			continue
		}
		published++
	}
	if published == len(tracks) && published > 0 {
		d.log.Info("Camera and microphone enabled")
	}
}

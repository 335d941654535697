package relay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikemainguy/video-conferencing-app/domain"
)

func Test_Ws_Endpoint_Converts_Schemes(t *testing.T) {
	req := require.New(t)

	endpoint, err := wsEndpoint("http://localhost:3003", "demo", "abc")
	req.NoError(err)
	req.Equal("ws://localhost:3003/ws/rooms/demo?token=abc", endpoint)

	endpoint, err = wsEndpoint("https://rooms.example.com/", "demo", "abc")
	req.NoError(err)
	req.Equal("wss://rooms.example.com/ws/rooms/demo?token=abc", endpoint)

	endpoint, err = wsEndpoint("wss://rooms.example.com", "demo", "abc")
	req.NoError(err)
	req.Equal("wss://rooms.example.com/ws/rooms/demo?token=abc", endpoint)
}

func Test_Ws_Endpoint_Escapes_Room_Names(t *testing.T) {
	req := require.New(t)

	endpoint, err := wsEndpoint("http://localhost:3003", "team room/1", "a c")
	req.NoError(err)
	req.Equal("ws://localhost:3003/ws/rooms/team%20room%2F1?token=a+c", endpoint)
}

func Test_Ws_Endpoint_Rejects_Unknown_Schemes(t *testing.T) {
	req := require.New(t)

	_, err := wsEndpoint("ftp://localhost", "demo", "abc")
	req.Error(err)
}

func Test_Wire_Track_Roundtrip(t *testing.T) {
	req := require.New(t)
	track := domain.Track{
		ID:    "track-1",
		Kind:  domain.KindScreenShare,
		Muted: true,
		Participant: domain.Participant{
			Identity: "alice",
			Name:     "Alice Doe",
			Metadata: `{"name":"Alice Doe"}`,
		},
	}

	req.Equal(track, ToWireTrack(track).ToDomain())
}

// Package domain contains core concepts of the video room client.
// This file defines chat messages and the indexes derived from them.
// Messages are immutable once appended to a log.
package domain

// MessageOrigin records where a chat message entered the live log from.
type MessageOrigin string

const (
	OriginLocal      MessageOrigin = "local"
	OriginRemote     MessageOrigin = "remote"
	OriginHistorical MessageOrigin = "historical"
)

// LocalSenderMarker is the sender recorded for messages this client sent
// itself. The marker is also what history rebuilds exclude so a participant
// never sees their own messages as someone else's latest activity.
const LocalSenderMarker = "You"

// Default message colors, matching what remote peers broadcast when the
// envelope carries none and what this client stamps on its own sends.
const (
	DefaultRemoteColor = "#228be6"
	LocalSendColor     = "#40c057"
)

// ChatMessage is one entry of the live, append-only chat log.
// Timestamp is milliseconds since the Unix epoch.
type ChatMessage struct {
	Sender    string
	Text      string
	Timestamp int64
	Color     string
	Origin    MessageOrigin
}

// StoredMessage is the wire and persistence shape of a chat message, shared
// by the broadcast mirror and the history store HTTP contract.
type StoredMessage struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Color     string `json:"color"`
}

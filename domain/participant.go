// Package domain contains core concepts of the video room client.
// This file defines Participant entities and display-name resolution.
// No runtime, network, or UI logic should be added here.
package domain

import "encoding/json"

// UnknownDisplayName is used when neither metadata nor identity yields a name.
const UnknownDisplayName = "Unknown"

// Participant is one member of a room as reported by the transport.
// Metadata is an opaque transport-supplied string; when it holds a JSON
// object with a "name" field, that name wins for display purposes.
type Participant struct {
	Identity string
	Name     string
	Metadata string
}

// DisplayName resolves the human-facing name of a participant:
// metadata name, then transport name, then identity, then "Unknown".
func (p Participant) DisplayName() string {
	if p.Metadata != "" {
		var meta struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal([]byte(p.Metadata), &meta); err == nil && meta.Name != "" {
			return meta.Name
		}
	}
	if p.Name != "" {
		return p.Name
	}
	if p.Identity != "" {
		return p.Identity
	}
	return UnknownDisplayName
}

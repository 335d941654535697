package domain

// SessionState is the lifecycle phase of one room session.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
	StateError        SessionState = "error"
	StateDisconnected SessionState = "disconnected"
)

// SessionParams is the triple a room visit is instantiated with.
type SessionParams struct {
	ServerURL string
	Token     string
	RoomName  string
}

// Valid reports whether every field needed to join a room is present.
func (p SessionParams) Valid() bool {
	return p.ServerURL != "" && p.Token != "" && p.RoomName != ""
}

// Session is the observable state of one room visit. It is owned
// exclusively by the session controller.
type Session struct {
	Params       SessionParams
	State        SessionState
	ErrorMessage string
}

package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrAlreadyConnected = fmt.Errorf("session already connecting or connected")
	ErrNoTransport      = fmt.Errorf("no transport configured")
	ErrTokenRequired    = fmt.Errorf("a join token is required to connect")
	ErrPublishFailed    = fmt.Errorf("publishing chat message failed")
	ErrRoomClosed       = fmt.Errorf("room connection is closed")
	ErrUnknownAccount   = fmt.Errorf("unknown account")
	ErrBadCredentials   = fmt.Errorf("invalid credentials")
)

// Package session owns the lifecycle of one room visit: connecting the
// transport, publishing local devices after a successful connect, and
// tearing the handle down exactly once.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
	"github.com/mikemainguy/video-conferencing-app/errors"
)

// LeaveFunc is invoked exactly once per session termination, whether the
// user left deliberately or the owning view was torn down.
type LeaveFunc func()

// Controller drives the connect/connected/error/disconnected state machine
// around a single transport room handle. It is the only component allowed
// to call Connect and Disconnect on the transport.
type Controller struct {
	mu        sync.Mutex
	log       *slog.Logger
	transport contract.Transport
	devices   *DeviceAcquirer

	params   domain.SessionParams
	state    domain.SessionState
	errMsg   string
	room     contract.Room
	listener *contract.RoomListener

	onLeave   LeaveFunc
	leaveOnce sync.Once
	closed    bool
}

func NewController(log *slog.Logger, transport contract.Transport,
	params domain.SessionParams, onLeave LeaveFunc) *Controller {
	return &Controller{
		log:       log,
		transport: transport,
		devices:   NewDeviceAcquirer(log),
		params:    params,
		state:     domain.StateIdle,
		onLeave:   onLeave,
	}
}

// Session returns a snapshot of the observable session state.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Session{Params: c.params, State: c.state, ErrorMessage: c.errMsg}
}

// Room returns the live handle, or nil outside the Connected state.
func (c *Controller) Room() contract.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// SetParams replaces the join inputs. The caller decides when to attempt
// the guarded auto-connect via MaybeConnect.
func (c *Controller) SetParams(p domain.SessionParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = p
}

// MaybeConnect attempts a connect only when the join inputs are all valid
// and the session is Idle or Disconnected. It reports whether an attempt
// was made. Connect itself refuses to run twice concurrently, so rapidly
// changing inputs cannot produce duplicate connects.
func (c *Controller) MaybeConnect(ctx context.Context) bool {
	c.mu.Lock()
	eligible := c.params.Valid() &&
		(c.state == domain.StateIdle || c.state == domain.StateDisconnected)
	c.mu.Unlock()
	if !eligible {
		return false
	}
	if err := c.Connect(ctx); err != nil {
		c.log.Warn("Auto-connect attempt failed", "error", err)
	}
	return true
}

// Connect establishes the transport connection. It is a no-op while a
// connect is already in flight or the session is Connected. On success the
// state becomes Connected and local devices are published once; on failure
// the state becomes Error and a retry is a fresh Connect call.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == domain.StateConnecting || c.state == domain.StateConnected {
		c.mu.Unlock()
		return nil
	}
	if c.transport == nil {
		c.mu.Unlock()
		return errors.ErrNoTransport
	}
	if c.params.Token == "" {
		c.state = domain.StateError
		c.errMsg = errors.ErrTokenRequired.Error()
		c.mu.Unlock()
		return errors.ErrTokenRequired
	}
	c.state = domain.StateConnecting
	c.errMsg = ""
	params := c.params
	c.mu.Unlock()

	room, err := c.transport.Connect(ctx, params.ServerURL, params.Token, contract.ConnectOptions{
		RoomName:      params.RoomName,
		AutoSubscribe: true,
	})

	c.mu.Lock()
	if err != nil {
		c.state = domain.StateError
		c.errMsg = err.Error()
		c.mu.Unlock()
		return fmt.Errorf("connecting to room %q: %w", params.RoomName, err)
	}
	if c.closed {
		// Teardown happened while the connect was in flight. The session
		// is gone, so the fresh handle must not leak.
		c.mu.Unlock()
		_ = room.Disconnect()
		return errors.ErrRoomClosed
	}
	c.room = room
	c.state = domain.StateConnected
	c.listener = &contract.RoomListener{
		ConnectionStateChanged: c.onConnectionStateChanged,
	}
	room.Attach(c.listener)
	c.mu.Unlock()

	c.log.Info("Connected to room", "room", params.RoomName)
	c.devices.Publish(ctx, room)
	return nil
}

// onConnectionStateChanged tracks transport-initiated disconnects. The
// leave callback is reserved for deliberate termination, so only the state
// flips here.
func (c *Controller) onConnectionStateChanged(state domain.SessionState) {
	if state != domain.StateDisconnected {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.StateConnected {
		c.state = domain.StateDisconnected
	}
}

// Disconnect tears the transport handle down if one exists, marks the
// session Disconnected, and fires the leave callback. Safe to call from
// any state and at any number of times; the callback fires once.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	room := c.room
	listener := c.listener
	c.room = nil
	c.listener = nil
	c.state = domain.StateDisconnected
	c.mu.Unlock()

	if room != nil {
		if listener != nil {
			room.Detach(listener)
		}
		if err := room.Disconnect(); err != nil {
			c.log.Warn("Transport disconnect failed", "error", err)
		}
	}
	if c.onLeave != nil {
		c.leaveOnce.Do(c.onLeave)
	}
}

// Close is the unconditional teardown for view destruction. Any existing
// handle is disconnected regardless of state, and a connect still in
// flight will discard its handle on resolution.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Disconnect()
}

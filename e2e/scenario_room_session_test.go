package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mikemainguy/video-conferencing-app/chatsync"
	"github.com/mikemainguy/video-conferencing-app/domain"
	"github.com/mikemainguy/video-conferencing-app/layout"
	"github.com/mikemainguy/video-conferencing-app/repositories"
	"github.com/mikemainguy/video-conferencing-app/session"
	"github.com/mikemainguy/video-conferencing-app/transport/memory"
)

type testRoomSessionSuite struct {
	BaseSuite
}

func TestRoomSessionSuite(t *testing.T) {
	suite.Run(t, &testRoomSessionSuite{})
}

// participant bundles the full client stack for one identity.
type participant struct {
	controller *session.Controller
	sync       *chatsync.Sync
	engine     *layout.Engine
	left       bool
}

func (s *testRoomSessionSuite) join(hub *memory.Hub, store *repositories.MemoryRepository, identity string) *participant {
	p := &participant{}
	transport := memory.NewTransport(hub, memory.IdentityResolver)
	p.controller = session.NewController(s.Log, transport,
		domain.SessionParams{
			ServerURL: "memory://",
			Token:     identity,
			RoomName:  s.Config.Room,
		},
		func() { p.left = true },
	)
	s.Require().True(p.controller.MaybeConnect(context.Background()))
	s.Require().Equal(domain.StateConnected, p.controller.Session().State)

	room := p.controller.Room()
	p.sync = chatsync.New(s.Log, room, store, s.Config.Room)
	p.sync.Attach()
	p.engine = layout.New(room, p.sync)
	p.engine.Attach()
	return p
}

func (p *participant) leave() {
	p.engine.Detach()
	p.sync.Detach()
	p.controller.Close()
}

// waitFor polls until the condition holds or the deadline passes. The
// store mirror is fire-and-forget, so scenarios wait instead of assuming.
func (s *testRoomSessionSuite) waitFor(cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Require().True(cond())
}

func (s *testRoomSessionSuite) TestFullRoomSessionFlow() {
	hub := memory.NewHub(s.Log)
	store := repositories.NewMemoryRepository(s.Log, repositories.DefaultRetention)
	ctx := context.Background()

	s.Step("Alice joins and her devices are published")
	alice := s.join(hub, store, "alice")
	cameras := alice.controller.Room().Tracks(domain.KindCamera)
	s.Require().Len(cameras, 1)
	s.Require().Equal("alice", cameras[0].Participant.Identity)

	s.Step("Bob joins and both see two camera tiles")
	bob := s.join(hub, store, "bob")
	s.Require().Len(bob.engine.Tiles(), 2)
	s.waitFor(func() bool { return len(alice.engine.Tiles()) == 2 })

	s.Step("Bob sends a message, Alice receives and mirrors it")
	s.Require().NoError(bob.sync.Send(ctx, "hello alice"))
	s.waitFor(func() bool {
		msgs := alice.sync.Messages()
		return len(msgs) == 1 && msgs[0].Sender == "bob"
	})
	s.Require().True(alice.sync.Unread("bob"))
	preview, ok := alice.sync.Latest("bob")
	s.Require().True(ok)
	s.Require().Equal("hello alice", preview)

	// Both Bob's send and Alice's receive mirror the message; the store
	// simply keeps both appends since it never deduplicates.
	s.waitFor(func() bool {
		stored, err := store.Messages(ctx, s.Config.Room)
		return err == nil && len(stored) >= 1
	})

	s.Step("A fresh joiner loads history instead of starting blank")
	carol := s.join(hub, store, "carol")
	s.Require().NoError(carol.sync.LoadHistory(ctx))
	msgs := carol.sync.Messages()
	s.Require().NotEmpty(msgs)
	s.Require().Equal(domain.OriginHistorical, msgs[0].Origin)

	s.Step("Alice reorders her tiles without affecting Bob")
	order := alice.engine.Order()
	s.Require().Len(order, 3)
	alice.engine.Reorder(order[0], order[2])
	s.Require().Equal([]domain.TrackID{order[1], order[2], order[0]}, alice.engine.Order())
	s.Require().Equal(order, bob.engine.Order())

	s.Step("Carol leaves and the remaining layouts reset")
	carol.leave()
	s.Require().True(carol.left)
	s.waitFor(func() bool { return len(alice.engine.Tiles()) == 2 })
	s.waitFor(func() bool { return len(bob.engine.Tiles()) == 2 })

	s.Step("Clearing history empties the store and both clients")
	s.Require().NoError(alice.sync.Clear(ctx))
	stored, err := store.Messages(ctx, s.Config.Room)
	s.Require().NoError(err)
	s.Require().Empty(stored)
	s.Require().Empty(alice.sync.Messages())

	s.Step("Everyone leaves exactly once")
	alice.leave()
	bob.leave()
	s.Require().True(alice.left)
	s.Require().True(bob.left)
	s.Require().Equal(domain.StateDisconnected, alice.controller.Session().State)
}

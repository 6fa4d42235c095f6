// Package session implements the connection controllers that drive the
// offer/answer exchange over a signaling channel and a transport session.
// One controller per process: Creator publishes an offer and streams audio
// out, Joiner reads it and plays audio back.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/signaling"
	"github.com/MSayban1/Audio-Streamer-22222/internal/transport"
)

// controller holds the pieces shared by both roles: the state machine, the
// signaling subscriptions, and the teardown path. Teardown is idempotent
// and runs the same way whether it came from an explicit disconnect, a
// transport failure, or a setup error.
type controller struct {
	channel   *signaling.Channel
	transport transport.Session
	machine   *Machine
	cleanup   *Cleanup
	log       *slog.Logger

	// releaseMedia stops the role's capture source or playback sink.
	// Nil when the role carries no media resource.
	releaseMedia func()

	mu   sync.Mutex
	subs []relay.Subscription
	torn bool
}

func newController(channel *signaling.Channel, sess transport.Session, role string) controller {
	return controller{
		channel:   channel,
		transport: sess,
		machine:   NewMachine(),
		cleanup:   NewCleanup(channel),
		log:       slog.With("room", channel.Room(), "role", role),
	}
}

// Machine exposes the controller's state machine for observation.
func (c *controller) Machine() *Machine {
	return c.machine
}

// State returns the current connection state.
func (c *controller) State() State {
	return c.machine.State()
}

func (c *controller) addSub(sub relay.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		sub.Cancel()
		return
	}
	c.subs = append(c.subs, sub)
}

// teardown cancels subscriptions, closes the transport, releases media and
// deletes the room. Safe to call more than once; only the first call acts.
func (c *controller) teardown() {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.torn = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if err := c.transport.Close(); err != nil {
		c.log.Debug("transport close", "error", err)
	}
	if c.releaseMedia != nil {
		c.releaseMedia()
	}
	c.cleanup.Run()
}

// fail moves to StateFailed and tears the session down. The state is set
// first so observers learn of the failure before resources vanish.
func (c *controller) fail(err error) {
	if c.machine.set(StateFailed) {
		c.log.Error("session failed", "error", err)
	}
	c.teardown()
}

// Disconnect ends the session deliberately. Idempotent, callable from any
// state; a session that already failed stays failed.
func (c *controller) Disconnect() {
	c.teardown()
	if c.machine.set(StateDisconnected) {
		c.log.Info("session disconnected")
	}
}

// onRemoteCandidate applies a candidate from the peer's log. Malformed
// candidates are skipped, never fatal: one bad entry must not sink a
// session that the remaining candidates could still establish.
func (c *controller) onRemoteCandidate(cand relay.Candidate) {
	if c.machine.State().Terminal() {
		return
	}
	if err := c.transport.AddRemoteCandidate(cand); err != nil {
		c.log.Debug("skipping unusable candidate", "error", err)
	}
}

// onTransportState maps transport-level state into the session machine.
func (c *controller) onTransportState(st transport.State) {
	switch st {
	case transport.StateConnected:
		if c.machine.set(StateConnected) {
			c.log.Info("peer connected")
		}
	case transport.StateFailed:
		c.fail(NewError("transport", ErrTransportFailed))
	}
}

// watchRemoteCandidates subscribes to the peer's candidate log. Entries
// published before the subscription are replayed in order, so subscribing
// after the descriptions are exchanged loses nothing.
func (c *controller) watchRemoteCandidates(ctx context.Context, dir signaling.Direction) error {
	sub, err := c.channel.WatchCandidates(ctx, dir, c.onRemoteCandidate)
	if err != nil {
		return err
	}
	c.addSub(sub)
	return nil
}

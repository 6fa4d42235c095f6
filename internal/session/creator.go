package session

import (
	"context"
	"sync"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/signaling"
	"github.com/MSayban1/Audio-Streamer-22222/internal/transport"
)

// StatusWaiting is published alongside the offer so a joiner (or an
// operator poking at the relay) can see the room is live before the
// answer lands.
const StatusWaiting = "waiting"

// Creator drives the sharing side: it publishes an offer, waits for the
// joiner's answer, and exchanges candidates until the transport connects.
type Creator struct {
	controller

	// publishCtx outlives Start: candidates trickle in from the
	// transport for as long as the session runs.
	publishCtx    context.Context
	cancelPublish context.CancelFunc

	answerMu      sync.Mutex
	answerApplied bool
}

// NewCreator builds the creator controller. releaseMedia, if non-nil, is
// invoked on teardown to stop the capture source.
func NewCreator(channel *signaling.Channel, sess transport.Session, releaseMedia func()) *Creator {
	c := &Creator{controller: newController(channel, sess, "creator")}
	c.releaseMedia = releaseMedia
	c.publishCtx, c.cancelPublish = context.WithCancel(context.Background())
	return c
}

// Start runs the creator flow up to the point where the session waits for
// a peer. It returns once the offer is published and the watches are in
// place; connection progress is reported through the state machine.
func (c *Creator) Start(ctx context.Context) error {
	c.machine.set(StateCreatingOffer)

	c.transport.OnConnectionStateChange(c.onTransportState)

	// Candidate discovery starts the moment the local description is
	// set, so the forwarder must already be registered here.
	c.transport.OnLocalCandidate(func(cand relay.Candidate) {
		if c.machine.State().Terminal() {
			return
		}
		if err := c.channel.PublishCandidate(c.publishCtx, signaling.FromCreator, cand); err != nil {
			c.log.Warn("candidate publish failed", "error", err)
		}
	})

	offer, err := c.transport.CreateOffer()
	if err != nil {
		return c.startFailed(NewError("create offer", err))
	}
	if err := c.transport.SetLocalDescription(offer); err != nil {
		return c.startFailed(NewError("set local description", err))
	}
	if err := c.channel.PublishOffer(ctx, offer); err != nil {
		return c.startFailed(err)
	}
	if err := c.channel.PublishStatus(ctx, StatusWaiting); err != nil {
		return c.startFailed(err)
	}

	sub, err := c.channel.WatchAnswer(ctx, c.onAnswer)
	if err != nil {
		return c.startFailed(err)
	}
	c.addSub(sub)

	if err := c.watchRemoteCandidates(ctx, signaling.FromJoiner); err != nil {
		return c.startFailed(err)
	}

	c.machine.set(StateWaitingForPeer)
	c.log.Info("room open, waiting for a listener")
	return nil
}

// onAnswer handles the level-triggered answer watch. The field fires on
// attach (usually with no value yet) and may re-fire with an unchanged
// answer; only the first real answer is applied.
func (c *Creator) onAnswer(d *relay.Description) {
	if d == nil || c.machine.State().Terminal() {
		return
	}

	c.answerMu.Lock()
	if c.answerApplied || c.transport.SignalingStable() {
		c.answerMu.Unlock()
		return
	}
	c.answerApplied = true
	c.answerMu.Unlock()

	if err := c.transport.SetRemoteDescription(*d); err != nil {
		c.fail(NewError("apply answer", err))
		return
	}
	c.machine.set(StateNegotiating)
	c.log.Info("answer received, negotiating")
}

// Disconnect ends the session and stops candidate publishing.
func (c *Creator) Disconnect() {
	c.cancelPublish()
	c.controller.Disconnect()
}

func (c *Creator) startFailed(err error) error {
	c.cancelPublish()
	c.fail(err)
	return err
}

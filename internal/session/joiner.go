package session

import (
	"context"
	"errors"

	"github.com/MSayban1/Audio-Streamer-22222/internal/audio"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/signaling"
	"github.com/MSayban1/Audio-Streamer-22222/internal/transport"
)

// Joiner drives the listening side: it reads the creator's offer, answers
// it, and binds the incoming audio track to a playback sink.
type Joiner struct {
	controller

	sink audio.Sink

	publishCtx    context.Context
	cancelPublish context.CancelFunc
}

// NewJoiner builds the joiner controller. sink may be nil when the caller
// only wants the connection, not playback.
func NewJoiner(channel *signaling.Channel, sess transport.Session, sink audio.Sink) *Joiner {
	j := &Joiner{controller: newController(channel, sess, "joiner"), sink: sink}
	if sink != nil {
		j.releaseMedia = sink.Stop
	}
	j.publishCtx, j.cancelPublish = context.WithCancel(context.Background())
	return j
}

// Join runs the joiner flow through publishing the answer. A room with no
// record, or a record without an offer, is ErrRoomNotFound; nothing is
// written to the relay in that case.
func (j *Joiner) Join(ctx context.Context) error {
	j.machine.set(StateAwaitingOffer)

	rec, err := j.channel.ReadOnce(ctx)
	if err != nil {
		return j.joinFailed(err)
	}
	if rec == nil || rec.Offer == nil {
		err := NewRoomError("join room", j.channel.Room(), ErrRoomNotFound)
		// Leave the relay untouched: the room was never ours. Marking
		// the controller torn keeps a later Disconnect from running
		// the room cleanup.
		j.mu.Lock()
		j.torn = true
		j.mu.Unlock()
		j.cancelPublish()
		if j.machine.set(StateFailed) {
			j.log.Warn("room not found")
		}
		if cerr := j.transport.Close(); cerr != nil {
			j.log.Debug("transport close", "error", cerr)
		}
		return err
	}

	j.transport.OnConnectionStateChange(j.onTransportState)
	j.transport.OnRemoteTrack(j.onRemoteTrack)
	j.transport.OnLocalCandidate(func(cand relay.Candidate) {
		if j.machine.State().Terminal() {
			return
		}
		if err := j.channel.PublishCandidate(j.publishCtx, signaling.FromJoiner, cand); err != nil {
			j.log.Warn("candidate publish failed", "error", err)
		}
	})

	if err := j.transport.SetRemoteDescription(*rec.Offer); err != nil {
		return j.joinFailed(NewError("apply offer", err))
	}
	j.machine.set(StateNegotiating)

	answer, err := j.transport.CreateAnswer()
	if err != nil {
		return j.joinFailed(NewError("create answer", err))
	}
	if err := j.transport.SetLocalDescription(answer); err != nil {
		return j.joinFailed(NewError("set local description", err))
	}
	if err := j.channel.PublishAnswer(ctx, answer); err != nil {
		return j.joinFailed(err)
	}

	// Candidates the creator published before this point are replayed by
	// the watch, so nothing is lost by subscribing last.
	if err := j.watchRemoteCandidates(ctx, signaling.FromCreator); err != nil {
		return j.joinFailed(err)
	}

	j.log.Info("answer published, negotiating")
	return nil
}

// StartPlayback retries sink startup. Playback being blocked is not fatal
// to the session; the UI calls this again on user gesture.
func (j *Joiner) StartPlayback() error {
	if j.sink == nil {
		return nil
	}
	return j.sink.Start()
}

func (j *Joiner) onRemoteTrack(track audio.RemoteAudio) {
	if j.sink == nil {
		return
	}
	j.sink.Bind(track)
	if err := j.sink.Start(); err != nil {
		if errors.Is(err, audio.ErrPlaybackBlocked) {
			j.log.Warn("playback blocked, waiting for user action")
			return
		}
		j.log.Warn("playback start failed", "error", err)
	}
}

// Disconnect ends the session and stops candidate publishing.
func (j *Joiner) Disconnect() {
	j.cancelPublish()
	j.controller.Disconnect()
}

func (j *Joiner) joinFailed(err error) error {
	j.cancelPublish()
	j.fail(err)
	return err
}

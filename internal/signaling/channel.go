// Package signaling provides the room-scoped channel the connection
// controllers talk through. It is a thin, role-agnostic adapter over a
// relay.Store: no retries, no protocol logic, every store failure surfaced
// as ErrSignalingUnavailable.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
)

// Direction names the owner of a candidate log.
type Direction int

const (
	FromCreator Direction = iota
	FromJoiner
)

func (d Direction) String() string {
	if d == FromCreator {
		return "creator"
	}
	return "joiner"
}

func (d Direction) logName() string {
	if d == FromCreator {
		return relay.LogCreatorCandidates
	}
	return relay.LogJoinerCandidates
}

// Channel is a signaling channel scoped to one room.
type Channel struct {
	store relay.Store
	room  string
	log   *slog.Logger
}

// New creates a channel for the given room on an already-open store.
func New(store relay.Store, room string) *Channel {
	return &Channel{
		store: store,
		room:  room,
		log:   slog.With("room", room),
	}
}

// Room returns the room this channel is scoped to.
func (c *Channel) Room() string {
	return c.room
}

// PublishOffer writes the offer field. The protocol writes it exactly once;
// the overwrite semantics underneath are never exercised in correct
// operation.
func (c *Channel) PublishOffer(ctx context.Context, offer relay.Description) error {
	return c.setDescription(ctx, relay.FieldOffer, offer)
}

// PublishAnswer writes the answer field, exactly once per session, only
// after the joiner has read a valid offer.
func (c *Channel) PublishAnswer(ctx context.Context, answer relay.Description) error {
	return c.setDescription(ctx, relay.FieldAnswer, answer)
}

func (c *Channel) setDescription(ctx context.Context, field string, d relay.Description) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return wrapUnavailable("encode "+field, err)
	}
	if err := c.store.SetField(ctx, c.room, field, raw); err != nil {
		return wrapUnavailable("publish "+field, err)
	}
	return nil
}

// PublishStatus writes the informational status field.
func (c *Channel) PublishStatus(ctx context.Context, status string) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return wrapUnavailable("encode status", err)
	}
	if err := c.store.SetField(ctx, c.room, relay.FieldStatus, raw); err != nil {
		return wrapUnavailable("publish status", err)
	}
	return nil
}

// WatchAnswer invokes fn whenever the answer field changes. Delivery is
// level-triggered: fn may fire repeatedly with an unchanged value, and fires
// with nil when the value is cleared or undecodable. Deduplication is the
// subscriber's responsibility.
func (c *Channel) WatchAnswer(ctx context.Context, fn func(*relay.Description)) (relay.Subscription, error) {
	sub, err := c.store.WatchField(ctx, c.room, relay.FieldAnswer, func(value json.RawMessage) {
		fn(decodeDescription(value))
	})
	if err != nil {
		return nil, wrapUnavailable("watch answer", err)
	}
	return sub, nil
}

// PublishCandidate appends to the candidate log owned by dir. A caller only
// ever appends to its own log.
func (c *Channel) PublishCandidate(ctx context.Context, dir Direction, candidate relay.Candidate) error {
	if _, err := c.store.AppendChild(ctx, c.room, dir.logName(), json.RawMessage(candidate)); err != nil {
		return wrapUnavailable("publish candidate", err)
	}
	return nil
}

// WatchCandidates invokes fn once per entry in the log owned by dir, in
// append order, replaying entries that existed before the watcher attached.
func (c *Channel) WatchCandidates(ctx context.Context, dir Direction, fn func(relay.Candidate)) (relay.Subscription, error) {
	sub, err := c.store.WatchChildren(ctx, c.room, dir.logName(), func(_ string, value json.RawMessage) {
		fn(relay.Candidate(value))
	})
	if err != nil {
		return nil, wrapUnavailable("watch candidates", err)
	}
	return sub, nil
}

// ReadOnce fetches the whole signaling record. Returns (nil, nil) when the
// room does not exist.
func (c *Channel) ReadOnce(ctx context.Context) (*relay.Record, error) {
	rec, err := c.store.Read(ctx, c.room)
	if err != nil {
		return nil, wrapUnavailable("read room", err)
	}
	return rec, nil
}

// DeleteRoom removes the room subtree. Deleting an absent room is a no-op.
func (c *Channel) DeleteRoom(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.room); err != nil {
		return wrapUnavailable("delete room", err)
	}
	return nil
}

func decodeDescription(raw json.RawMessage) *relay.Description {
	if len(raw) == 0 {
		return nil
	}
	var d relay.Description
	if err := json.Unmarshal(raw, &d); err != nil || d.SDP == "" {
		return nil
	}
	return &d
}

func wrapUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, relay.ErrSignalingUnavailable, err)
}

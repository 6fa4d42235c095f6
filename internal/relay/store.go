// Package relay defines the key-value pub/sub store the peers use to
// exchange connection-setup messages, plus the record types stored in it.
//
// The store is a logical path-addressed tree, one subtree per room:
//
//	rooms/{R}/offer                    -> Description
//	rooms/{R}/answer                   -> Description
//	rooms/{R}/status                   -> string
//	rooms/{R}/creatorIceCandidates/{k} -> Candidate (append log)
//	rooms/{R}/joinerIceCandidates/{k}  -> Candidate (append log)
//
// Scalar fields are last-write-wins; candidate logs are append-only with
// store-generated ordering keys. The protocol gives each scalar field
// exactly one writer, so no stronger guarantee is needed.
package relay

import (
	"context"
	"encoding/json"
	"errors"
)

// Scalar field names under a room.
const (
	FieldOffer  = "offer"
	FieldAnswer = "answer"
	FieldStatus = "status"
)

// Append-log names under a room.
const (
	LogCreatorCandidates = "creatorIceCandidates"
	LogJoinerCandidates  = "joinerIceCandidates"
)

// ErrSignalingUnavailable wraps any store operation failure (network error,
// timeout, closed connection). The store never retries; retry policy belongs
// to the caller.
var ErrSignalingUnavailable = errors.New("signaling relay unavailable")

// Description is a session description produced by the transport layer. The
// SDP body is forwarded verbatim and never inspected.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is an opaque transport-layer blob describing one potential
// network path. Candidates may be applied in any order, and any number may
// arrive after the connection is established.
type Candidate = json.RawMessage

// Record is a whole-room snapshot. Candidate slices are in append order.
type Record struct {
	Offer             *Description `json:"offer,omitempty"`
	Answer            *Description `json:"answer,omitempty"`
	Status            string       `json:"status,omitempty"`
	CreatorCandidates []Candidate  `json:"creatorIceCandidates,omitempty"`
	JoinerCandidates  []Candidate  `json:"joinerIceCandidates,omitempty"`
}

// Subscription is a cancelable watch registration. Cancel is idempotent and
// stops further callbacks; it does not interrupt a callback in flight.
type Subscription interface {
	Cancel()
}

// ValueFunc receives scalar field values. A WatchField subscription is
// level-triggered: it fires with the current value when one exists at attach
// time, and again on every write, including writes carrying an unchanged
// value. Callers that need edge semantics must deduplicate themselves.
type ValueFunc func(value json.RawMessage)

// ChildFunc receives append-log entries with their ordering key. A
// WatchChildren subscription replays all existing entries in append order
// before delivering new ones, so entries appended before the watcher
// attached are not lost.
type ChildFunc func(key string, value json.RawMessage)

// Store is the relay client. Implementations are explicitly constructed and
// owned by the caller; there is no package-level instance.
type Store interface {
	// SetField writes a scalar field under a room, overwriting any
	// previous value.
	SetField(ctx context.Context, room, field string, value json.RawMessage) error

	// WatchField subscribes to a scalar field with level-triggered
	// delivery (see ValueFunc).
	WatchField(ctx context.Context, room, field string, fn ValueFunc) (Subscription, error)

	// AppendChild appends an entry to a room log and returns the
	// store-generated ordering key.
	AppendChild(ctx context.Context, room, log string, value json.RawMessage) (string, error)

	// WatchChildren subscribes to a room log with replay-then-follow
	// delivery (see ChildFunc).
	WatchChildren(ctx context.Context, room, log string, fn ChildFunc) (Subscription, error)

	// Read fetches a whole-room snapshot. It returns (nil, nil) when the
	// room has never been written or has been deleted.
	Read(ctx context.Context, room string) (*Record, error)

	// Delete removes the room subtree. Deleting an absent room is a no-op.
	Delete(ctx context.Context, room string) error

	// Close releases the client. Outstanding subscriptions stop firing.
	Close() error
}

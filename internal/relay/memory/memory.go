// Package memory provides an in-process relay.Store. It backs the bundled
// relay daemon by default and the protocol tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
)

var errClosed = errors.New("store closed")

type logEntry struct {
	key   string
	value json.RawMessage
}

type roomState struct {
	fields map[string]json.RawMessage
	logs   map[string][]logEntry
}

// Store is an in-memory relay.Store. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	rooms  map[string]*roomState
	fields map[string]map[int]*fieldWatch // room/field -> watches
	logs   map[string]map[int]*childWatch // room/log -> watches
	nextID int
	seq    uint64
	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		rooms:  make(map[string]*roomState),
		fields: make(map[string]map[int]*fieldWatch),
		logs:   make(map[string]map[int]*childWatch),
	}
}

// fieldWatch serializes deliveries to one scalar-field subscriber. The
// cancel flag has its own lock so a callback may cancel its own watch
// without deadlocking the in-flight delivery.
type fieldWatch struct {
	deliverMu sync.Mutex
	mu        sync.Mutex
	fn        relay.ValueFunc
	canceled  bool
}

func (w *fieldWatch) deliver(value json.RawMessage) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	w.mu.Lock()
	canceled := w.canceled
	w.mu.Unlock()
	if !canceled {
		w.fn(value)
	}
}

// childWatch tracks how far into the log a subscriber has been driven, so
// replay-on-attach and live appends never duplicate or reorder entries.
// Deleting the room marks the watch rewound; the cursor restarts from zero
// on the next delivery, so a re-created room's log is seen in full.
type childWatch struct {
	deliverMu sync.Mutex
	mu        sync.Mutex
	fn        relay.ChildFunc
	next      int
	canceled  bool
	rewound   bool
}

// deliverUpTo drives the subscriber through every entry it has not yet seen.
// entries is an append-order snapshot of the log.
func (w *childWatch) deliverUpTo(entries []logEntry) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	w.mu.Lock()
	if w.rewound {
		w.rewound = false
		w.next = 0
	}
	w.mu.Unlock()
	for ; w.next < len(entries); w.next++ {
		w.mu.Lock()
		canceled := w.canceled
		w.mu.Unlock()
		if canceled {
			return
		}
		e := entries[w.next]
		w.fn(e.key, e.value)
	}
}

func (w *childWatch) rewind() {
	w.mu.Lock()
	w.rewound = true
	w.mu.Unlock()
}

type subscription struct {
	cancel func()
	once   sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}

func (s *Store) SetField(ctx context.Context, room, field string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	r := s.room(room)
	r.fields[field] = append(json.RawMessage(nil), value...)
	watches := snapshotWatches(s.fields[room+"/"+field])
	stored := r.fields[field]
	s.mu.Unlock()

	for _, w := range watches {
		w.deliver(stored)
	}
	return nil
}

func (s *Store) WatchField(ctx context.Context, room, field string, fn relay.ValueFunc) (relay.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	w := &fieldWatch{fn: fn}
	id := s.nextID
	s.nextID++
	key := room + "/" + field
	if s.fields[key] == nil {
		s.fields[key] = make(map[int]*fieldWatch)
	}
	s.fields[key][id] = w

	var current json.RawMessage
	if r, ok := s.rooms[room]; ok {
		current = r.fields[field]
	}
	s.mu.Unlock()

	// Level-triggered: fire immediately when a value already exists.
	if current != nil {
		w.deliver(current)
	}

	return &subscription{cancel: func() {
		w.mu.Lock()
		w.canceled = true
		w.mu.Unlock()
		s.mu.Lock()
		delete(s.fields[key], id)
		s.mu.Unlock()
	}}, nil
}

func (s *Store) AppendChild(ctx context.Context, room, log string, value json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errClosed
	}
	s.seq++
	key := fmt.Sprintf("k%012d", s.seq)
	r := s.room(room)
	r.logs[log] = append(r.logs[log], logEntry{key: key, value: append(json.RawMessage(nil), value...)})
	entries := r.logs[log]
	watches := snapshotWatches(s.logs[room+"/"+log])
	s.mu.Unlock()

	for _, w := range watches {
		w.deliverUpTo(entries)
	}
	return key, nil
}

func (s *Store) WatchChildren(ctx context.Context, room, log string, fn relay.ChildFunc) (relay.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	w := &childWatch{fn: fn}
	id := s.nextID
	s.nextID++
	key := room + "/" + log
	if s.logs[key] == nil {
		s.logs[key] = make(map[int]*childWatch)
	}
	s.logs[key][id] = w

	var entries []logEntry
	if r, ok := s.rooms[room]; ok {
		entries = r.logs[log]
	}
	s.mu.Unlock()

	// Replay everything appended before the watcher attached.
	w.deliverUpTo(entries)

	return &subscription{cancel: func() {
		w.mu.Lock()
		w.canceled = true
		w.mu.Unlock()
		s.mu.Lock()
		delete(s.logs[key], id)
		s.mu.Unlock()
	}}, nil
}

func (s *Store) Read(ctx context.Context, room string) (*relay.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	r, ok := s.rooms[room]
	if !ok {
		return nil, nil
	}

	rec := &relay.Record{}
	if raw, ok := r.fields[relay.FieldOffer]; ok {
		rec.Offer = decodeDescription(raw)
	}
	if raw, ok := r.fields[relay.FieldAnswer]; ok {
		rec.Answer = decodeDescription(raw)
	}
	if raw, ok := r.fields[relay.FieldStatus]; ok {
		_ = json.Unmarshal(raw, &rec.Status)
	}
	for _, e := range r.logs[relay.LogCreatorCandidates] {
		rec.CreatorCandidates = append(rec.CreatorCandidates, append(relay.Candidate(nil), e.value...))
	}
	for _, e := range r.logs[relay.LogJoinerCandidates] {
		rec.JoinerCandidates = append(rec.JoinerCandidates, append(relay.Candidate(nil), e.value...))
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, room string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	_, existed := s.rooms[room]
	delete(s.rooms, room)
	var watches []*fieldWatch
	var childWatches []*childWatch
	if existed {
		for _, field := range []string{relay.FieldOffer, relay.FieldAnswer, relay.FieldStatus} {
			watches = append(watches, snapshotWatches(s.fields[room+"/"+field])...)
		}
		for key, m := range s.logs {
			if strings.HasPrefix(key, room+"/") {
				childWatches = append(childWatches, snapshotWatches(m)...)
			}
		}
	}
	s.mu.Unlock()

	// Scalar watchers observe the clear; subscribers treat nil as "no value".
	for _, w := range watches {
		w.deliver(nil)
	}
	// Log watchers restart from the head if the room comes back.
	for _, w := range childWatches {
		w.rewind()
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.fields = make(map[string]map[int]*fieldWatch)
	s.logs = make(map[string]map[int]*childWatch)
	return nil
}

// room returns the state for a room, creating it on first write. Caller
// holds s.mu.
func (s *Store) room(name string) *roomState {
	r, ok := s.rooms[name]
	if !ok {
		r = &roomState{
			fields: make(map[string]json.RawMessage),
			logs:   make(map[string][]logEntry),
		}
		s.rooms[name] = r
	}
	return r
}

func snapshotWatches[W any](m map[int]*W) []*W {
	out := make([]*W, 0, len(m))
	for _, w := range m {
		out = append(out, w)
	}
	return out
}

func decodeDescription(raw json.RawMessage) *relay.Description {
	var d relay.Description
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil
	}
	return &d
}

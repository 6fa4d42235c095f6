// Package redisstore implements relay.Store on Redis. The bundled relay
// daemon uses it when rooms must survive a daemon restart or be shared
// between daemon instances.
//
// Layout per room R:
//
//	rooms:{R}:fields      hash   offer / answer / status
//	rooms:{R}:log:{name}  list   JSON envelopes {key, value}, append order
//
// Watches ride Redis pub/sub on rooms:{R}:field:{f} and rooms:{R}:log:{name}
// channels. A child watch subscribes before replaying the list and
// deduplicates by entry key, so the replay/follow handover never drops or
// doubles an entry.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
)

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store is a Redis-backed relay.Store.
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Store{client: client}, nil
}

type envelope struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func fieldsKey(room string) string       { return "rooms:" + room + ":fields" }
func logKey(room, log string) string     { return "rooms:" + room + ":log:" + log }
func fieldChannel(room, f string) string { return "rooms:" + room + ":field:" + f }
func logChannel(room, log string) string { return "rooms:" + room + ":logch:" + log }

func (s *Store) SetField(ctx context.Context, room, field string, value json.RawMessage) error {
	if err := s.client.HSet(ctx, fieldsKey(room), field, []byte(value)).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, fieldChannel(room, field), []byte(value)).Err()
}

func (s *Store) WatchField(ctx context.Context, room, field string, fn relay.ValueFunc) (relay.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, fieldChannel(room, field))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	// Initial level-triggered fire with the current value, after the
	// subscription is live. A write landing in between is delivered twice,
	// which level-triggered subscribers tolerate by contract.
	current, err := s.client.HGet(ctx, fieldsKey(room), field).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		pubsub.Close()
		return nil, err
	}

	sub := newPubsubSubscription(pubsub)
	go func() {
		if current != nil {
			fn(current)
		}
		for msg := range pubsub.Channel() {
			fn(json.RawMessage(msg.Payload))
		}
	}()
	return sub, nil
}

func (s *Store) AppendChild(ctx context.Context, room, log string, value json.RawMessage) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	// UUIDv7 is time-ordered, so keys sort in append order like the
	// memory store's sequence keys.
	env, err := json.Marshal(envelope{Key: id.String(), Value: value})
	if err != nil {
		return "", err
	}
	if err := s.client.RPush(ctx, logKey(room, log), env).Err(); err != nil {
		return "", err
	}
	if err := s.client.Publish(ctx, logChannel(room, log), env).Err(); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) WatchChildren(ctx context.Context, room, log string, fn relay.ChildFunc) (relay.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, logChannel(room, log))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	existing, err := s.client.LRange(ctx, logKey(room, log), 0, -1).Result()
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := newPubsubSubscription(pubsub)
	go func() {
		seen := make(map[string]bool)
		deliver := func(raw string) {
			var env envelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				return
			}
			if seen[env.Key] {
				return
			}
			seen[env.Key] = true
			fn(env.Key, env.Value)
		}
		for _, raw := range existing {
			deliver(raw)
		}
		for msg := range pubsub.Channel() {
			deliver(msg.Payload)
		}
	}()
	return sub, nil
}

func (s *Store) Read(ctx context.Context, room string) (*relay.Record, error) {
	fields, err := s.client.HGetAll(ctx, fieldsKey(room)).Result()
	if err != nil {
		return nil, err
	}
	creator, err := s.readLog(ctx, room, relay.LogCreatorCandidates)
	if err != nil {
		return nil, err
	}
	joiner, err := s.readLog(ctx, room, relay.LogJoinerCandidates)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 && creator == nil && joiner == nil {
		return nil, nil
	}

	rec := &relay.Record{CreatorCandidates: creator, JoinerCandidates: joiner}
	if raw, ok := fields[relay.FieldOffer]; ok {
		var d relay.Description
		if err := json.Unmarshal([]byte(raw), &d); err == nil {
			rec.Offer = &d
		}
	}
	if raw, ok := fields[relay.FieldAnswer]; ok {
		var d relay.Description
		if err := json.Unmarshal([]byte(raw), &d); err == nil {
			rec.Answer = &d
		}
	}
	if raw, ok := fields[relay.FieldStatus]; ok {
		_ = json.Unmarshal([]byte(raw), &rec.Status)
	}
	return rec, nil
}

func (s *Store) readLog(ctx context.Context, room, log string) ([]relay.Candidate, error) {
	raws, err := s.client.LRange(ctx, logKey(room, log), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var out []relay.Candidate
	for _, raw := range raws {
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		out = append(out, env.Value)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, room string) error {
	return s.client.Del(ctx,
		fieldsKey(room),
		logKey(room, relay.LogCreatorCandidates),
		logKey(room, relay.LogJoinerCandidates),
	).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

type pubsubSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
}

func newPubsubSubscription(ps *redis.PubSub) *pubsubSubscription {
	return &pubsubSubscription{pubsub: ps}
}

func (p *pubsubSubscription) Cancel() {
	p.once.Do(func() { p.pubsub.Close() })
}

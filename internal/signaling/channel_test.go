package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay/memory"
)

func TestOfferAndStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	ch := New(memory.New(), "AB12CD")

	offer := relay.Description{Type: "offer", SDP: "v=0 offer"}
	if err := ch.PublishOffer(ctx, offer); err != nil {
		t.Fatal(err)
	}
	if err := ch.PublishStatus(ctx, "waiting"); err != nil {
		t.Fatal(err)
	}

	rec, err := ch.ReadOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Offer == nil {
		t.Fatal("offer missing from record")
	}
	if *rec.Offer != offer {
		t.Fatalf("offer = %+v, want %+v", *rec.Offer, offer)
	}
	if rec.Status != "waiting" {
		t.Fatalf("status = %q, want %q", rec.Status, "waiting")
	}
}

func TestReadOnceAbsentRoom(t *testing.T) {
	ch := New(memory.New(), "ZZZZZZ")
	rec, err := ch.ReadOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("record = %+v, want nil", rec)
	}
}

func TestWatchAnswerDecoding(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ch := New(store, "AB12CD")

	var got []*relay.Description
	sub, err := ch.WatchAnswer(ctx, func(d *relay.Description) {
		got = append(got, d)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	answer := relay.Description{Type: "answer", SDP: "v=0 answer"}
	if err := ch.PublishAnswer(ctx, answer); err != nil {
		t.Fatal(err)
	}
	// An undecodable value is surfaced as nil, not an error.
	if err := store.SetField(ctx, "AB12CD", relay.FieldAnswer, json.RawMessage(`"not a description"`)); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
	if got[0] == nil || *got[0] != answer {
		t.Fatalf("first delivery = %v, want %+v", got[0], answer)
	}
	if got[1] != nil {
		t.Fatalf("second delivery = %+v, want nil", got[1])
	}
}

func TestCandidateReplayAndOrder(t *testing.T) {
	ctx := context.Background()
	ch := New(memory.New(), "AB12CD")

	pub := func(s string) {
		t.Helper()
		if err := ch.PublishCandidate(ctx, FromCreator, relay.Candidate(`{"candidate":"`+s+`"}`)); err != nil {
			t.Fatal(err)
		}
	}
	pub("c1")
	pub("c2")

	var seen []string
	sub, err := ch.WatchCandidates(ctx, FromCreator, func(c relay.Candidate) {
		var p struct {
			Candidate string `json:"candidate"`
		}
		if err := json.Unmarshal(c, &p); err != nil {
			t.Fatal(err)
		}
		seen = append(seen, p.Candidate)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	pub("c3")

	if want := []string{"c1", "c2", "c3"}; !reflect.DeepEqual(seen, want) {
		t.Fatalf("seen %v, want %v", seen, want)
	}
}

func TestDirectionsUseSeparateLogs(t *testing.T) {
	ctx := context.Background()
	ch := New(memory.New(), "AB12CD")

	if err := ch.PublishCandidate(ctx, FromCreator, relay.Candidate(`{"candidate":"c"}`)); err != nil {
		t.Fatal(err)
	}
	if err := ch.PublishCandidate(ctx, FromJoiner, relay.Candidate(`{"candidate":"j"}`)); err != nil {
		t.Fatal(err)
	}

	rec, err := ch.ReadOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.CreatorCandidates) != 1 || len(rec.JoinerCandidates) != 1 {
		t.Fatalf("logs = %d/%d, want 1/1", len(rec.CreatorCandidates), len(rec.JoinerCandidates))
	}
}

// brokenStore fails every operation, standing in for a lost relay.
type brokenStore struct{}

var errBroken = errors.New("relay down")

func (brokenStore) SetField(context.Context, string, string, json.RawMessage) error {
	return errBroken
}

func (brokenStore) WatchField(context.Context, string, string, relay.ValueFunc) (relay.Subscription, error) {
	return nil, errBroken
}

func (brokenStore) AppendChild(context.Context, string, string, json.RawMessage) (string, error) {
	return "", errBroken
}

func (brokenStore) WatchChildren(context.Context, string, string, relay.ChildFunc) (relay.Subscription, error) {
	return nil, errBroken
}

func (brokenStore) Read(context.Context, string) (*relay.Record, error) { return nil, errBroken }
func (brokenStore) Delete(context.Context, string) error                { return errBroken }
func (brokenStore) Close() error                                        { return nil }

func TestStoreFailuresWrapUnavailable(t *testing.T) {
	ctx := context.Background()
	ch := New(brokenStore{}, "AB12CD")

	checks := []struct {
		name string
		err  error
	}{
		{"publish offer", ch.PublishOffer(ctx, relay.Description{Type: "offer", SDP: "x"})},
		{"publish status", ch.PublishStatus(ctx, "waiting")},
		{"publish candidate", ch.PublishCandidate(ctx, FromJoiner, relay.Candidate(`{}`))},
		{"delete", ch.DeleteRoom(ctx)},
	}
	for _, c := range checks {
		if !errors.Is(c.err, relay.ErrSignalingUnavailable) {
			t.Fatalf("%s: err = %v, want ErrSignalingUnavailable", c.name, c.err)
		}
	}
	if _, err := ch.ReadOnce(ctx); !errors.Is(err, relay.ErrSignalingUnavailable) {
		t.Fatalf("read: err = %v", err)
	}
	if _, err := ch.WatchAnswer(ctx, func(*relay.Description) {}); !errors.Is(err, relay.ErrSignalingUnavailable) {
		t.Fatalf("watch answer: err = %v", err)
	}
}

package relayserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay/memory"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay/wsrelay"
)

func newTestRelay(t *testing.T) *wsrelay.Client {
	t.Helper()
	srv := New(memory.New(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := wsrelay.Dial("ws" + strings.TrimPrefix(ts.URL, "http") + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHealthz(t *testing.T) {
	srv := New(memory.New(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRoundTripOverWebsocket(t *testing.T) {
	ctx := context.Background()
	client := newTestRelay(t)

	offer, _ := json.Marshal(relay.Description{Type: "offer", SDP: "v=0 offer"})
	if err := client.SetField(ctx, "AB12CD", relay.FieldOffer, offer); err != nil {
		t.Fatal(err)
	}
	key, err := client.AppendChild(ctx, "AB12CD", relay.LogCreatorCandidates, json.RawMessage(`{"candidate":"c1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if key == "" {
		t.Fatal("append returned empty key")
	}

	rec, err := client.Read(ctx, "AB12CD")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Offer == nil || rec.Offer.SDP != "v=0 offer" {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.CreatorCandidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(rec.CreatorCandidates))
	}

	absent, err := client.Read(ctx, "ZZZZZZ")
	if err != nil {
		t.Fatal(err)
	}
	if absent != nil {
		t.Fatalf("absent room = %+v, want nil", absent)
	}
}

func TestChildWatchReplaysThenFollows(t *testing.T) {
	ctx := context.Background()
	client := newTestRelay(t)

	push := func(s string) {
		t.Helper()
		if _, err := client.AppendChild(ctx, "AB12CD", relay.LogJoinerCandidates, json.RawMessage(`{"candidate":"`+s+`"}`)); err != nil {
			t.Fatal(err)
		}
	}
	push("c1")
	push("c2")

	var mu sync.Mutex
	var seen []string
	sub, err := client.WatchChildren(ctx, "AB12CD", relay.LogJoinerCandidates, func(_ string, value json.RawMessage) {
		var p struct {
			Candidate string `json:"candidate"`
		}
		json.Unmarshal(value, &p)
		mu.Lock()
		seen = append(seen, p.Candidate)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	push("c3")

	waitFor(t, "all three candidates", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	})
	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"c1", "c2", "c3"} {
		if seen[i] != want {
			t.Fatalf("seen = %v, want [c1 c2 c3]", seen)
		}
	}
}

func TestFieldWatchSeesSetAndDelete(t *testing.T) {
	ctx := context.Background()
	client := newTestRelay(t)

	var mu sync.Mutex
	var values []json.RawMessage
	sub, err := client.WatchField(ctx, "AB12CD", relay.FieldAnswer, func(value json.RawMessage) {
		mu.Lock()
		values = append(values, value)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	answer, _ := json.Marshal(relay.Description{Type: "answer", SDP: "v=0 answer"})
	if err := client.SetField(ctx, "AB12CD", relay.FieldAnswer, answer); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "answer delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(values) == 1
	})

	if err := client.Delete(ctx, "AB12CD"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "clear delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(values) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if len(values[0]) == 0 {
		t.Fatal("first delivery empty, want the answer")
	}
	if len(values[1]) != 0 {
		t.Fatalf("second delivery = %s, want empty", values[1])
	}

	rec, err := client.Read(ctx, "AB12CD")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("record after delete = %+v, want nil", rec)
	}
}

func TestCanceledWatchStopsDelivering(t *testing.T) {
	ctx := context.Background()
	client := newTestRelay(t)

	var mu sync.Mutex
	count := 0
	sub, err := client.WatchChildren(ctx, "AB12CD", relay.LogCreatorCandidates, func(string, json.RawMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.AppendChild(ctx, "AB12CD", relay.LogCreatorCandidates, json.RawMessage(`{"candidate":"c1"}`)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first candidate", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	sub.Cancel()
	// Give the unwatch frame time to land before pushing again.
	time.Sleep(50 * time.Millisecond)

	if _, err := client.AppendChild(ctx, "AB12CD", relay.LogCreatorCandidates, json.RawMessage(`{"candidate":"c2"}`)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("deliveries after cancel = %d, want 1", count)
	}
}

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MSayban1/Audio-Streamer-22222/internal/signaling"
)

const cleanupTimeout = 5 * time.Second

// Cleanup deletes a room's signaling data when the session ends, so stale
// rooms do not accumulate in the relay. It fires at most once per session
// no matter how many teardown paths race into it (explicit disconnect,
// terminal failure, process interrupt).
type Cleanup struct {
	once    sync.Once
	channel *signaling.Channel
	log     *slog.Logger
}

// NewCleanup creates a coordinator for the channel's room.
func NewCleanup(channel *signaling.Channel) *Cleanup {
	return &Cleanup{
		channel: channel,
		log:     slog.With("room", channel.Room()),
	}
}

// Run deletes the room, best-effort. Duplicate calls and already-deleted
// rooms are no-ops.
func (c *Cleanup) Run() {
	c.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := c.channel.DeleteRoom(ctx); err != nil {
			c.log.Warn("room cleanup failed", "error", err)
		}
	})
}

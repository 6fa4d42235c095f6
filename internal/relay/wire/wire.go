// Package wire defines the frame protocol spoken between the peers'
// websocket relay client and the relay daemon. One Frame type covers both
// directions, in the style of a single tagged message struct.
package wire

import (
	"encoding/json"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
)

// Client-to-server operations.
const (
	OpSet           = "set"
	OpPush          = "push"
	OpGet           = "get"
	OpDelete        = "delete"
	OpWatch         = "watch"
	OpWatchChildren = "watch_children"
	OpUnwatch       = "unwatch"
)

// Server-to-client frame types.
const (
	TypeAck   = "ack"
	TypeValue = "value"
	TypeChild = "child"
)

// Frame is a single relay wire message.
//
// Upstream, Type is one of the Op constants and ID correlates the ack.
// Downstream, Type is TypeAck (ID echoes the request) or TypeValue/TypeChild
// (ID names the originating watch). For watch requests the request ID
// doubles as the watch ID; OpUnwatch names its target in Watch.
type Frame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Room   string          `json:"room,omitempty"`
	Path   string          `json:"path,omitempty"`
	Watch  string          `json:"watch,omitempty"`
	Key    string          `json:"key,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Record *relay.Record   `json:"record,omitempty"`
	OK     bool            `json:"ok,omitempty"`
	Error  string          `json:"error,omitempty"`
}

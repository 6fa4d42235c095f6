package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/MSayban1/Audio-Streamer-22222/internal/audio"
	"github.com/MSayban1/Audio-Streamer-22222/internal/config"
	"github.com/MSayban1/Audio-Streamer-22222/internal/control"
	"github.com/MSayban1/Audio-Streamer-22222/internal/session"
	"github.com/MSayban1/Audio-Streamer-22222/internal/signaling"
	"github.com/MSayban1/Audio-Streamer-22222/internal/ui"
)

var (
	flagListenDomain   string
	flagListenRelayURL string
	flagListenSTUN     string
	flagListenQuality  string
)

var listenCmd = &cobra.Command{
	Use:     "listen <room-id|url>",
	Aliases: []string{"l"},
	Short:   "Join a room and listen to the shared audio",
	Long: `Join a room by its code or link and listen to the shared audio.

Examples:
  aircast listen AB12CD
  aircast listen https://aircast.qzz.io/r/AB12CD
  aircast listen ab12cd --relay-url ws://localhost:8787/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return listenAudio(roomID)
	},
}

func listenAudio(roomID string) error {
	cfg, err := LoadConfig(config.Options{
		Domain:     flagListenDomain,
		RelayURL:   flagListenRelayURL,
		STUNServer: flagListenSTUN,
		Quality:    flagListenQuality,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	defer stopSpinner()
	sctx, err := NewSessionContext(cfg)
	if err != nil {
		return err
	}
	defer sctx.Close()
	stopSpinner()

	sink := audio.NewMeterSink()
	sess, err := newTransport(cfg, nil)
	if err != nil {
		return err
	}

	state := newLiveState(cfg.Quality)
	sess.OnControlChannel(func(conn control.Conn) {
		state.setLink(control.NewLink(conn))
	})

	channel := signaling.New(sctx.Store, roomID)
	joiner := session.NewJoiner(channel, sess, sink)
	OnInterrupt(joiner.Disconnect)

	done := make(chan struct{})
	var once sync.Once
	joiner.Machine().Observe(func(st session.State) {
		if st.Terminal() {
			once.Do(func() { close(done) })
		}
	})

	stopSpinner = ui.RunWaitingSpinner("Joining room " + roomID + "...")
	err = joiner.Join(context.Background())
	stopSpinner()
	if err != nil {
		return err
	}

	stopPing := make(chan struct{})
	go state.pingLoop(stopPing)

	start := time.Now()
	live := ui.NewLiveUI(ui.ModeListen, roomID, ui.LiveCallbacks{
		State:         func() string { return joiner.State().String() },
		Level:         sink.Level,
		Latency:       state.Latency,
		Muted:         state.Muted,
		Quality:       state.Quality,
		ToggleMute:    state.ToggleMute,
		SetQuality:    state.SetQuality,
		RetryPlayback: joiner.StartPlayback,
		Quit:          joiner.Disconnect,
	})
	live.Start()

	<-done
	close(stopPing)
	live.Stop()

	final := joiner.State()
	packets, bytes := sink.Stats()
	fmt.Println()
	ui.RenderSessionSummary(ui.SessionSummary{
		Role:     "Listening",
		Room:     roomID,
		Outcome:  outcomeText(final),
		Duration: time.Since(start),
		Quality:  state.Quality(),
		Latency:  state.Latency(),
		Packets:  packets,
		Bytes:    bytes,
	})

	if final == session.StateFailed {
		return fmt.Errorf("session ended with a connection failure")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVarP(&flagListenDomain, "domain", "d", "", "Custom relay domain")
	listenCmd.Flags().StringVar(&flagListenRelayURL, "relay-url", "", "Relay websocket URL (overrides domain)")
	listenCmd.Flags().StringVarP(&flagListenSTUN, "stun", "s", "", "Custom STUN server")
	listenCmd.Flags().StringVarP(&flagListenQuality, "quality", "q", "", "Stream quality preset (low, medium, high)")
}

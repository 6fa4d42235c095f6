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
	"github.com/MSayban1/Audio-Streamer-22222/internal/roomid"
	"github.com/MSayban1/Audio-Streamer-22222/internal/session"
	"github.com/MSayban1/Audio-Streamer-22222/internal/signaling"
	"github.com/MSayban1/Audio-Streamer-22222/internal/ui"
)

var (
	flagShareDomain   string
	flagShareRelayURL string
	flagShareSTUN     string
	flagShareQuality  string
	flagShareTone     float64
)

var shareCmd = &cobra.Command{
	Use:     "share",
	Aliases: []string{"s"},
	Short:   "Open a room and share audio with a listener",
	Long: `Open a room and stream audio to a listener using WebRTC technology.

Examples:
  aircast share
  aircast share --quality high
  aircast share --relay-url ws://localhost:8787/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return shareAudio()
	},
}

func shareAudio() error {
	cfg, err := LoadConfig(config.Options{
		Domain:     flagShareDomain,
		RelayURL:   flagShareRelayURL,
		STUNServer: flagShareSTUN,
		Quality:    flagShareQuality,
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

	source := audio.NewToneSource(flagShareTone)
	sess, err := newTransport(cfg, source)
	if err != nil {
		source.Close()
		return err
	}

	// The control channel rides the same connection; it must exist
	// before the offer is created so it gets negotiated with it.
	state := newLiveState(cfg.Quality)
	ctrl, err := sess.CreateControlChannel()
	if err != nil {
		sess.Close()
		source.Close()
		return session.NewError("create control channel", err)
	}
	state.setLink(control.NewLink(ctrl))

	room := roomid.Generate()
	channel := signaling.New(sctx.Store, room)
	creator := session.NewCreator(channel, sess, func() { source.Close() })
	OnInterrupt(creator.Disconnect)

	done := make(chan struct{})
	var once sync.Once
	creator.Machine().Observe(func(st session.State) {
		if st.Terminal() {
			once.Do(func() { close(done) })
		}
	})

	if err := creator.Start(context.Background()); err != nil {
		return err
	}

	fmt.Println()
	ui.RenderRoomInfo(room, cfg.GetRoomLink(room))

	stopPing := make(chan struct{})
	go state.pingLoop(stopPing)

	start := time.Now()
	live := ui.NewLiveUI(ui.ModeShare, room, ui.LiveCallbacks{
		State:      func() string { return creator.State().String() },
		Latency:    state.Latency,
		Muted:      state.Muted,
		Quality:    state.Quality,
		ToggleMute: state.ToggleMute,
		SetQuality: state.SetQuality,
		Quit:       creator.Disconnect,
	})
	live.Start()

	<-done
	close(stopPing)
	live.Stop()

	final := creator.State()
	fmt.Println()
	ui.RenderSessionSummary(ui.SessionSummary{
		Role:     "Sharing",
		Room:     room,
		Outcome:  outcomeText(final),
		Duration: time.Since(start),
		Quality:  state.Quality(),
		Latency:  state.Latency(),
	})

	if final == session.StateFailed {
		return fmt.Errorf("session ended with a connection failure")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(shareCmd)

	shareCmd.Flags().StringVarP(&flagShareDomain, "domain", "d", "", "Custom relay domain")
	shareCmd.Flags().StringVar(&flagShareRelayURL, "relay-url", "", "Relay websocket URL (overrides domain)")
	shareCmd.Flags().StringVarP(&flagShareSTUN, "stun", "s", "", "Custom STUN server")
	shareCmd.Flags().StringVarP(&flagShareQuality, "quality", "q", "", "Stream quality preset (low, medium, high)")
	shareCmd.Flags().Float64Var(&flagShareTone, "tone", 440, "Diagnostic tone frequency in Hz")
}

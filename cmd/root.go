package cmd

import (
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"github.com/MSayban1/Audio-Streamer-22222/internal/ui"
	"github.com/MSayban1/Audio-Streamer-22222/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "aircast",
	Short:   "Share your system audio with a friend, peer-to-peer over WebRTC",
	Long:    `Aircast streams audio directly between two devices using WebRTC technology. The person sharing opens a room and reads out a short room code; the listener joins with that code and hears the stream live. A lightweight relay only carries the connection setup, never the audio itself.`,
	Version: version.Version,
}

var (
	interruptMu    sync.Mutex
	interruptHooks []func()
)

// OnInterrupt registers a hook that runs before the process exits on
// Ctrl-C, so an open session can delete its room on the way out.
func OnInterrupt(fn func()) {
	interruptMu.Lock()
	defer interruptMu.Unlock()
	interruptHooks = append(interruptHooks, fn)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		interruptMu.Lock()
		hooks := append([]func(){}, interruptHooks...)
		interruptMu.Unlock()
		for _, fn := range hooks {
			fn()
		}
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

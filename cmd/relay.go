package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MSayban1/Audio-Streamer-22222/internal/relay"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay/memory"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relay/redisstore"
	"github.com/MSayban1/Audio-Streamer-22222/internal/relayserver"
)

var (
	flagRelayAddr     string
	flagRelayRedis    string
	flagRelayRedisPwd string
	flagRelayRedisDB  int
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay daemon",
	Long: `Run the relay daemon that peers use to exchange connection setup.
State lives in memory by default; point it at Redis to survive restarts
or to run more than one instance.

Examples:
  aircast relay
  aircast relay --addr :9000
  aircast relay --redis localhost:6379`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay()
	},
}

func runRelay() error {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var store relay.Store
	if flagRelayRedis != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s, err := redisstore.New(ctx, redisstore.Options{
			Addr:     flagRelayRedis,
			Password: flagRelayRedisPwd,
			DB:       flagRelayRedisDB,
		})
		if err != nil {
			return err
		}
		store = s
		log.Info().Str("addr", flagRelayRedis).Msg("using redis store")
	} else {
		store = memory.New()
		log.Info().Msg("using in-memory store")
	}
	defer store.Close()

	srv := &http.Server{
		Addr:    flagRelayAddr,
		Handler: relayserver.New(store, log).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", flagRelayAddr).Msg("relay listening")
		errCh <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().StringVar(&flagRelayAddr, "addr", ":8787", "Listen address")
	relayCmd.Flags().StringVar(&flagRelayRedis, "redis", "", "Redis address (empty for in-memory)")
	relayCmd.Flags().StringVar(&flagRelayRedisPwd, "redis-password", "", "Redis password")
	relayCmd.Flags().IntVar(&flagRelayRedisDB, "redis-db", 0, "Redis database number")
}

package main

import (
	"github.com/MSayban1/Audio-Streamer-22222/cmd"
	"github.com/MSayban1/Audio-Streamer-22222/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}

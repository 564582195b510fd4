package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/Andrew920528/vibe-30/bucketservice"
)

func main() {
	if err := bucketservice.Run(); err != nil {
		log.Error().Err(err).Msg("vibe30-server exited with error")
		os.Exit(1)
	}
}

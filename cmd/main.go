// Command bgpd wires up a single speaker with one statically
// configured peer, built on this module's speaker/peer/fsm packages
// and logging with zerolog instead of the standard log package.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/routeware/bgpd/bgp"
	"github.com/routeware/bgpd/fsm"
	"github.com/routeware/bgpd/network"
	"github.com/routeware/bgpd/peer"
	"github.com/routeware/bgpd/speaker"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	identifier, err := network.FindBGPIdentifier()
	if err != nil {
		log.Warn().Err(err).Msg("could not determine a BGP identifier from local interfaces, using a placeholder")
		identifier = bgp.Identifier(0x01010101)
	}

	sp := speaker.New(speaker.Config{
		LocalAS:         65000,
		LocalIdentifier: identifier,
		ListenAddr:      "0.0.0.0:8179",
	}, log)

	sp.Peer(peer.Config{
		FSM: fsm.Config{
			HoldTime:         90,
			ConnectRetryTime: 30 * time.Second,
		},
		RemoteAddr: "127.0.0.1:179",
		RemoteAS:   65001,
	})

	log.Info().Str("listen", "0.0.0.0:8179").Msg("starting bgpd")
	if err := sp.Listen(); err != nil {
		log.Fatal().Err(err).Msg("speaker stopped")
	}
}

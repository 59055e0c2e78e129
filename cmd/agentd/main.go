package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aegis-platform/aegis/internal/admin"
	"github.com/aegis-platform/aegis/internal/comms"
	"github.com/aegis-platform/aegis/internal/comms/frame"
	"github.com/aegis-platform/aegis/internal/comms/protocol"
	"github.com/aegis-platform/aegis/internal/comms/transport"
	"github.com/aegis-platform/aegis/internal/config"
	"github.com/aegis-platform/aegis/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "path to node config (toml)")
	flag.Parse()

	logging.ConfigureRuntime()
	log.Logger = log.Logger.With().Str("app", "agentd").Logger()

	cfg := config.DefaultNodeConfig()
	if *cfgPath != "" {
		loaded, err := loadNodeConfig(*cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	agentID := protocol.NewAgentID()
	headers := protocol.NewHeaderSource(agentID)
	log.Info().Str("node", cfg.NodeID).Stringer("agent_id", agentID).Msg("starting")

	client := comms.NewClient(transport.NewTCPConnector(), comms.Config{
		Limits:          frame.Limits{MaxFrameBytes: cfg.MaxFrameBytes},
		ChannelCapacity: cfg.ChannelCapacity,
	})

	bound, err := comms.StartListener(client, cfg.ListenAddr, comms.JSONCodec[protocol.Envelope]{}, serveAgent(headers))
	if err != nil {
		return fmt.Errorf("start listener: %w", err)
	}
	log.Info().Str("addr", bound.String()).Msg("agent listener up")

	adminSrv := admin.New(cfg.NodeID, client, cfg.CorsOrigins)
	go func() {
		if err := adminSrv.Run(cfg.AdminAddr); err != nil {
			log.Error().Err(err).Msg("admin plane failed")
		}
	}()
	log.Info().Str("addr", cfg.AdminAddr).Msg("admin plane up")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("shutting down")

	if err := client.StopListener(bound.String()); err != nil && !errors.Is(err, comms.ErrListenerNotFound) {
		return err
	}
	return nil
}

// serveAgent answers pings and logs everything else. Connection teardown is
// driven entirely by Receive observing end-of-connection.
func serveAgent(headers *protocol.HeaderSource) func(*comms.ConnectionHandle[protocol.Envelope]) {
	return func(h *comms.ConnectionHandle[protocol.Envelope]) {
		defer h.Close()
		peer := h.PeerAddr().String()
		for {
			env, err := h.Receive()
			if err != nil {
				log.Debug().Str("peer", peer).Msg("peer connection ended")
				return
			}
			switch env.Kind {
			case protocol.KindPing:
				var ping protocol.Ping
				if err := env.Open(&ping); err != nil {
					log.Warn().Err(err).Str("peer", peer).Msg("malformed ping")
					continue
				}
				pong := protocol.Pong{
					Header:         headers.Next(protocol.KindPong, ping.Header.Priority),
					Echo:           ping.Payload,
					ResponseTimeMS: uint64(time.Now().UnixMilli()),
				}
				reply, err := protocol.Seal(protocol.KindPong, pong)
				if err != nil {
					log.Warn().Err(err).Msg("seal pong")
					continue
				}
				if err := h.Send(reply); err != nil {
					return
				}
			case protocol.KindDiscovery:
				var disc protocol.Discovery
				if err := env.Open(&disc); err != nil {
					log.Warn().Err(err).Str("peer", peer).Msg("malformed discovery")
					continue
				}
				log.Info().
					Str("peer", peer).
					Stringer("sender", disc.Header.Sender).
					Str("listen_addr", disc.ListenAddr).
					Msg("peer discovered")
			default:
				log.Debug().Str("peer", peer).Uint16("kind", uint16(env.Kind)).Msg("unhandled message kind")
			}
		}
	}
}

package comms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aegis-platform/aegis/internal/comms/frame"
	"github.com/aegis-platform/aegis/internal/comms/transport"
	"github.com/aegis-platform/aegis/internal/observability"
)

// DefaultChannelCapacity bounds each direction of a connection handle.
const DefaultChannelCapacity = 32

// Config tunes a Client. Zero values select the defaults.
type Config struct {
	// Limits is passed to every connection's frame codec.
	Limits frame.Limits
	// ChannelCapacity bounds the handle's send and receive channels.
	ChannelCapacity int
	// Listen creates listener sockets; overridable for test doubles.
	Listen func(addr string) (transport.Listener, error)
	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = DefaultChannelCapacity
	}
	if c.Listen == nil {
		c.Listen = func(addr string) (transport.Listener, error) {
			return transport.Listen(addr)
		}
	}
	if c.Logger == nil {
		c.Logger = &log.Logger
	}
	return c
}

// Client owns outbound connection establishment and the listener registry.
// One Client multiplexes any number of connections and listeners; each
// connection gets its own I/O loop and each listener its own accept loop.
type Client struct {
	connector transport.Connector
	cfg       Config
	log       zerolog.Logger

	mu        sync.Mutex
	listeners map[string]chan struct{}
}

func NewClient(connector transport.Connector, cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		connector: connector,
		cfg:       cfg,
		log:       *cfg.Logger,
		listeners: make(map[string]chan struct{}),
	}
}

// NewDefaultClient returns a Client over TCP with default limits.
func NewDefaultClient() *Client {
	return NewClient(transport.NewTCPConnector(), Config{})
}

// ConnectTyped establishes a connection to addr and returns a typed handle.
// The handle is live immediately; its I/O loop runs until the peer closes,
// the transport fails, or the handle is closed. A nil codec selects JSON.
func ConnectTyped[T any](ctx context.Context, c *Client, addr string, codec Codec[T]) (*ConnectionHandle[T], error) {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	st, err := c.connector.Connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	peer, err := st.PeerAddr()
	if err != nil {
		_ = st.Shutdown()
		return nil, err
	}
	h := newConnectionHandle[T](peer, c.cfg.ChannelCapacity)
	connLog := c.log.With().Str("peer", peer.String()).Logger()
	go serveConn(connLog, st, c.cfg.Limits, codec, h)
	return h, nil
}

// StartListener binds addr, registers the listener, and starts its accept
// loop. Every accepted connection gets a dedicated I/O loop and handle;
// handler runs as its own goroutine per connection. Returns the bound
// address (resolves an ephemeral port request). A nil codec selects JSON.
func StartListener[T any](c *Client, addr string, codec Codec[T], handler func(*ConnectionHandle[T])) (net.Addr, error) {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	ln, err := c.cfg.Listen(addr)
	if err != nil {
		return nil, err
	}
	bound := ln.LocalAddr()
	key := bound.String()
	stopCh := make(chan struct{})

	c.mu.Lock()
	if _, exists := c.listeners[key]; exists {
		c.mu.Unlock()
		_ = ln.Close()
		return nil, fmt.Errorf("comms: listener already registered at %s", key)
	}
	c.listeners[key] = stopCh
	c.mu.Unlock()

	lnLog := c.log.With().Str("listener", key).Logger()
	go acceptLoop(c, ln, key, stopCh, codec, handler, lnLog)
	lnLog.Info().Msg("listener started")
	return bound, nil
}

// StopListener signals the accept loop registered at addr and removes its
// registry entry; both happen under one lock hold. Stopping an address with
// no listener is ErrListenerNotFound, never a silent no-op. Other listeners
// are unaffected.
func (c *Client) StopListener(addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stopCh, ok := c.listeners[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrListenerNotFound, addr)
	}
	delete(c.listeners, addr)
	close(stopCh)
	return nil
}

// Listeners returns a sorted snapshot of registered listener addresses.
func (c *Client) Listeners() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.listeners))
	for addr := range c.listeners {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func acceptLoop[T any](c *Client, ln transport.Listener, key string, stopCh chan struct{}, codec Codec[T], handler func(*ConnectionHandle[T]), lnLog zerolog.Logger) {
	loopDone := make(chan struct{})
	defer close(loopDone)
	// Closing the socket is what unblocks Accept on stop; loopDone releases
	// the monitor when the loop exits on its own.
	go func() {
		select {
		case <-stopCh:
		case <-loopDone:
		}
		_ = ln.Close()
	}()
	// Error-path cleanup; StopListener already removed the entry on the
	// signaled path, and a later listener on the same address keeps its own.
	defer c.removeListener(key, stopCh)

	for {
		st, peer, err := ln.Accept()
		if err != nil {
			select {
			case <-stopCh:
				lnLog.Info().Msg("listener stopped")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				lnLog.Error().Err(err).Msg("listener socket closed")
				return
			}
			// Everything else is per-connection: an aborted pending
			// connection or a transient accept failure must not kill the
			// listening socket.
			observability.RecordAcceptError()
			lnLog.Warn().Err(err).Msg("accept failed")
			continue
		}

		h := newConnectionHandle[T](peer, c.cfg.ChannelCapacity)
		connLog := lnLog.With().Str("peer", peer.String()).Logger()
		go serveConn(connLog, st, c.cfg.Limits, codec, h)
		go handler(h)
		lnLog.Debug().Str("peer", peer.String()).Msg("accepted connection")
	}
}

func (c *Client) removeListener(key string, stopCh chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.listeners[key]; ok && cur == stopCh {
		delete(c.listeners, key)
	}
}

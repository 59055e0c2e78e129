package comms

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/aegis-platform/aegis/internal/comms/frame"
	"github.com/aegis-platform/aegis/internal/comms/transport"
	"github.com/aegis-platform/aegis/internal/observability"
)

// serveConn is the I/O loop for one connection. It runs until the first of:
// inbound stream ends or fails, outbound write fails, or the handle requests
// close. Loop exit is the sole destructor of the connection's resources:
// the stream is shut down, the inbound channel is closed so receivers
// observe end-of-connection, and the handle's done channel is closed so
// senders fail fast.
func serveConn[T any](log zerolog.Logger, st transport.Stream, limits frame.Limits, codec Codec[T], h *ConnectionHandle[T]) {
	observability.ConnectionOpened()
	defer observability.ConnectionClosed()

	dec := frame.NewDecoder(st, limits)
	enc := frame.NewEncoder(st, limits)

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		defer close(h.recvCh)
		for {
			payload, err := dec.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Warn().Err(err).Msg("inbound stream terminated")
				}
				return
			}
			observability.RecordFrame(observability.DirectionInbound, len(payload))
			msg, err := codec.Decode(payload)
			if err != nil {
				// Malformed individual messages must not bring down an
				// otherwise healthy stream.
				observability.RecordCodecDrop("decode")
				log.Warn().Err(err).Int("bytes", len(payload)).Msg("dropping undecodable message")
				continue
			}
			select {
			case h.recvCh <- msg:
			case <-stop:
				return
			}
		}
	}()

	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-h.sendCh:
				payload, err := codec.Encode(msg)
				if err != nil {
					observability.RecordCodecDrop("encode")
					log.Warn().Err(err).Msg("dropping unencodable message")
					continue
				}
				if err := enc.Write(payload); err != nil {
					log.Warn().Err(err).Msg("outbound write failed")
					return
				}
				observability.RecordFrame(observability.DirectionOutbound, len(payload))
			case <-stop:
				return
			}
		}
	}()

	select {
	case <-h.closeReq:
	case <-readerDone:
	case <-writerDone:
	}

	close(stop)
	// Unblocks whichever side is parked in a stream read or write.
	_ = st.Shutdown()
	<-readerDone
	<-writerDone
	close(h.done)

	log.Debug().Msg("connection loop terminated")
}

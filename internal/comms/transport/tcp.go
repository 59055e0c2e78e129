package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

const defaultConnectTimeout = 10 * time.Second

// TCPStream adapts a TCP connection to the Stream contract.
type TCPStream struct {
	conn *net.TCPConn

	closeOnce sync.Once
	closeErr  error
}

func newTCPStream(conn *net.TCPConn) *TCPStream {
	// Frames are written as one chunk each; no reason to let the kernel
	// batch them.
	_ = conn.SetNoDelay(true)
	return &TCPStream{conn: conn}
}

func (s *TCPStream) ReadChunk(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	return n, Classify(err)
}

func (s *TCPStream) WriteChunk(p []byte) error {
	_, err := s.conn.Write(p)
	return Classify(err)
}

func (s *TCPStream) PeerAddr() (net.Addr, error) {
	addr := s.conn.RemoteAddr()
	if addr == nil {
		return nil, ErrConnectionClosed
	}
	return addr, nil
}

func (s *TCPStream) Shutdown() error {
	s.closeOnce.Do(func() {
		s.closeErr = Classify(s.conn.Close())
	})
	return s.closeErr
}

// TCPListener adapts a TCP listening socket to the Listener contract.
type TCPListener struct {
	ln *net.TCPListener
}

// Listen binds a TCP listener on addr. Passing port 0 binds an ephemeral
// port; the bound address is available through LocalAddr.
func Listen(addr string) (*TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, Classify(err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, Classify(err)
	}
	return &TCPListener{ln: ln}, nil
}

func (l *TCPListener) Accept() (Stream, net.Addr, error) {
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		return nil, nil, Classify(err)
	}
	return newTCPStream(conn), conn.RemoteAddr(), nil
}

func (l *TCPListener) LocalAddr() net.Addr {
	return l.ln.Addr()
}

func (l *TCPListener) Close() error {
	return Classify(l.ln.Close())
}

// TCPConnector establishes outbound TCP streams.
type TCPConnector struct {
	timeout time.Duration
}

func NewTCPConnector() *TCPConnector {
	return &TCPConnector{timeout: defaultConnectTimeout}
}

func (c *TCPConnector) Connect(ctx context.Context, addr string) (Stream, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, Classify(err)
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("transport: unexpected connection type %T", conn)
	}
	return newTCPStream(tcpConn), nil
}

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/farol/protocol"
	"github.com/luma/farol/storage"
)

type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr string

	numListeners int
	listeners    []*TCPListener

	reuseport bool
	trace     bool

	store storage.Store

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		reuseport:    options.Reuseport,
		trace:        options.Trace,
		store:        options.Store,
		log:          options.Log,
	}
}

func (w *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	for i := 0; i < w.numListeners; i++ {
		w.startListener(ctx, w.addr)
	}

	return nil
}

func (w *TCP) Store() storage.Store {
	return w.store
}

func (w *TCP) startListener(ctx context.Context, addr string) {
	w.stopWaiter.Add(1)
	listener := NewTCPListener(
		ctx,
		addr,
		w.reuseport,
		w.trace,
		w.store,
		w.log.Named("listener").With(zap.Int("listener", len(w.listeners))),
	)

	w.listeners = append(w.listeners, &listener)

	go func() {
		defer w.stopWaiter.Done()

		if err := listener.Listen(); err != nil {
			// TODO(rolly) as any of the listeners can fail to listen, but we don't treat this as fatal,
			//             you can end up with less than the required amount of listeners running
			w.log.Error("Failed to listen", zap.Error(err))
		}
	}()
}

// Close immediately closes all active listeners and connections.
func (w *TCP) Close() (err error) {
	w.log.Info("Stopping TCP server")
	w.cancel()

	// Tell listeners to stop
	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.Close())
	}

	w.stopWaiter.Wait()
	w.log.Info("TCP server stopped")

	return err
}

type TCPListener struct {
	ctx context.Context

	addr      string
	reuseport bool
	trace     bool
	log       *zap.Logger

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}

	store storage.Store
}

func NewTCPListener(
	ctx context.Context,
	addr string,
	useReuseport bool,
	trace bool,
	store storage.Store,
	log *zap.Logger,
) TCPListener {
	return TCPListener{
		ctx:         ctx,
		activeConns: make(map[*TCPConn]struct{}),
		addr:        addr,
		reuseport:   useReuseport,
		trace:       trace,
		store:       store,
		log:         log,
	}
}

func (t *TCPListener) Close() (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for conn := range t.activeConns {
		err = multierr.Append(err, conn.Close())
		delete(t.activeConns, conn)
	}

	return err
}

func (t *TCPListener) Listen() error {
	listener, err := t.listen()
	if err != nil {
		return err
	}

	defer listener.Close()

	var loopWaiter sync.WaitGroup

	go func() {
		<-t.ctx.Done()

		t.log.Info("Closing listener")
		if err := listener.Close(); err != nil {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.ctx.Done():
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				t.log.Info("Stopped accepting new connections")
				loopWaiter.Wait()

				t.log.Info("Listener stopped")
				return nil

			default:
			}

			netOpError := new(net.OpError)
			if errors.As(err, &netOpError) && netOpError.Unwrap().Error() == "use of closed network connection" {
				return nil
			}

			// TODO(rolly) can we recover from some classes of err?
			return err
		}

		tcpConn := NewTCPConn(t.ctx, conn, t.store, t.trace, t.log.Named("conn"))
		t.addConn(tcpConn)

		loopWaiter.Add(1)

		go func() {
			defer loopWaiter.Done()
			defer t.removeConn(tcpConn)

			tcpConn.Serve()
		}()
	}
}

func (t *TCPListener) listen() (net.Listener, error) {
	if t.reuseport {
		return reuseport.Listen("tcp", t.addr)
	}

	return net.Listen("tcp", t.addr)
}

func (t *TCPListener) addConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

// TCPConn drives one accepted connection: read a request frame, dispatch
// it, write the reply frame, repeat. The protocol.Conn is single-owner so
// the whole cycle runs on the Serve goroutine, there is no separate write
// loop.
type TCPConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn  *protocol.Conn
	store storage.Store

	closeOnce sync.Once

	trace bool
	log   *zap.Logger
}

func NewTCPConn(
	parentCtx context.Context,
	stream net.Conn,
	store storage.Store,
	trace bool,
	log *zap.Logger,
) *TCPConn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &TCPConn{
		ctx:    ctx,
		cancel: cancel,
		conn:   protocol.NewConn(stream),
		store:  store,
		trace:  trace,
		log:    log.With(zap.String("remoteAddr", stream.RemoteAddr().String())),
	}
}

// Close tears the connection down. A ReadFrame blocked in Serve fails
// rather than hanging once the underlying stream closes.
func (t *TCPConn) Close() (err error) {
	t.closeOnce.Do(func() {
		t.cancel()
		err = t.conn.Close()
	})

	return err
}

func (t *TCPConn) Serve() {
	// Cancellation is stream closure: closing the socket is what makes a
	// blocked ReadFrame below return.
	go func() {
		<-t.ctx.Done()

		if err := t.Close(); err != nil {
			t.log.Warn("Failed to close connection cleanly", zap.Error(err))
		}
	}()

	defer func() {
		if err := t.Close(); err != nil {
			t.log.Warn("Failed to close connection cleanly", zap.Error(err))
		}

		t.log.Info("Connection closed")
	}()

	for {
		frame, err := t.conn.ReadFrame()
		if err != nil {
			t.logReadEnd(err)
			return
		}

		if t.trace {
			t.log.Debug("Read frame", zap.Any("frame", frame))
		}

		reply, quit := t.dispatch(frame)

		if t.trace {
			t.log.Debug("Writing frame", zap.Any("frame", reply))
		}

		if err := t.conn.WriteFrame(reply); err != nil {
			t.log.Warn("Failed to write reply", zap.Error(err))
			return
		}

		if quit {
			t.log.Info("Client QUIT, exiting...")
			return
		}
	}
}

func (t *TCPConn) logReadEnd(err error) {
	switch {
	case errors.Is(err, io.EOF):
		// Clean close between frames, nothing to report.

	case errors.Is(err, protocol.ErrConnReset):
		t.log.Warn("Client disappeared mid-frame", zap.Error(err))

	case protocol.IsProtocolError(err):
		t.log.Warn("Client sent an unparseable byte stream", zap.Error(err))

	default:
		select {
		case <-t.ctx.Done():
			// The read failed because we closed the connection ourselves.

		default:
			t.log.Warn("Failed to read client request", zap.Error(err))
		}
	}
}

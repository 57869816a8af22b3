package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/farol/protocol"
	"github.com/luma/farol/storage"
)

// ServerError is an Error frame sent by the server in reply to a request.
type ServerError struct {
	Message string
}

func (s *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", s.Message)
}

var ErrNotConnected = errors.New("client is not connected")

// Conn is a client connection to a Farol server. Replies arrive in request
// order, so requests are serialised: one request/response exchange runs at
// a time and later callers wait their turn.
type Conn struct {
	mu   sync.Mutex
	conn *protocol.Conn
	raw  net.Conn

	log *zap.Logger
}

func New(log *zap.Logger) *Conn {
	return &Conn{log: log}
}

func (c *Conn) Connect(ctx context.Context, addr string) error {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.raw = conn
	c.conn = protocol.NewConn(conn)
	c.mu.Unlock()

	c.log.Info("Connected", zap.String("addr", addr))

	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.raw = nil

	return err
}

// Ping round-trips a PING and checks for the PONG.
func (c *Conn) Ping(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, command("PING"))
	if err != nil {
		return err
	}

	if reply != protocol.Simple("PONG") {
		return fmt.Errorf("unexpected reply to PING: %v", reply)
	}

	return nil
}

// Echo asks the server to reflect msg back.
func (c *Conn) Echo(ctx context.Context, msg []byte) ([]byte, error) {
	reply, err := c.roundTrip(ctx, command("ECHO", msg))
	if err != nil {
		return nil, err
	}

	bulk, ok := reply.(protocol.Bulk)
	if !ok {
		return nil, fmt.Errorf("unexpected reply to ECHO: %v", reply)
	}

	return bulk, nil
}

// Get fetches the value of key. A missing key is storage.ErrKeyNotFound.
func (c *Conn) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := c.roundTrip(ctx, command("GET", []byte(key)))
	if err != nil {
		return nil, err
	}

	switch r := reply.(type) {
	case protocol.Bulk:
		return r, nil

	case protocol.Null:
		return nil, storage.ErrKeyNotFound

	default:
		return nil, fmt.Errorf("unexpected reply to GET: %v", reply)
	}
}

func (c *Conn) Set(ctx context.Context, key string, value []byte) error {
	reply, err := c.roundTrip(ctx, command("SET", []byte(key), value))
	if err != nil {
		return err
	}

	if reply != protocol.Simple("OK") {
		return fmt.Errorf("unexpected reply to SET: %v", reply)
	}

	return nil
}

// Del removes the given keys, returning how many of them existed.
func (c *Conn) Del(ctx context.Context, keys ...string) (uint64, error) {
	reply, err := c.roundTrip(ctx, command("DEL", keyArgs(keys)...))
	if err != nil {
		return 0, err
	}

	count, ok := reply.(protocol.Integer)
	if !ok {
		return 0, fmt.Errorf("unexpected reply to DEL: %v", reply)
	}

	return uint64(count), nil
}

// Exists returns how many of the given keys currently exist.
func (c *Conn) Exists(ctx context.Context, keys ...string) (uint64, error) {
	reply, err := c.roundTrip(ctx, command("EXISTS", keyArgs(keys)...))
	if err != nil {
		return 0, err
	}

	count, ok := reply.(protocol.Integer)
	if !ok {
		return 0, fmt.Errorf("unexpected reply to EXISTS: %v", reply)
	}

	return uint64(count), nil
}

// Keys lists every key on the server.
func (c *Conn) Keys(ctx context.Context) ([]string, error) {
	reply, err := c.roundTrip(ctx, command("KEYS"))
	if err != nil {
		return nil, err
	}

	listing, ok := reply.(protocol.Array)
	if !ok {
		return nil, fmt.Errorf("unexpected reply to KEYS: %v", reply)
	}

	keys := make([]string, 0, len(listing))

	for _, element := range listing {
		key, ok := element.(protocol.Bulk)
		if !ok {
			return nil, fmt.Errorf("unexpected element in KEYS reply: %v", element)
		}

		keys = append(keys, string(key))
	}

	return keys, nil
}

// Quit tells the server we are done. The server acknowledges and closes
// the connection, Quit closes our side too.
func (c *Conn) Quit(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, command("QUIT"))
	if err != nil {
		return err
	}

	if reply != protocol.Simple("OK") {
		return fmt.Errorf("unexpected reply to QUIT: %v", reply)
	}

	return c.Close()
}

// roundTrip writes one request frame and reads it's reply, applying the
// context deadline to the socket for both halves of the exchange.
func (c *Conn) roundTrip(ctx context.Context, request protocol.Frame) (protocol.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	if err := c.raw.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if err := c.conn.WriteFrame(request); err != nil {
		return nil, err
	}

	reply, err := c.conn.ReadFrame()
	if err != nil {
		return nil, err
	}

	if errFrame, ok := reply.(protocol.Error); ok {
		return nil, &ServerError{Message: string(errFrame)}
	}

	return reply, nil
}

func command(name string, args ...[]byte) protocol.Frame {
	request := protocol.Array{protocol.Bulk(name)}
	for _, arg := range args {
		request = append(request, protocol.Bulk(arg))
	}

	return request
}

func keyArgs(keys []string) [][]byte {
	args := make([][]byte, 0, len(keys))
	for _, key := range keys {
		args = append(args, []byte(key))
	}

	return args
}

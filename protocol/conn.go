package protocol

import (
	"bufio"
	"errors"
	"io"
)

// InitialBufferSize is the receive buffer capacity a new Conn starts with.
// The buffer doubles whenever it fills before a frame completes, so no
// single frame is bounded by this size.
const InitialBufferSize = 4096

// Conn frames a single byte stream, usually a net.Conn. It owns the stream:
// reads accumulate into a growable receive buffer until a whole frame is
// parseable, writes are buffered and flushed once per frame.
//
// A Conn is single-owner: it assumes one goroutine drives a full
// read-then-respond cycle at a time and adds no locking of it's own.
// After any error other than ErrIncomplete bubbles out of ReadFrame or
// WriteFrame the Conn must not be reused.
type Conn struct {
	stream io.ReadWriteCloser
	writer *bufio.Writer

	// buf[:cursor] holds bytes received but not yet consumed. Bytes of a
	// parsed frame are removed from the front before the frame is
	// returned, so no byte is ever interpreted twice.
	buf    []byte
	cursor int

	scratch []byte
}

// NewConn wraps stream in a Conn. The Conn owns the stream from here on,
// closing the Conn closes the stream.
func NewConn(stream io.ReadWriteCloser) *Conn {
	return &Conn{
		stream: stream,
		writer: bufio.NewWriter(stream),
		buf:    make([]byte, InitialBufferSize),
	}
}

// ReadFrame returns the next frame from the stream, blocking until one
// whole frame has arrived.
//
// A clean close of the stream between frames is reported as io.EOF, which
// is "no more frames", not a failure. A close part way through a frame is
// reported as ErrConnReset. Protocol errors and transport errors are
// returned as-is, all of them leave the Conn unusable.
func (c *Conn) ReadFrame() (Frame, error) {
	for {
		frame, err := c.parseBuffered()
		if err == nil {
			return frame, nil
		}

		if !errors.Is(err, ErrIncomplete) {
			return nil, err
		}

		// No whole frame yet. Make sure there is room to receive more,
		// then block on the stream for the next chunk.
		if c.cursor == len(c.buf) {
			grown := make([]byte, 2*len(c.buf))
			copy(grown, c.buf[:c.cursor])
			c.buf = grown
		}

		n, err := c.stream.Read(c.buf[c.cursor:])
		c.cursor += n

		if n == 0 && err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}

			if c.cursor == 0 {
				return nil, io.EOF
			}

			return nil, ErrConnReset
		}
		// A read that returned bytes alongside an error gets one more
		// parse attempt, the error resurfaces on the next empty read.
	}
}

// parseBuffered attempts Check then Parse against the valid region of the
// receive buffer, compacting the buffer on success.
func (c *Conn) parseBuffered() (Frame, error) {
	end, err := Check(c.buf[:c.cursor])
	if err != nil {
		return nil, err
	}

	frame, err := Parse(c.buf[:end])
	if err != nil {
		return nil, err
	}

	c.cursor = copy(c.buf, c.buf[end:c.cursor])

	return frame, nil
}

// WriteFrame serialises one frame to the stream and flushes, so when it
// returns the frame has been handed to the transport in full.
func (c *Conn) WriteFrame(frame Frame) error {
	c.scratch = AppendFrame(c.scratch[:0], frame)

	if _, err := c.writer.Write(c.scratch); err != nil {
		return err
	}

	return c.writer.Flush()
}

// Close closes the underlying stream. Any pending ReadFrame fails rather
// than hanging.
func (c *Conn) Close() error {
	return c.stream.Close()
}

package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/farol/protocol"
)

// scriptedStream hands out the given chunks one Read at a time, then EOF.
// Writes accumulate into sent.
type scriptedStream struct {
	chunks [][]byte
	sent   bytes.Buffer
	closed bool
}

func newScriptedStream(chunks ...string) *scriptedStream {
	s := &scriptedStream{}
	for _, chunk := range chunks {
		s.chunks = append(s.chunks, []byte(chunk))
	}

	return s
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}

	n := copy(p, s.chunks[0])
	if n < len(s.chunks[0]) {
		s.chunks[0] = s.chunks[0][n:]
	} else {
		s.chunks = s.chunks[1:]
	}

	return n, nil
}

func (s *scriptedStream) Write(p []byte) (int, error) {
	return s.sent.Write(p)
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

var _ = Describe("Conn", func() {
	Describe("ReadFrame()", func() {
		It("reads a frame that arrives in one chunk", func() {
			conn := protocol.NewConn(newScriptedStream("+OK\r\n"))

			frame, err := conn.ReadFrame()
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Simple("OK")))
		})

		It("reads a frame split across two reads", func() {
			conn := protocol.NewConn(newScriptedStream("+OK\r", "\n"))

			frame, err := conn.ReadFrame()
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Simple("OK")))
		})

		It("reads a frame delivered one byte at a time", func() {
			wire := "*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"

			var chunks []string
			for i := 0; i < len(wire); i++ {
				chunks = append(chunks, wire[i:i+1])
			}

			conn := protocol.NewConn(newScriptedStream(chunks...))

			frame, err := conn.ReadFrame()
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Array{
				protocol.Bulk("foo"),
				protocol.Bulk("bar"),
			}))
		})

		It("reads pipelined frames from a single chunk one at a time", func() {
			conn := protocol.NewConn(newScriptedStream("+one\r\n+two\r\n"))

			frame, err := conn.ReadFrame()
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Simple("one")))

			frame, err = conn.ReadFrame()
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Simple("two")))

			_, err = conn.ReadFrame()
			Expect(err).To(MatchError(io.EOF))
		})

		It("grows the receive buffer for frames larger than it's initial size", func() {
			payload := strings.Repeat("x", 3*protocol.InitialBufferSize)
			wire := protocol.AppendFrame(nil, protocol.Bulk(payload))

			// Split the oversized frame into chunks so growth happens
			// across several reads rather than one lucky big one.
			var chunks []string
			for len(wire) > 0 {
				n := 1024
				if n > len(wire) {
					n = len(wire)
				}

				chunks = append(chunks, string(wire[:n]))
				wire = wire[n:]
			}

			conn := protocol.NewConn(newScriptedStream(chunks...))

			frame, err := conn.ReadFrame()
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Bulk(payload)))
		})

		It("reports a clean close with no buffered bytes as io.EOF", func() {
			conn := protocol.NewConn(newScriptedStream())

			_, err := conn.ReadFrame()
			Expect(err).To(MatchError(io.EOF))
		})

		It("reports a close part way through a frame as a reset", func() {
			conn := protocol.NewConn(newScriptedStream("$5\r\nhel"))

			_, err := conn.ReadFrame()
			Expect(err).To(MatchError(protocol.ErrConnReset))
		})

		It("surfaces protocol errors to the caller", func() {
			conn := protocol.NewConn(newScriptedStream(":12a\r\n"))

			_, err := conn.ReadFrame()
			Expect(protocol.IsProtocolError(err)).To(BeTrue())
			Expect(errors.Is(err, protocol.ErrBadInteger)).To(BeTrue())
		})
	})

	Describe("WriteFrame()", func() {
		It("writes the serialised frame and flushes", func() {
			stream := newScriptedStream()
			conn := protocol.NewConn(stream)

			Expect(conn.WriteFrame(protocol.Bulk("hello"))).To(Succeed())
			Expect(stream.sent.String()).To(Equal("$5\r\nhello\r\n"))
		})

		It("round-trips every variant through a second Conn", func() {
			frames := []protocol.Frame{
				protocol.Simple("OK"),
				protocol.Error("ERR oops"),
				protocol.Integer(42),
				protocol.Bulk("hello"),
				protocol.Null{},
				protocol.Array{protocol.Bulk("foo"), protocol.Integer(1)},
			}

			stream := newScriptedStream()
			writer := protocol.NewConn(stream)

			for _, frame := range frames {
				Expect(writer.WriteFrame(frame)).To(Succeed())
			}

			reader := protocol.NewConn(newScriptedStream(stream.sent.String()))

			for _, frame := range frames {
				decoded, err := reader.ReadFrame()
				Expect(err).To(Succeed())
				Expect(decoded).To(Equal(frame))
			}
		})
	})

	Describe("Close()", func() {
		It("closes the underlying stream", func() {
			stream := newScriptedStream()
			conn := protocol.NewConn(stream)

			Expect(conn.Close()).To(Succeed())
			Expect(stream.closed).To(BeTrue())
		})
	})
})

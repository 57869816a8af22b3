package protocol

import "errors"

// ProtocolError reports bytes that cannot be a prefix of any valid frame.
// It is fatal to a connection: once the byte boundaries are untrustworthy
// there is no resynchronising, the caller must close the stream.
type ProtocolError string

func (p ProtocolError) Error() string { return string(p) }

var (
	ErrUnknownSigil  = ProtocolError("protocol error: unknown frame sigil")
	ErrBadLineEnding = ProtocolError("protocol error: expected CRLF line terminator")
	ErrBadInteger    = ProtocolError("protocol error: malformed base-10 integer")
	ErrBadBulkLength = ProtocolError("protocol error: invalid bulk length")
	ErrBadBulkEnding = ProtocolError("protocol error: bulk payload is not CRLF terminated")
	ErrBadArrayLen   = ProtocolError("protocol error: invalid array length")
	ErrArrayTooDeep  = ProtocolError("protocol error: arrays nested too deeply")
	ErrNotText       = ProtocolError("protocol error: simple string is not valid UTF-8")
)

var (
	// ErrIncomplete signals that the scanned bytes are a valid prefix of
	// some frame but do not yet contain a whole one. It is an expected
	// condition, not a failure: read more bytes and scan again.
	ErrIncomplete = errors.New("frame is incomplete, more bytes are needed")

	// ErrConnReset signals that the peer closed the stream part way
	// through a frame.
	ErrConnReset = errors.New("connection reset by peer mid-frame")
)

// IsProtocolError returns true if the error means the stream is no longer
// parseable and the connection should be closed.
func IsProtocolError(err error) bool {
	var p ProtocolError
	return errors.As(err, &p)
}

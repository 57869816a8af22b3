package protocol

import "math"

const (
	// MaxBulkLen bounds the declared length of a single Bulk payload.
	// This matches Redis's proto-max-bulk-len default.
	MaxBulkLen = 512 << 20

	// MaxArrayLen bounds the declared element count of a single Array.
	MaxArrayLen = 1 << 20

	// MaxArrayDepth bounds how deeply Arrays may nest.
	MaxArrayDepth = 32
)

// Check scans the given bytes for one complete frame, without consuming or
// allocating anything. On success it returns the exact end offset of the
// frame, so b[:end] is the frame's wire bytes and b[end:] is whatever
// follows. It returns ErrIncomplete if the span ends before the frame does,
// and a ProtocolError if the bytes cannot be part of any valid frame.
//
// Check is pure: running it twice over the same unmodified span yields the
// same result.
func Check(b []byte) (end int, err error) {
	return checkAt(b, 0, 0)
}

func checkAt(b []byte, pos, depth int) (int, error) {
	if pos >= len(b) {
		return 0, ErrIncomplete
	}

	switch b[pos] {
	case '+', '-':
		return checkLine(b, pos+1)

	case ':':
		end, err := checkLine(b, pos+1)
		if err != nil {
			return 0, err
		}

		if _, err := scanUint(b[pos+1 : end-2]); err != nil {
			return 0, err
		}

		return end, nil

	case '$':
		return checkBulk(b, pos+1)

	case '*':
		return checkArray(b, pos+1, depth)

	default:
		return 0, ErrUnknownSigil
	}
}

// checkLine scans for the CRLF terminating a line that starts at pos,
// returning the offset just past the LF. CR and LF bytes are reserved, so
// a CR not followed by LF, or a bare LF, is a protocol error.
func checkLine(b []byte, pos int) (int, error) {
	for i := pos; i < len(b); i++ {
		switch b[i] {
		case '\r':
			if i+1 >= len(b) {
				return 0, ErrIncomplete
			}

			if b[i+1] != '\n' {
				return 0, ErrBadLineEnding
			}

			return i + 2, nil

		case '\n':
			return 0, ErrBadLineEnding
		}
	}

	return 0, ErrIncomplete
}

func checkBulk(b []byte, pos int) (int, error) {
	if pos >= len(b) {
		return 0, ErrIncomplete
	}

	// `$-1\r\n` encodes Null. No other negative length is valid.
	if b[pos] == '-' {
		return checkNull(b, pos)
	}

	end, err := checkLine(b, pos)
	if err != nil {
		return 0, err
	}

	length, err := scanUint(b[pos : end-2])
	if err != nil {
		return 0, ErrBadBulkLength
	}

	if length > MaxBulkLen {
		return 0, ErrBadBulkLength
	}

	// The payload is exactly `length` raw bytes plus a trailing CRLF.
	payloadEnd := end + int(length)
	if payloadEnd+2 > len(b) {
		return 0, ErrIncomplete
	}

	if b[payloadEnd] != '\r' || b[payloadEnd+1] != '\n' {
		return 0, ErrBadBulkEnding
	}

	return payloadEnd + 2, nil
}

func checkNull(b []byte, pos int) (int, error) {
	for i, c := range []byte("-1\r\n") {
		if pos+i >= len(b) {
			return 0, ErrIncomplete
		}

		if b[pos+i] != c {
			return 0, ErrBadBulkLength
		}
	}

	return pos + 4, nil
}

func checkArray(b []byte, pos, depth int) (int, error) {
	if depth >= MaxArrayDepth {
		return 0, ErrArrayTooDeep
	}

	end, err := checkLine(b, pos)
	if err != nil {
		return 0, err
	}

	count, err := scanUint(b[pos : end-2])
	if err != nil {
		return 0, ErrBadArrayLen
	}

	if count > MaxArrayLen {
		return 0, ErrBadArrayLen
	}

	for i := uint64(0); i < count; i++ {
		end, err = checkAt(b, end, depth+1)
		if err != nil {
			return 0, err
		}
	}

	return end, nil
}

// scanUint parses base-10 digits with no sign. It rejects empty input,
// non-digit bytes and values overflowing uint64.
func scanUint(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, ErrBadInteger
	}

	var n uint64

	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, ErrBadInteger
		}

		d := uint64(c - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, ErrBadInteger
		}

		n = n*10 + d
	}

	return n, nil
}

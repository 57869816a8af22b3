package protocol

import (
	"io"
	"strconv"
)

var (
	Terminal = []byte("\r\n")
	NullWire = []byte("$-1\r\n")
)

// AppendFrame serialises frame onto dst and returns the extended slice.
func AppendFrame(dst []byte, frame Frame) []byte {
	switch f := frame.(type) {
	case Simple:
		dst = append(dst, '+')
		dst = append(dst, f...)
		return append(dst, Terminal...)

	case Error:
		dst = append(dst, '-')
		dst = append(dst, f...)
		return append(dst, Terminal...)

	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendUint(dst, uint64(f), 10)
		return append(dst, Terminal...)

	case Bulk:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(f)), 10)
		dst = append(dst, Terminal...)
		dst = append(dst, f...)
		return append(dst, Terminal...)

	case Null:
		return append(dst, NullWire...)

	case Array:
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(f)), 10)
		dst = append(dst, Terminal...)

		for _, element := range f {
			dst = AppendFrame(dst, element)
		}

		return dst

	default:
		// The Frame variant set is closed, this is unreachable.
		panic("protocol: unknown frame variant")
	}
}

// WriteFrame serialises frame and writes it to w in a single Write call.
func WriteFrame(w io.Writer, frame Frame) error {
	_, err := w.Write(AppendFrame(nil, frame))
	return err
}

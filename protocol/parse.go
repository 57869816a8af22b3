package protocol

import "unicode/utf8"

// Parse materialises one frame from a span that Check has already accepted,
// allocating the owned strings, byte buffers and child slices only now.
// The returned Frame shares no memory with b.
//
// Parse revalidates as it goes, so calling it on an unchecked span returns
// an error rather than panicking, but the intended use is always
// Check-then-Parse.
func Parse(b []byte) (Frame, error) {
	frame, _, err := parseAt(b, 0)
	return frame, err
}

func parseAt(b []byte, pos int) (Frame, int, error) {
	if pos >= len(b) {
		return nil, 0, ErrIncomplete
	}

	switch b[pos] {
	case '+':
		line, end, err := parseLine(b, pos+1)
		if err != nil {
			return nil, 0, err
		}

		if !utf8.Valid(line) {
			return nil, 0, ErrNotText
		}

		return Simple(line), end, nil

	case '-':
		line, end, err := parseLine(b, pos+1)
		if err != nil {
			return nil, 0, err
		}

		if !utf8.Valid(line) {
			return nil, 0, ErrNotText
		}

		return Error(line), end, nil

	case ':':
		line, end, err := parseLine(b, pos+1)
		if err != nil {
			return nil, 0, err
		}

		n, err := scanUint(line)
		if err != nil {
			return nil, 0, err
		}

		return Integer(n), end, nil

	case '$':
		return parseBulk(b, pos+1)

	case '*':
		return parseArray(b, pos+1)

	default:
		return nil, 0, ErrUnknownSigil
	}
}

func parseLine(b []byte, pos int) ([]byte, int, error) {
	end, err := checkLine(b, pos)
	if err != nil {
		return nil, 0, err
	}

	return b[pos : end-2], end, nil
}

func parseBulk(b []byte, pos int) (Frame, int, error) {
	end, err := checkBulk(b, pos)
	if err != nil {
		return nil, 0, err
	}

	if b[pos] == '-' {
		return Null{}, end, nil
	}

	// end points past the payload's trailing CRLF, so the payload itself
	// is everything between the length line and that terminator.
	lineEnd, err := checkLine(b, pos)
	if err != nil {
		return nil, 0, err
	}

	payload := make([]byte, end-2-lineEnd)
	copy(payload, b[lineEnd:end-2])

	return Bulk(payload), end, nil
}

func parseArray(b []byte, pos int) (Frame, int, error) {
	line, end, err := parseLine(b, pos)
	if err != nil {
		return nil, 0, err
	}

	count, err := scanUint(line)
	if err != nil {
		return nil, 0, err
	}

	if count > MaxArrayLen {
		return nil, 0, ErrBadArrayLen
	}

	elements := make([]Frame, 0, count)

	for i := uint64(0); i < count; i++ {
		var element Frame

		element, end, err = parseAt(b, end)
		if err != nil {
			return nil, 0, err
		}

		elements = append(elements, element)
	}

	return Array(elements), end, nil
}

package protocol

// Frame is one discrete protocol message unit. The set of variants is
// closed: Simple, Error, Integer, Bulk, Null and Array. A Frame is
// immutable once constructed and an Array owns it's child frames outright.
type Frame interface {
	frame()
}

// Simple is a short text string with no line breaks, e.g. `+OK\r\n`.
type Simple string

// Error is a text string carrying a server-side error, e.g. `-ERR oops\r\n`.
type Error string

// Integer is an unsigned 64bit value, e.g. `:1000\r\n`.
type Integer uint64

// Bulk is a length-prefixed raw byte payload, e.g. `$5\r\nhello\r\n`.
type Bulk []byte

// Null is the absence of a value, encoded as `$-1\r\n`.
type Null struct{}

// Array is an ordered sequence of frames, e.g. `*1\r\n$4\r\nPING\r\n`.
type Array []Frame

func (Simple) frame()  {}
func (Error) frame()   {}
func (Integer) frame() {}
func (Bulk) frame()    {}
func (Null) frame()    {}
func (Array) frame()   {}

var _ Frame = Simple("")
var _ Frame = Error("")
var _ Frame = Integer(0)
var _ Frame = Bulk(nil)
var _ Frame = Null{}
var _ Frame = Array(nil)

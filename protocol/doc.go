package protocol

// This package implements framing for the protocol that Farol uses to
// communicate with it's clients: it turns the raw byte stream of a TCP
// connection into discrete frames, and serialises frames back into wire
// bytes.
//
// The wire format is RESP (the Redis serialization protocol). It aims to be
//
// - easy to implement
// - efficient to parse
// - minimize memory usage
// - be human readable
//
// === General Syntax
//
// - every frame starts with a single sigil byte identifying it's variant
// - lines are `\r\n` delimited, a lone `\n` is never a terminator
// - lengths and element counts are base-10 ASCII digits
//
// === Frame variants
//
//   ```
//     +OK\r\n                    Simple string
//     -ERR no such key\r\n       Error string
//     :1000\r\n                  Integer (unsigned, 64bit)
//     $5\r\nhello\r\n            Bulk (length-prefixed raw bytes)
//     $-1\r\n                    Null
//     *2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n
//                                Array (count, then each element frame)
//   ```
//
// Simple and Error payloads can never contain `\r` or `\n`, those bytes are
// reserved for the line terminator. Bulk payloads are raw bytes of the
// declared length and can contain anything, including the terminator
// sequence. Arrays nest, each element is itself a complete frame and there
// is no closing terminator after the last element.
//
// === Requests and responses
//
// A client request is an Array of Bulk frames, the first element naming the
// command. The server replies with a single frame. Replies arrive in
// request order so there are no request IDs on the wire.
//
// For example
//   ```
//     > *2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n
//     < $3\r\nbar\r\n
//   ```
//
// Note: a single frame is atomic. You will never receive half of one frame
//       interleaved with another, the stream is strictly one frame after
//       the next.
//
// === Reading frames
//
// Framing is split into two passes. `Check` scans a byte span and reports
// whether it holds one complete well-formed frame, without allocating or
// consuming anything. `Parse` then materialises the checked span into owned
// values. The split keeps repeated scans cheap: a `Conn` re-runs `Check`
// after every partial read from the socket and only pays for allocation
// once a whole frame has arrived.

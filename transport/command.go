package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luma/farol/protocol"
	"github.com/luma/farol/storage"
)

const storeTimeout = 3 * time.Second

// dispatch executes one request frame against the store and builds the
// reply frame. The second return is true when the client asked to QUIT.
//
// Malformed requests and unknown commands are answered with an Error frame
// and the connection stays up: the byte stream is still well framed, only
// the request inside it was bad.
func (t *TCPConn) dispatch(frame protocol.Frame) (protocol.Frame, bool) {
	name, args, err := splitCommand(frame)
	if err != nil {
		return protocol.Error(fmt.Sprintf("ERR %s", err)), false
	}

	switch name {
	case "PING":
		if len(args) == 1 {
			return protocol.Bulk(args[0]), false
		}

		return protocol.Simple("PONG"), false

	case "ECHO":
		if len(args) != 1 {
			return arityError(name), false
		}

		return protocol.Bulk(args[0]), false

	case "GET":
		if len(args) != 1 {
			return arityError(name), false
		}

		return t.dispatchGet(args[0]), false

	case "SET":
		if len(args) != 2 {
			return arityError(name), false
		}

		return t.dispatchSet(args[0], args[1]), false

	case "DEL":
		if len(args) == 0 {
			return arityError(name), false
		}

		return t.dispatchDel(args), false

	case "EXISTS":
		if len(args) == 0 {
			return arityError(name), false
		}

		return t.dispatchExists(args), false

	case "KEYS":
		if len(args) != 0 {
			return arityError(name), false
		}

		return t.dispatchKeys(), false

	case "QUIT":
		return protocol.Simple("OK"), true

	default:
		return protocol.Error(fmt.Sprintf("ERR unknown command '%s'", name)), false
	}
}

func (t *TCPConn) dispatchGet(key []byte) protocol.Frame {
	ctx, cancel := context.WithTimeout(t.ctx, storeTimeout)
	defer cancel()

	value, err := t.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return protocol.Null{}
		}

		t.log.Warn("Failed to get", zap.ByteString("key", key), zap.Error(err))
		return protocol.Error("ERR internal error")
	}

	return protocol.Bulk(value)
}

func (t *TCPConn) dispatchSet(key, value []byte) protocol.Frame {
	ctx, cancel := context.WithTimeout(t.ctx, storeTimeout)
	defer cancel()

	if err := t.store.Set(ctx, key, value); err != nil {
		t.log.Warn("Failed to set", zap.ByteString("key", key), zap.Error(err))
		return protocol.Error("ERR internal error")
	}

	return protocol.Simple("OK")
}

func (t *TCPConn) dispatchDel(keys [][]byte) protocol.Frame {
	ctx, cancel := context.WithTimeout(t.ctx, storeTimeout)
	defer cancel()

	var removed uint64

	for _, key := range keys {
		ok, err := t.store.Del(ctx, key)
		if err != nil {
			t.log.Warn("Failed to del", zap.ByteString("key", key), zap.Error(err))
			return protocol.Error("ERR internal error")
		}

		if ok {
			removed++
		}
	}

	return protocol.Integer(removed)
}

func (t *TCPConn) dispatchExists(keys [][]byte) protocol.Frame {
	ctx, cancel := context.WithTimeout(t.ctx, storeTimeout)
	defer cancel()

	var found uint64

	for _, key := range keys {
		ok, err := t.store.Exists(ctx, key)
		if err != nil {
			t.log.Warn("Failed to check existence", zap.ByteString("key", key), zap.Error(err))
			return protocol.Error("ERR internal error")
		}

		if ok {
			found++
		}
	}

	return protocol.Integer(found)
}

func (t *TCPConn) dispatchKeys() protocol.Frame {
	ctx, cancel := context.WithTimeout(t.ctx, storeTimeout)
	defer cancel()

	keys, err := t.store.Keys(ctx)
	if err != nil {
		t.log.Warn("Failed to list keys", zap.Error(err))
		return protocol.Error("ERR internal error")
	}

	reply := make(protocol.Array, 0, len(keys))
	for _, key := range keys {
		reply = append(reply, protocol.Bulk(key))
	}

	return reply
}

// splitCommand pulls the command name and it's arguments out of a request
// frame. A request is always an Array of Bulk frames with the name first.
func splitCommand(frame protocol.Frame) (string, [][]byte, error) {
	request, ok := frame.(protocol.Array)
	if !ok {
		return "", nil, fmt.Errorf("expected an array of bulk strings, got %T", frame)
	}

	if len(request) == 0 {
		return "", nil, fmt.Errorf("empty command array")
	}

	args := make([][]byte, 0, len(request))

	for _, element := range request {
		bulk, ok := element.(protocol.Bulk)
		if !ok {
			return "", nil, fmt.Errorf("expected an array of bulk strings, got a %T element", element)
		}

		args = append(args, bulk)
	}

	return strings.ToUpper(string(args[0])), args[1:], nil
}

func arityError(name string) protocol.Frame {
	return protocol.Error(fmt.Sprintf(
		"ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
}

package transport

import (
	"github.com/luma/farol/storage"
	"go.uber.org/zap"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on
	Port int

	// Reuseport controls setting SO_REUSEPORT, which lets every listener
	// goroutine bind the same address and have the kernel spread accepts
	// across them.
	Reuseport bool

	// Trace will log every frame read and written. This is only useful in
	// local debugging
	Trace bool

	NumListeners int

	Store storage.Store

	Log *zap.Logger
}

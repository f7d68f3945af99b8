package config

import (
	"time"
)

type (
	HeadersNumber struct {
		Default, Maximal int
	}

	BufferSize struct {
		Default, Maximal int
	}
)

type (
	// Buffer configures the per-connection transport buffer.
	Buffer struct {
		// Size is the initial and the maximal size of the buffer. The maximal size is also
		// the ceiling for a single message head: if a head doesn't fit into it, the message
		// is rejected with status.ErrTooLarge.
		Size BufferSize
	}

	Headers struct {
		// Number is responsible for headers storage size.
		// Default value is an initial size of allocated headers storage.
		// Maximal value is maximum number of headers allowed to be presented
		Number HeadersNumber
		// Default headers are headers to be included into every outgoing message implicitly,
		// unless explicitly overridden.
		Default map[string]string `test:"nullable"`
	}

	Body struct {
		// MaxSize describes the maximal size of a body, that can be processed. 0 will discard
		// any message with body (each call to the body will result in status.ErrBodyTooLarge).
		// In order to disable the setting, use the math.MaxUint64 value.
		MaxSize uint64
		// StallLimit is how many reads in a row may report no data before the blocking
		// body reader gives up with status.ErrRequestTimeout.
		StallLimit int
	}

	NET struct {
		// ReadTimeout is how long a single read may wait for data. When it expires, the
		// read reports that no data is available right now.
		ReadTimeout time.Duration
		// WriteTimeout is the same as ReadTimeout, but for writes.
		WriteTimeout time.Duration
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod time.Duration
		// WriteBufferSize is the initial capacity of the serializer buffer. It grows on demand.
		WriteBufferSize int
	}

	Server struct {
		// KeepAlive enables serving more than one request per connection.
		KeepAlive bool
		// IdleTimeout is how long a connection may stay without a single byte received
		// before it's closed.
		IdleTimeout time.Duration
		// MaxSockets limits the number of simultaneously served connections.
		MaxSockets int
	}

	Resolver struct {
		// Workers is the number of goroutines performing lookups.
		Workers int
		// DefaultPort is used when the request target doesn't carry one.
		DefaultPort int
	}
)

// Config holds settings used across various parts of the engine, mainly restrictions,
// limitations and pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	Buffer   Buffer
	Headers  Headers
	Body     Body
	NET      NET
	Server   Server
	Resolver Resolver
}

// Default returns default config. Those are initially well-balanced, however maximal defaults
// are pretty permitting.
func Default() *Config {
	return &Config{
		Buffer: Buffer{
			Size: BufferSize{
				Default: 4 * 1024,
				// most of web-entities limit the head to 8-16kb.
				Maximal: 16 * 1024,
			},
		},
		Headers: Headers{
			Number: HeadersNumber{
				Default: 10,
				Maximal: 100,
			},
			Default: make(map[string]string),
		},
		Body: Body{
			MaxSize:    512 * 1024 * 1024, // 512 megabytes
			StallLimit: 3,
		},
		NET: NET{
			ReadTimeout:               5 * time.Second,
			WriteTimeout:              5 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
			WriteBufferSize:           4 * 1024,
		},
		Server: Server{
			KeepAlive:   true,
			IdleTimeout: 10 * time.Second,
			MaxSockets:  4096,
		},
		Resolver: Resolver{
			Workers:     4,
			DefaultPort: 80,
		},
	}
}

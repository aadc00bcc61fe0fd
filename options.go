// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sbmp

// Options configures an Endpoint. The zero value is never used directly;
// NewEndpoint starts from defaultOptions and applies each Option in order,
// the same functional-options idiom as the teacher's framer.Options.
type Options struct {
	// BufferSize is the maximum payload this endpoint is willing to
	// receive; advertised to the peer during handshake.
	BufferSize uint16

	// ListenerCapacity bounds the number of concurrent session listeners.
	ListenerCapacity int

	// PreferredChecksum is the checksum this endpoint advertises in the
	// handshake, i.e. the one it asks the peer to use for frames sent to it.
	// Outbound frames use the peer's advertised preference; until a
	// handshake supplies one, they use this value.
	PreferredChecksum ChecksumType

	// InitialSessionSeed seeds NextSession's counter, for unpredictability.
	InitialSessionSeed uint16

	// Logger receives diagnostic output for non-fatal rejections (bad
	// checksum, overlong frame, handshake conflicts, ...). Defaults to a
	// no-op logger; pass NewDefaultLogger() or NewLogger(existing) to wire
	// one in.
	Logger Logger
}

var defaultOptions = Options{
	BufferSize:        1024,
	ListenerCapacity:  8,
	PreferredChecksum: ChecksumCRC32,
	Logger:            noopLogger{},
}

// Option mutates Options during NewEndpoint construction.
type Option func(*Options)

// WithBufferSize sets the endpoint's receive capacity, advertised in the
// handshake (spec §6 configuration option "buffer_size").
func WithBufferSize(n uint16) Option {
	return func(o *Options) { o.BufferSize = n }
}

// WithListenerCapacity bounds the number of concurrent session listeners
// (spec §6 configuration option "listener_capacity").
func WithListenerCapacity(n int) Option {
	return func(o *Options) { o.ListenerCapacity = n }
}

// WithPreferredChecksum sets this endpoint's preferred checksum, the one it
// advertises for frames sent to it (spec §6 configuration option
// "pref_cksum"); see Options.PreferredChecksum. A request for CRC-32 is
// accepted as-is: this build always has CRC-32 support (hash/crc32), so
// the "downgrade to XOR" fallback in spec §4.1/§7 applies only to a
// peer's advertised preference that this build would otherwise be unable
// to honor, never to the local build's own capability.
func WithPreferredChecksum(c ChecksumType) Option {
	return func(o *Options) { o.PreferredChecksum = c }
}

// WithInitialSessionSeed seeds NextSession's counter (spec §6 configuration
// option "initial_session_seed"), masked to 15 bits: bit 15 is reserved
// for the origin bit and is never taken from the seed.
func WithInitialSessionSeed(seed uint16) Option {
	return func(o *Options) { o.InitialSessionSeed = seed & 0x7FFF }
}

// WithLogger wires a Logger into the endpoint.
func WithLogger(l Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = noopLogger{}
		}
		o.Logger = l
	}
}

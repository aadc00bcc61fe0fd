// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sbmp implements the Simple Binary Messaging Protocol: a
// point-to-point, symmetric messaging protocol carrying typed,
// session-correlated datagrams over a byte-oriented transport.
//
// Three layers compose bottom-up, mirroring the design in SPEC_FULL.md:
//   - Framing (frame.go): a byte-driven receive state machine plus its
//     symmetric transmit side. Checksums (none/XOR/CRC-32) protect the
//     frame payload.
//   - Datagram (datagram.go): a thin {session, type} header packed onto
//     the framing payload.
//   - Endpoint (this file, handshake.go, listener.go): session-number
//     allocation, a peer handshake negotiating origin bits and capability
//     parameters, and dispatch of received datagrams to per-session
//     listeners or a default handler.
//
// The engine is synchronous and single-threaded: Receive performs exactly
// one byte of work per call and never blocks. Callbacks (handshake
// transitions, listeners, the default handler) run synchronously inside
// Receive and may freely call back into the endpoint's send operations.
package sbmp

// Endpoint is the per-peer protocol actor: it owns a Framing instance, its
// receive buffer, and its listener table for the endpoint's lifetime.
type Endpoint struct {
	framing *Framing
	logger  Logger

	origin      bool
	nextSession uint16

	prefCksum      ChecksumType
	peerPrefCksum  ChecksumType
	bufferSize     uint16
	peerBufferSize uint16

	hskStatus  HandshakeStatus
	hskSession uint16

	listeners      listenerTable
	defaultHandler Listener
}

// NewEndpoint wires a transmit function and a default receive handler into
// a new Endpoint. tx must not be nil; defaultHandler may be nil to discard
// datagrams with no matching listener.
func NewEndpoint(tx TxFunc, defaultHandler Listener, opts ...Option) (*Endpoint, error) {
	if tx == nil {
		return nil, ErrInvalidArgument
	}
	cfg := defaultOptions
	for _, fn := range opts {
		fn(&cfg)
	}
	if cfg.BufferSize == 0 {
		return nil, ErrInvalidArgument
	}

	ep := &Endpoint{
		logger:         cfg.Logger,
		nextSession:    cfg.InitialSessionSeed,
		prefCksum:      cfg.PreferredChecksum,
		peerPrefCksum:  cfg.PreferredChecksum,
		bufferSize:     cfg.BufferSize,
		peerBufferSize: 0xFFFF,
		listeners:      newListenerTable(cfg.ListenerCapacity),
		defaultHandler: defaultHandler,
	}
	ep.framing = newFraming(int(cfg.BufferSize), tx, ep.onFrame, cfg.Logger)
	return ep, nil
}

// Reset discards all handshake and session state and re-initializes
// framing. Calling it twice leaves identical state to calling it once
// (spec §8 invariant 3). It does not touch the listener table or the
// configured checksum preferences, matching sbmp_ep_reset in
// original_source/library/sbmp_session.c.
func (ep *Endpoint) Reset() {
	ep.nextSession = 0
	ep.origin = false
	ep.hskSession = 0
	ep.hskStatus = HandshakeNotStarted
	ep.peerBufferSize = 0xFFFF
	ep.framing.reset()
}

// SeedSession sets the session counter directly (good to randomize before
// the first message). The top bit is masked off: bit 15 is reserved for
// the origin bit.
func (ep *Endpoint) SeedSession(seed uint16) { ep.nextSession = seed & 0x7FFF }

// SetOrigin sets the origin bit directly, bypassing the handshake.
func (ep *Endpoint) SetOrigin(bit bool) { ep.origin = bit }

// Origin reports the endpoint's current origin bit.
func (ep *Endpoint) Origin() bool { return ep.origin }

// SetPreferredChecksum sets the checksum this endpoint advertises in its
// next handshake payload. It does not change the checksum of outbound
// frames, which use the peer's preference.
func (ep *Endpoint) SetPreferredChecksum(c ChecksumType) { ep.prefCksum = c }

// PeerBufferSize returns the peer's advertised receive capacity (0xFFFF,
// i.e. unconstrained, until a successful handshake).
func (ep *Endpoint) PeerBufferSize() uint16 { return ep.peerBufferSize }

// EnableRx enables or disables the receive path.
func (ep *Endpoint) EnableRx(enable bool) { ep.framing.EnableRx(enable) }

// EnableTx enables or disables the transmit path.
func (ep *Endpoint) EnableTx(enable bool) { ep.framing.EnableTx(enable) }

// Enable enables or disables both the receive and transmit paths.
func (ep *Endpoint) Enable(enable bool) {
	ep.framing.EnableRx(enable)
	ep.framing.EnableTx(enable)
}

// NextSession allocates a new session number: the current 15-bit counter
// OR'd with the origin bit, then post-increments the counter. The counter
// wraps to zero at 0x8000 so a wrap can never corrupt the origin bit
// (spec §9).
func (ep *Endpoint) NextSession() uint16 {
	sn := ep.nextSession
	ep.nextSession++
	if ep.nextSession == 0x8000 {
		ep.nextSession = 0
	}
	var bit uint16
	if ep.origin {
		bit = originBit
	}
	return sn | bit
}

// Receive processes one inbound byte through the framing layer. It never
// blocks and never panics regardless of input (spec §8 invariant 1).
func (ep *Endpoint) Receive(b byte) { ep.framing.Receive(b) }

// onFrame is the framing-layer callback: it parses the datagram header and
// routes the result, dispatching handshake types to the handshake state
// machine and everything else to the listener table or default handler
// (spec §4.3 receive dispatch).
func (ep *Endpoint) onFrame(payload []byte) {
	dg, ok := parseDatagram(payload)
	if !ok {
		ep.logger.Warnf("sbmp: dropping short datagram (%d bytes)", len(payload))
		return
	}

	if dg.Type.isHandshake() {
		ep.handleHandshakeDatagram(dg)
		return
	}

	if ep.listeners.dispatch(dg) {
		return
	}
	if ep.defaultHandler != nil {
		ep.defaultHandler(dg)
	}
}

// AddListener registers a per-session callback. It fails with
// ErrListenerTableFull if every slot is occupied.
func (ep *Endpoint) AddListener(session uint16, cb Listener) error {
	return ep.listeners.add(session, cb)
}

// RemoveListener clears the first listener slot registered for session, if
// any.
func (ep *Endpoint) RemoveListener(session uint16) { ep.listeners.remove(session) }

// ---- Header/body send operations ------------------------------------

// StartResponse begins a datagram with an explicit (typically peer-chosen)
// session number, used for replies. It rejects with ErrTooLong if length
// exceeds the peer's declared buffer size minus the 3-byte datagram header.
func (ep *Endpoint) StartResponse(typ DatagramType, length int, session uint16) error {
	peerAccepts := int(ep.peerBufferSize) - datagramHeaderLen
	if length > peerAccepts {
		ep.logger.Errorf("sbmp: message too long (%d B), peer accepts max %d B", length, peerAccepts)
		return ErrTooLong
	}
	if err := ep.framing.BeginFrame(ep.peerPrefCksum, length+datagramHeaderLen); err != nil {
		return err
	}
	var hdr [datagramHeaderLen]byte
	encodeDatagramHeader(hdr[:], session, typ)
	_, err := ep.framing.SendBuffer(hdr[:])
	return err
}

// StartSession allocates a new session via NextSession, then behaves like
// StartResponse.
func (ep *Endpoint) StartSession(typ DatagramType, length int) (session uint16, err error) {
	sn := ep.NextSession()
	if err := ep.StartResponse(typ, length, sn); err != nil {
		return 0, err
	}
	return sn, nil
}

// SendByte sends one byte in the current message.
func (ep *Endpoint) SendByte(b byte) error { return ep.framing.SendByte(b) }

// SendBuffer sends a data buffer (or part of one) in the current message.
func (ep *Endpoint) SendBuffer(buf []byte) (int, error) { return ep.framing.SendBuffer(buf) }

// SendResponse starts a message in the given session and sends buffer in
// one call.
func (ep *Endpoint) SendResponse(typ DatagramType, buffer []byte, session uint16) (sent int, err error) {
	if err := ep.StartResponse(typ, len(buffer), session); err != nil {
		return 0, err
	}
	return ep.framing.SendBuffer(buffer)
}

// SendMessage starts a message in a new session and sends buffer in one
// call. If sessionOut is non-nil, it receives the allocated session number;
// on failure it is restored to its prior value, matching the transactional
// semantics of sbmp_ep_send_message in original_source.
func (ep *Endpoint) SendMessage(typ DatagramType, buffer []byte, sessionOut *uint16) (session uint16, sent int, err error) {
	sn := ep.NextSession()

	var old uint16
	if sessionOut != nil {
		old = *sessionOut
		*sessionOut = sn
	}

	sent, err = ep.SendResponse(typ, buffer, sn)
	if err != nil {
		if sessionOut != nil {
			*sessionOut = old
		}
		return sn, sent, err
	}
	return sn, sent, nil
}

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sbmp

import "encoding/binary"

// hskPayloadLen is the size in bytes of the handshake capability payload:
// [pref_cksum 1B][buf_size LE u16].
const hskPayloadLen = 3

// crc32Supported is always true in this build: hash/crc32 ships in the Go
// standard library unconditionally, unlike the embedded C original this
// spec was distilled from, where CRC-32 support could be compiled out to
// save flash (see SBMP_HAS_CRC32 in original_source/library/sbmp_session.c).
// The downgrade-to-XOR logic below is kept so the fallback path exists,
// even though, in this build, it is unreachable and no test exercises it.
const crc32Supported = true

// HandshakeStatus is the state of an endpoint's handshake state machine.
type HandshakeStatus uint8

const (
	HandshakeNotStarted HandshakeStatus = iota
	HandshakeAwaitReply
	HandshakeSuccess
	HandshakeConflict
)

func (s HandshakeStatus) String() string {
	switch s {
	case HandshakeNotStarted:
		return "not-started"
	case HandshakeAwaitReply:
		return "await-reply"
	case HandshakeSuccess:
		return "success"
	case HandshakeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// HandshakeStatus reports the endpoint's current handshake state.
func (ep *Endpoint) HandshakeStatus() HandshakeStatus { return ep.hskStatus }

// StartHandshake begins origin-bit arbitration with the peer: it aborts
// any prior handshake, sends HSK_START with this endpoint's capability
// payload on a freshly allocated session, and transitions to AwaitReply.
func (ep *Endpoint) StartHandshake() error {
	ep.AbortHandshake()

	var buf [hskPayloadLen]byte
	ep.populateHskBuf(buf[:])

	ep.hskStatus = HandshakeAwaitReply

	// Remember the session before sending: a synchronous transport can
	// deliver the peer's HSK_ACCEPT before SendBuffer returns.
	sn := ep.NextSession()
	ep.hskSession = sn
	if err := ep.StartResponse(DgHskStart, hskPayloadLen, sn); err != nil {
		ep.AbortHandshake()
		return err
	}
	if _, err := ep.framing.SendBuffer(buf[:]); err != nil {
		ep.AbortHandshake()
		return err
	}
	return nil
}

// AbortHandshake clears the outstanding handshake session and returns the
// state machine to NotStarted. Recovery from Conflict is by user-initiated
// retry via StartHandshake, which calls AbortHandshake first.
func (ep *Endpoint) AbortHandshake() {
	ep.hskSession = 0
	ep.hskStatus = HandshakeNotStarted
}

// populateHskBuf writes this endpoint's capability payload
// ([pref_cksum][buf_size LE u16]) into buf, which must be at least
// hskPayloadLen bytes.
func (ep *Endpoint) populateHskBuf(buf []byte) {
	buf[0] = byte(ep.prefCksum)
	binary.LittleEndian.PutUint16(buf[1:3], ep.bufferSize)
}

// parsePeerHskBuf parses the peer's capability payload. A payload shorter
// than hskPayloadLen is treated as malformed: the caller's state transition
// still completes, but peerPrefCksum/peerBufferSize are left at their safe
// defaults (resolves spec §9 Open Question "handshake payload length
// check" in favor of the strict alternative; see DESIGN.md).
func (ep *Endpoint) parsePeerHskBuf(payload []byte) {
	if len(payload) < hskPayloadLen {
		ep.logger.Warnf("sbmp: short handshake payload (%d B), peer info not parsed", len(payload))
		return
	}

	cksum := ChecksumType(payload[0])
	if cksum == ChecksumCRC32 && !crc32Supported {
		ep.logger.Warnf("sbmp: CRC-32 not available, using XOR as peer's preferred checksum")
		cksum = ChecksumXOR
	}
	ep.peerPrefCksum = cksum
	ep.peerBufferSize = binary.LittleEndian.Uint16(payload[1:3])

	ep.logger.Infof("sbmp: handshake success, peer buffer=%d pref_cksum=%d", ep.peerBufferSize, ep.peerPrefCksum)
}

// handleHandshakeDatagram processes handshake control datagrams and
// updates the handshake state machine accordingly (spec §4.3 table).
// Non-handshake datagrams never reach this function; see Endpoint.onFrame.
func (ep *Endpoint) handleHandshakeDatagram(dg Datagram) {
	var ourInfo [hskPayloadLen]byte
	ep.populateHskBuf(ourInfo[:])

	switch dg.Type {
	case DgHskStart:
		if ep.hskStatus == HandshakeAwaitReply {
			// Both peers started simultaneously: reject on the peer's
			// session, without touching our own hskSession.
			_, _ = ep.SendResponse(DgHskConflict, ourInfo[:], dg.Session)
			ep.hskStatus = HandshakeConflict
			ep.logger.Errorf("sbmp: handshake conflict (peer session %#04x)", dg.Session)
			return
		}

		// Not awaiting a reply of our own (NotStarted, or a handshake
		// already finished): accept the request. The accepting endpoint's origin
		// becomes the logical complement of the starting endpoint's
		// origin, partitioning the session space (spec §4.3 origin-bit
		// arbitration rule).
		ep.origin = !dg.Origin()
		ep.parsePeerHskBuf(dg.Payload)
		ep.hskStatus = HandshakeSuccess
		_, _ = ep.SendResponse(DgHskAccept, ourInfo[:], dg.Session)

	case DgHskAccept:
		if ep.hskStatus != HandshakeAwaitReply || ep.hskSession != dg.Session {
			ep.logger.Warnf("sbmp: unexpected HSK_ACCEPT on session %#04x, ignoring", dg.Session)
			return
		}
		ep.parsePeerHskBuf(dg.Payload)
		ep.hskStatus = HandshakeSuccess

	case DgHskConflict:
		if ep.hskStatus != HandshakeAwaitReply || ep.hskSession != dg.Session {
			ep.logger.Warnf("sbmp: unexpected HSK_CONFLICT on session %#04x, ignoring", dg.Session)
			return
		}
		ep.framing.reset()
		ep.hskStatus = HandshakeConflict
	}
}

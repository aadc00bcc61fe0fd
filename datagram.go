// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sbmp

import "encoding/binary"

// datagramHeaderLen is the size in bytes of the session+type header
// prepended to every frame payload: 2 bytes session (LE) + 1 byte type.
const datagramHeaderLen = 3

// originBit is the high bit of a session number, set by the endpoint that
// owns that half of the session-numbering space.
const originBit uint16 = 1 << 15

// DatagramType identifies the kind of a datagram. Values 0-3 are reserved
// for handshake control; user types begin at 4.
type DatagramType uint8

const (
	dgReserved      DatagramType = 0
	DgHskStart      DatagramType = 1
	DgHskAccept     DatagramType = 2
	DgHskConflict   DatagramType = 3
	DgFirstUserType DatagramType = 4

	// DgBulkData is the datagram type used by BulkSender/BulkReceiver for
	// chunked large-payload transfer (spec §4.5; see SPEC_FULL.md).
	DgBulkData DatagramType = DgFirstUserType
)

func (t DatagramType) isHandshake() bool {
	return t == DgHskStart || t == DgHskAccept || t == DgHskConflict
}

// Datagram is the logical message carried in a frame's payload. Payload
// borrows the framing layer's receive buffer and is valid only for the
// duration of the callback that receives it; copy it out to retain it.
type Datagram struct {
	Session uint16
	Type    DatagramType
	Payload []byte
}

// Origin reports the origin bit of the datagram's session number.
func (d Datagram) Origin() bool { return d.Session&originBit != 0 }

// encodeDatagramHeader writes the 3-byte session+type header into the
// first 3 bytes of buf, which must be at least datagramHeaderLen long.
func encodeDatagramHeader(buf []byte, session uint16, typ DatagramType) {
	binary.LittleEndian.PutUint16(buf[0:2], session)
	buf[2] = byte(typ)
}

// parseDatagram decodes a frame payload into a Datagram. It fails (ok=false)
// if buf is shorter than the 3-byte header (spec §3: "a datagram is valid
// iff ... frame_payload_length >= 3").
func parseDatagram(buf []byte) (dg Datagram, ok bool) {
	if len(buf) < datagramHeaderLen {
		return Datagram{}, false
	}
	return Datagram{
		Session: binary.LittleEndian.Uint16(buf[0:2]),
		Type:    DatagramType(buf[2]),
		Payload: buf[datagramHeaderLen:],
	}, true
}

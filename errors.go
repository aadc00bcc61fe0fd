// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sbmp

import (
	"errors"

	"code.hybscloud.com/iox"
)

var (
	// ErrInvalidArgument reports a nil/zero collaborator (tx function, buffer
	// size, ...) supplied to a constructor, or a payload byte sent while no
	// frame is in progress.
	ErrInvalidArgument = errors.New("sbmp: invalid argument")

	// ErrTooLong reports that a payload exceeds the peer's declared buffer
	// size (outbound) or this endpoint's configured buffer size (inbound,
	// surfaced only through logging since Receive cannot fail).
	ErrTooLong = errors.New("sbmp: message too long")

	// ErrFrameInProgress reports a begin-frame call while a previous frame's
	// payload has not yet been fully written.
	ErrFrameInProgress = errors.New("sbmp: frame already in progress")

	// ErrListenerTableFull reports that AddListener found no empty slot.
	ErrListenerTableFull = errors.New("sbmp: listener table full")

	// ErrShortDatagram reports a frame payload shorter than the 3-byte
	// datagram header.
	ErrShortDatagram = errors.New("sbmp: short datagram")

	// ErrBulkMismatch reports a bulk chunk delivered out of sequence, or a
	// first chunk missing its length header.
	ErrBulkMismatch = errors.New("sbmp: bulk transfer chunk mismatch")
)

// These are provided as package-level aliases so callers can reference the
// semantic control-flow errors without importing iox directly, mirroring
// the teacher's framer.ErrWouldBlock/ErrMore re-export.
var (
	// ErrWouldBlock means the transport cannot accept more bytes right now.
	// The engine never produces it itself: send operations (including the
	// bulk-transfer sender) return it unchanged when the TxFunc reports
	// iox.ErrWouldBlock; the per-byte framing engine has no suspension
	// points (see spec §5).
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrMore means the transport accepted the write and more of the same
	// bulk transfer remains to be sent.
	ErrMore = iox.ErrMore
)

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Wire format (bit-exact, no variation):
//
//	offset 0   : 0x01            (SOF)
//	offset 1   : <cksum_type>    (0 | 1 | 32)
//	offset 2-3 : <length LE u16> (payload length N)
//	offset 4.. : <payload>       (N bytes)
//	offset 4+N : <trailer>       (0 | 1 | 4 bytes, per cksum_type)
//
// The checksum covers the payload region only; SOF, checksum-type, and
// length are never part of the checksummed region (see DESIGN.md, Open
// Question 1).

package sbmp

import "encoding/binary"

// TxFunc transmits one outbound byte. It is the Go spelling of spec §6's
// "a function accepting one byte, synchronous, returning success/failure" —
// here the failure case is any non-nil error, including ErrWouldBlock for
// non-blocking transports used through the bulk-transfer layer.
type TxFunc func(b byte) error

type rxState uint8

const (
	rxIdle rxState = iota
	rxCksumType
	rxLenLo
	rxLenHi
	rxPayload
	rxCksum
)

// Framing is the byte-driven receive state machine plus its symmetric
// transmit side. It performs exactly one byte of work per Receive call,
// never blocks, and tolerates arbitrary interleaving: any rejection (bad
// SOF resync, unknown checksum type, overlong length, bad checksum) is
// non-fatal and returns the machine to Idle.
//
// An Endpoint owns exactly one Framing instance plus its receive buffer for
// the endpoint's lifetime (spec §3 Ownership). The callback invoked on a
// completed frame borrows the receive buffer; the borrow is valid only for
// the duration of the callback (spec §9 receive-buffer aliasing).
type Framing struct {
	buf     []byte
	onFrame func(payload []byte)
	logger  Logger

	rxEnabled bool
	state     rxState
	rxCksum   ChecksumType
	rxLen     int
	rxIdx     int
	rxAcc     checksumAccumulator
	rxTrailer [4]byte
	rxTrIdx   int

	tx          TxFunc
	txEnabled   bool
	txInFlight  bool
	txCksum     ChecksumType
	txAcc       checksumAccumulator
	txRemaining int
}

// newFraming constructs a Framing instance with an owned receive buffer of
// the given capacity. tx may be nil if the Framing is only ever used to
// receive (e.g. in unit tests); onFrame may be nil to discard frames.
func newFraming(bufferSize int, tx TxFunc, onFrame func(payload []byte), logger Logger) *Framing {
	return &Framing{
		buf:       make([]byte, bufferSize),
		onFrame:   onFrame,
		logger:    logger,
		rxEnabled: true,
		txEnabled: true,
		tx:        tx,
	}
}

// reset discards all in-progress receive and transmit state. Idempotent:
// calling it twice leaves the same state as calling it once (spec §8
// invariant 3).
func (f *Framing) reset() {
	f.state = rxIdle
	f.rxLen = 0
	f.rxIdx = 0
	f.rxTrIdx = 0
	f.txInFlight = false
	f.txRemaining = 0
}

// EnableRx enables or disables the receive path. While disabled, Receive
// short-circuits back to Idle without processing.
func (f *Framing) EnableRx(enable bool) { f.rxEnabled = enable }

// EnableTx enables or disables the transmit path. While disabled, outbound
// operations are no-ops that report zero bytes sent.
func (f *Framing) EnableTx(enable bool) { f.txEnabled = enable }

// Receive processes one inbound byte. It never blocks and never panics,
// regardless of input (spec §8 invariant 1).
func (f *Framing) Receive(b byte) {
	if !f.rxEnabled {
		f.state = rxIdle
		return
	}

	switch f.state {
	case rxIdle:
		if b == 0x01 {
			f.state = rxCksumType
		}
		// Any other byte is discarded silently; stay in Idle.

	case rxCksumType:
		c := ChecksumType(b)
		if !c.valid() {
			f.state = rxIdle
			return
		}
		f.rxCksum = c
		f.rxAcc = newChecksumAccumulator(c)
		f.state = rxLenLo

	case rxLenLo:
		f.rxLen = int(b)
		f.state = rxLenHi

	case rxLenHi:
		f.rxLen |= int(b) << 8
		if f.rxLen > len(f.buf) {
			f.logf("frame rejected: payload length %d exceeds buffer size %d", f.rxLen, len(f.buf))
			f.state = rxIdle
			return
		}
		f.rxIdx = 0
		f.rxTrIdx = 0
		if f.rxLen == 0 {
			f.advanceAfterPayload()
			return
		}
		f.state = rxPayload

	case rxPayload:
		f.buf[f.rxIdx] = b
		f.rxAcc.update(b)
		f.rxIdx++
		if f.rxIdx == f.rxLen {
			f.advanceAfterPayload()
		}

	case rxCksum:
		f.rxTrailer[f.rxTrIdx] = b
		f.rxTrIdx++
		if f.rxTrIdx == f.rxCksum.trailerLen() {
			f.finishFrame()
		}
	}
}

// advanceAfterPayload transitions out of the Payload state once the
// declared payload length has been consumed (including length 0).
func (f *Framing) advanceAfterPayload() {
	if f.rxCksum.trailerLen() == 0 {
		f.finishFrame()
		return
	}
	f.rxTrIdx = 0
	f.state = rxCksum
}

// finishFrame validates the accumulated trailer (if any) and, on a match,
// invokes the upper-layer callback before resetting to Idle.
func (f *Framing) finishFrame() {
	want := f.rxAcc.trailer()
	got := f.rxTrailer[:f.rxTrIdx]
	if !bytesEqual(want, got) {
		f.logf("frame rejected: checksum mismatch")
		f.state = rxIdle
		return
	}
	f.state = rxIdle
	if f.onFrame != nil {
		f.onFrame(f.buf[:f.rxLen])
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (f *Framing) logf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Debugf(format, args...)
	}
}

// BeginFrame emits the SOF/type/length preamble and arms the transmitter
// for payloadLen payload bytes. It fails with ErrFrameInProgress if a prior
// frame's payload has not yet been fully written.
func (f *Framing) BeginFrame(cksum ChecksumType, payloadLen int) error {
	if f.txInFlight {
		return ErrFrameInProgress
	}
	if !f.txEnabled {
		return nil
	}
	var hdr [4]byte
	hdr[0] = 0x01
	hdr[1] = byte(cksum)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(payloadLen))
	for _, b := range hdr {
		if err := f.tx(b); err != nil {
			return err
		}
	}
	f.txInFlight = true
	f.txCksum = cksum
	f.txAcc = newChecksumAccumulator(cksum)
	f.txRemaining = payloadLen
	if payloadLen == 0 {
		return f.finishTx()
	}
	return nil
}

// SendByte writes one payload byte of the frame started by BeginFrame. On
// the final payload byte it automatically emits the checksum trailer and
// returns the transmitter to idle.
func (f *Framing) SendByte(b byte) error {
	if !f.txEnabled {
		return nil
	}
	if !f.txInFlight {
		return ErrInvalidArgument
	}
	if err := f.tx(b); err != nil {
		return err
	}
	f.txAcc.update(b)
	f.txRemaining--
	if f.txRemaining == 0 {
		return f.finishTx()
	}
	return nil
}

// SendBuffer writes a full or partial payload buffer, returning the number
// of bytes actually forwarded through tx before any error.
func (f *Framing) SendBuffer(p []byte) (int, error) {
	if !f.txEnabled {
		return 0, nil
	}
	for i, b := range p {
		if err := f.SendByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (f *Framing) finishTx() error {
	for _, b := range f.txAcc.trailer() {
		if err := f.tx(b); err != nil {
			return err
		}
	}
	f.txInFlight = false
	return nil
}

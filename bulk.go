// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Bulk transfer (spec §4.5): a sender splits a payload larger than one
// datagram into chunks that all share a single session number; the
// receiver reassembles them via a per-session Listener. No out-of-order
// delivery and no per-chunk acknowledgement are assumed or provided.
//
// Wire shape, grounded on the teacher's Reader/Writer/WriteTo/ReadFrom
// split (framer.go) adapted to SBMP's synchronous per-byte engine: chunk 0
// carries a 4-byte little-endian total-length header followed by as much
// payload as fits; chunks after it carry raw payload segments, in order,
// until the declared total has arrived.
package sbmp

import (
	"encoding/binary"
	"io"
)

// bulkHeaderLen is the size of the total-length header carried in chunk 0.
const bulkHeaderLen = 4

// BulkSender chunks and sends a payload larger than one datagram, all
// chunks sharing a single session number. Constructing it over a TxFunc
// that can report iox.ErrWouldBlock mid-payload is supported only at
// chunk boundaries: Send does not attempt to resume a partially
// transmitted frame, matching the per-byte engine's synchronous, no-
// suspension-point contract (spec §5). Callers whose TxFunc never
// reports ErrWouldBlock (the common case for a genuinely blocking
// transport) are unaffected.
type BulkSender struct {
	ep     *Endpoint
	dgType DatagramType
}

// NewBulkSender constructs a BulkSender that sends dgType datagrams
// through ep.
func NewBulkSender(ep *Endpoint, dgType DatagramType) *BulkSender {
	return &BulkSender{ep: ep, dgType: dgType}
}

// Send chunks payload to size peer_buffer_size - overhead and sends each
// chunk as a separate datagram on session, per spec §4.5. It returns the
// number of payload bytes successfully enqueued before any error.
func (s *BulkSender) Send(session uint16, payload []byte) (int, error) {
	maxChunk := int(s.ep.peerBufferSize) - datagramHeaderLen
	if maxChunk <= bulkHeaderLen {
		return 0, ErrTooLong
	}

	firstCap := maxChunk - bulkHeaderLen
	n := firstCap
	if n > len(payload) {
		n = len(payload)
	}

	first := make([]byte, bulkHeaderLen+n)
	binary.LittleEndian.PutUint32(first[0:bulkHeaderLen], uint32(len(payload)))
	copy(first[bulkHeaderLen:], payload[:n])

	if _, err := s.ep.SendResponse(s.dgType, first, session); err != nil {
		return 0, err
	}
	sent := n

	rem := payload[n:]
	for len(rem) > 0 {
		chunk := maxChunk
		if chunk > len(rem) {
			chunk = len(rem)
		}
		if _, err := s.ep.SendResponse(s.dgType, rem[:chunk], session); err != nil {
			return sent, err
		}
		sent += chunk
		rem = rem[chunk:]
	}

	return sent, nil
}

// BulkReceiver reassembles a bulk transfer. It is meant to be wired as a
// per-session Listener (via Endpoint.AddListener): each call to Handle
// copies the datagram's payload out of the endpoint's receive buffer
// before returning, honoring the receive-buffer aliasing rule (spec §5/§9).
type BulkReceiver struct {
	buf   []byte
	total int
	known bool
	done  bool
}

// NewBulkReceiver constructs a BulkReceiver. totalHint, if known in
// advance, preallocates the reassembly buffer; it need not be exact.
func NewBulkReceiver(totalHint int) *BulkReceiver {
	if totalHint < 0 {
		totalHint = 0
	}
	return &BulkReceiver{buf: make([]byte, 0, totalHint)}
}

// Handle processes one chunk. It reports done=true once the declared
// total has been received. Calling Handle again after done is an error.
func (r *BulkReceiver) Handle(dg Datagram) (done bool, err error) {
	if r.done {
		return true, ErrBulkMismatch
	}

	if !r.known {
		if len(dg.Payload) < bulkHeaderLen {
			return false, ErrBulkMismatch
		}
		r.total = int(binary.LittleEndian.Uint32(dg.Payload[0:bulkHeaderLen]))
		r.known = true
		r.buf = append(r.buf, dg.Payload[bulkHeaderLen:]...)
	} else {
		r.buf = append(r.buf, dg.Payload...)
	}

	if len(r.buf) >= r.total {
		r.done = true
	}
	return r.done, nil
}

// Bytes returns the reassembled payload. It is only meaningful once Handle
// has reported done=true.
func (r *BulkReceiver) Bytes() []byte { return r.buf }

// Done reports whether the declared total has been fully received.
func (r *BulkReceiver) Done() bool { return r.done }

// BulkWriter adapts a BulkSender to io.Writer for a fixed session, the same
// thin-delegation shape as the teacher's framer.Writer wrapping *framer
// (framer.go: "func (w *Writer) Write(p []byte) (int, error) { return
// w.fr.write(p) }"). One Write call transfers the whole of p as one bulk
// transfer, chunked as Send describes.
type BulkWriter struct {
	s       *BulkSender
	session uint16
}

// Writer returns a BulkWriter bound to session.
func (s *BulkSender) Writer(session uint16) *BulkWriter {
	return &BulkWriter{s: s, session: session}
}

func (w *BulkWriter) Write(p []byte) (int, error) { return w.s.Send(w.session, p) }

// BulkReader adapts a completed BulkReceiver to io.Reader, mirroring the
// teacher's framer.Reader delegation shape. Reading before the transfer is
// Done returns ErrBulkMismatch: unlike the teacher's Reader, which pulls
// from a live, possibly-blocking transport, a BulkReceiver has nothing to
// wait on (spec §5: the engine never blocks) so there is no partial-data
// read to perform.
type BulkReader struct {
	r   *BulkReceiver
	off int
}

// Reader returns a BulkReader over r's reassembled payload.
func (r *BulkReceiver) Reader() *BulkReader { return &BulkReader{r: r} }

func (br *BulkReader) Read(p []byte) (int, error) {
	if !br.r.done {
		return 0, ErrBulkMismatch
	}
	if br.off >= len(br.r.buf) {
		return 0, io.EOF
	}
	n := copy(p, br.r.buf[br.off:])
	br.off += n
	return n, nil
}

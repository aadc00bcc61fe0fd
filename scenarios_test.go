// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sbmp

import (
	"bytes"
	"testing"
)

// --- Universal invariants --------------------------------------------

func TestInvariant_ReceiveNeverPanicsOnArbitraryBytes(t *testing.T) {
	rx := newFraming(16, nil, func([]byte) {}, nil)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Receive panicked: %v", r)
		}
	}()
	for i := 0; i < 4096; i++ {
		rx.Receive(byte(i))
		rx.Receive(byte(i >> 8))
	}
}

func TestInvariant_RoundTripPreservesDatagram(t *testing.T) {
	var wire []byte
	tx, err := NewEndpoint(func(b byte) error { wire = append(wire, b); return nil }, nil,
		WithPreferredChecksum(ChecksumCRC32), WithBufferSize(64))
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	payload := []byte("round trip payload")
	if len(payload) > int(tx.bufferSize)-datagramHeaderLen {
		t.Fatalf("test payload too large for buffer")
	}

	const session = uint16(0x2222)
	const typ = DatagramType(50)
	if _, err := tx.SendResponse(typ, payload, session); err != nil {
		t.Fatalf("SendResponse: %v", err)
	}

	var got Datagram
	rx, err := NewEndpoint(func(byte) error { return nil }, func(dg Datagram) {
		got = Datagram{Session: dg.Session, Type: dg.Type, Payload: append([]byte(nil), dg.Payload...)}
	}, WithBufferSize(64))
	if err != nil {
		t.Fatalf("NewEndpoint rx: %v", err)
	}
	for _, b := range wire {
		rx.Receive(b)
	}

	if got.Session != session || got.Type != typ || !bytes.Equal(got.Payload, payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestInvariant_ResetTwiceEqualsResetOnce(t *testing.T) {
	ep, err := NewEndpoint(func(byte) error { return nil }, nil)
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	ep.SetOrigin(true)
	ep.hskStatus = HandshakeSuccess
	ep.hskSession = 5

	ep.Reset()
	once := *ep
	ep.Reset()
	twice := *ep

	if once.origin != twice.origin || once.hskStatus != twice.hskStatus || once.hskSession != twice.hskSession ||
		once.peerBufferSize != twice.peerBufferSize || once.nextSession != twice.nextSession {
		t.Fatalf("reset is not idempotent: once=%+v twice=%+v", once, twice)
	}
}

func TestInvariant_ResyncDeliversFrameExactlyOnce(t *testing.T) {
	var deliveries int
	var got []byte
	rx := newFraming(64, nil, func(p []byte) {
		deliveries++
		got = append([]byte(nil), p...)
	}, nil)

	frame := []byte{0x01, 0x00, 0x02, 0x00, 'h', 'i'} // no-checksum frame
	garbage := []byte{0xFF, 0x01, 0x02, 0x03}          // a bogus SOF that fails on its checksum-type tag
	feed(rx, append(append([]byte{}, garbage...), frame...))

	if deliveries != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", deliveries)
	}
	if string(got) != "hi" {
		t.Fatalf("delivered payload = %q, want %q", got, "hi")
	}
}

func TestInvariant_SessionSpacesAreDisjointAfterHandshake(t *testing.T) {
	ep1, ep2 := newLinkedEndpoints(t, nil, nil, nil, nil)
	if err := ep1.StartHandshake(); err != nil {
		t.Fatalf("StartHandshake: %v", err)
	}

	for i := 0; i < 16; i++ {
		s1 := ep1.NextSession()
		s2 := ep2.NextSession()
		if (s1&originBit != 0) == (s2&originBit != 0) {
			t.Fatalf("iteration %d: origin bits not disjoint (s1=%#04x s2=%#04x)", i, s1, s2)
		}
	}
}

func TestInvariant_RegisteredListenerExcludesDefaultHandler(t *testing.T) {
	var listenerCount, defaultCount int
	ep, err := NewEndpoint(func(byte) error { return nil }, func(Datagram) { defaultCount++ })
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	if err := ep.AddListener(0x1234, func(Datagram) { listenerCount++ }); err != nil {
		t.Fatalf("AddListener: %v", err)
	}

	ep.onFrame(concatDatagram(0x1234, 7, nil))
	ep.onFrame(concatDatagram(0x5678, 7, nil))

	if listenerCount != 1 || defaultCount != 1 {
		t.Fatalf("listenerCount=%d defaultCount=%d, want 1 and 1", listenerCount, defaultCount)
	}
}

func concatDatagram(session uint16, typ DatagramType, payload []byte) []byte {
	hdr := make([]byte, datagramHeaderLen+len(payload))
	encodeDatagramHeader(hdr[:datagramHeaderLen], session, typ)
	copy(hdr[datagramHeaderLen:], payload)
	return hdr
}

// --- Concrete worked scenarios -----------------------------------------

func TestScenario_MinimalRoundTripWithXORChecksum(t *testing.T) {
	var wire []byte
	sink := func(b byte) error { wire = append(wire, b); return nil }
	f := newFraming(64, sink, nil, nil)

	if err := f.BeginFrame(ChecksumXOR, 5); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	var hdr [datagramHeaderLen]byte
	encodeDatagramHeader(hdr[:], 0x0005, DatagramType(10))
	if _, err := f.SendBuffer(hdr[:]); err != nil {
		t.Fatalf("SendBuffer header: %v", err)
	}
	if _, err := f.SendBuffer([]byte("Hi")); err != nil {
		t.Fatalf("SendBuffer payload: %v", err)
	}

	// The worked trailer byte in the distillation this protocol was drawn
	// from (0x24) does not match 0x05^0x00^0x0A^0x48^0x69; recomputing the
	// running XOR over those five bytes gives 0x2E (see DESIGN.md). The
	// wire bytes below use the recomputed value.
	want := []byte{0x01, 0x01, 0x05, 0x00, 0x05, 0x00, 0x0A, 0x48, 0x69, 0x2E}
	if !bytes.Equal(wire, want) {
		t.Fatalf("wire = %x, want %x", wire, want)
	}

	var got Datagram
	rx := newFraming(64, nil, func(p []byte) {
		dg, ok := parseDatagram(p)
		if !ok {
			t.Fatalf("parseDatagram failed on delivered payload")
		}
		got = Datagram{Session: dg.Session, Type: dg.Type, Payload: append([]byte(nil), dg.Payload...)}
	}, nil)
	feed(rx, wire)

	if got.Session != 0x0005 || got.Type != DatagramType(10) || !bytes.Equal(got.Payload, []byte{0x48, 0x69}) {
		t.Fatalf("delivered datagram = %+v, want session=5 type=10 payload=Hi", got)
	}
}

func TestScenario_FlippedChecksumByteIsRejected(t *testing.T) {
	wire := []byte{0x01, 0x01, 0x05, 0x00, 0x05, 0x00, 0x0A, 0x48, 0x69, 0x25}

	var delivered bool
	rx := newFraming(64, nil, func([]byte) { delivered = true }, nil)
	feed(rx, wire)

	if delivered {
		t.Fatalf("callback invoked despite a flipped checksum byte")
	}
}

func TestScenario_GarbagePrefixDoesNotSuppressDelivery(t *testing.T) {
	goodFrame := []byte{0x01, 0x01, 0x05, 0x00, 0x05, 0x00, 0x0A, 0x48, 0x69, 0x2E}
	wire := append([]byte{0xFF, 0x01, 0x02, 0x03}, goodFrame...)

	var delivered int
	var got []byte
	rx := newFraming(64, nil, func(p []byte) {
		delivered++
		got = append([]byte(nil), p...)
	}, nil)
	feed(rx, wire)

	if delivered != 1 {
		t.Fatalf("delivered %d frames, want exactly 1", delivered)
	}
	dg, ok := parseDatagram(got)
	if !ok || dg.Session != 0x0005 || dg.Type != DatagramType(10) || !bytes.Equal(dg.Payload, []byte{0x48, 0x69}) {
		t.Fatalf("delivered datagram = %+v (ok=%v), want session=5 type=10 payload=Hi", dg, ok)
	}
}

func TestScenario_HandshakeSuccessSettlesCapabilitiesAndOrigin(t *testing.T) {
	ep1, ep2 := newLinkedEndpoints(t, nil, nil,
		[]Option{WithPreferredChecksum(ChecksumCRC32), WithBufferSize(256)},
		[]Option{WithPreferredChecksum(ChecksumCRC32), WithBufferSize(256)},
	)

	if err := ep1.StartHandshake(); err != nil {
		t.Fatalf("StartHandshake: %v", err)
	}

	if ep1.Origin() != false || ep2.Origin() != true {
		t.Fatalf("origin bits after handshake: ep1=%v ep2=%v, want false/true", ep1.Origin(), ep2.Origin())
	}
	if ep1.HandshakeStatus() != HandshakeSuccess || ep2.HandshakeStatus() != HandshakeSuccess {
		t.Fatalf("status after handshake: ep1=%v ep2=%v", ep1.HandshakeStatus(), ep2.HandshakeStatus())
	}
	if ep1.PeerBufferSize() != 256 || ep2.PeerBufferSize() != 256 {
		t.Fatalf("peer buffer sizes: ep1=%d ep2=%d, want 256/256", ep1.PeerBufferSize(), ep2.PeerBufferSize())
	}
	if ep1.peerPrefCksum != ChecksumCRC32 || ep2.peerPrefCksum != ChecksumCRC32 {
		t.Fatalf("peer checksum prefs: ep1=%d ep2=%d, want CRC32/CRC32", ep1.peerPrefCksum, ep2.peerPrefCksum)
	}
}

func TestScenario_SimultaneousHandshakeStartsConflict(t *testing.T) {
	// Independent endpoints with discarding transports: this isolates the
	// conflict transition itself from the reentrant delivery a wired pair
	// would trigger when each endpoint replies to the other mid-call.
	discard := func(byte) error { return nil }
	ep1, err := NewEndpoint(discard, nil)
	if err != nil {
		t.Fatalf("NewEndpoint ep1: %v", err)
	}
	ep2, err := NewEndpoint(discard, nil)
	if err != nil {
		t.Fatalf("NewEndpoint ep2: %v", err)
	}

	// Drive both endpoints to AwaitReply before either side's HSK_START
	// is actually exchanged, reproducing a true race.
	ep1.hskStatus, ep2.hskStatus = HandshakeAwaitReply, HandshakeAwaitReply
	ep1.hskSession, ep2.hskSession = 0x0000, 0x0000

	var buf1, buf2 [hskPayloadLen]byte
	ep1.populateHskBuf(buf1[:])
	ep2.populateHskBuf(buf2[:])

	ep1.handleHandshakeDatagram(Datagram{Session: 0x0000, Type: DgHskStart, Payload: buf2[:]})
	ep2.handleHandshakeDatagram(Datagram{Session: 0x0000, Type: DgHskStart, Payload: buf1[:]})

	if ep1.HandshakeStatus() != HandshakeConflict || ep2.HandshakeStatus() != HandshakeConflict {
		t.Fatalf("status: ep1=%v ep2=%v, want Conflict/Conflict", ep1.HandshakeStatus(), ep2.HandshakeStatus())
	}
}

func TestScenario_ListenerDispatchBySession(t *testing.T) {
	var viaListener, viaDefault []Datagram
	ep, err := NewEndpoint(func(byte) error { return nil }, func(dg Datagram) {
		viaDefault = append(viaDefault, dg)
	})
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	if err := ep.AddListener(0x1234, func(dg Datagram) { viaListener = append(viaListener, dg) }); err != nil {
		t.Fatalf("AddListener: %v", err)
	}

	ep.onFrame(concatDatagram(0x1234, 7, nil))
	ep.onFrame(concatDatagram(0x5678, 7, nil))

	if len(viaListener) != 1 || viaListener[0].Session != 0x1234 {
		t.Fatalf("listener deliveries = %+v, want exactly one for session 0x1234", viaListener)
	}
	if len(viaDefault) != 1 || viaDefault[0].Session != 0x5678 {
		t.Fatalf("default handler deliveries = %+v, want exactly one for session 0x5678", viaDefault)
	}
}

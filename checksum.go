// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sbmp

import (
	"encoding/binary"
	"hash/crc32"
)

// ChecksumType selects the per-frame integrity check, mirroring the
// teacher's Protocol enum idiom (options.go).
type ChecksumType uint8

const (
	ChecksumNone  ChecksumType = 0
	ChecksumXOR   ChecksumType = 1
	ChecksumCRC32 ChecksumType = 32
)

func (c ChecksumType) valid() bool {
	switch c {
	case ChecksumNone, ChecksumXOR, ChecksumCRC32:
		return true
	default:
		return false
	}
}

// trailerLen returns the trailer width in bytes for c. Unrecognized values
// are never passed here; callers validate with valid() first.
func (c ChecksumType) trailerLen() int {
	switch c {
	case ChecksumNone:
		return 0
	case ChecksumXOR:
		return 1
	case ChecksumCRC32:
		return 4
	default:
		return 0
	}
}

// checksumAccumulator accumulates a running checksum one byte at a time.
// The CRC-32 profile is ISO/HDLC: polynomial 0xEDB88320 (reflected), initial
// value 0xFFFFFFFF, final XOR 0xFFFFFFFF — exactly crc32.IEEE. Go's
// crc32.Update already folds the init/final XOR into each call so that
// chaining per-byte calls with acc starting at zero reproduces
// crc32.ChecksumIEEE over the whole region; see DESIGN.md.
type checksumAccumulator struct {
	typ ChecksumType
	xor byte
	crc uint32
}

func newChecksumAccumulator(typ ChecksumType) checksumAccumulator {
	return checksumAccumulator{typ: typ}
}

func (a *checksumAccumulator) update(b byte) {
	switch a.typ {
	case ChecksumXOR:
		a.xor ^= b
	case ChecksumCRC32:
		a.crc = crc32.Update(a.crc, crc32.IEEETable, []byte{b})
	}
}

// trailer returns the wire-order trailer bytes computed so far.
func (a *checksumAccumulator) trailer() []byte {
	switch a.typ {
	case ChecksumXOR:
		return []byte{a.xor}
	case ChecksumCRC32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], a.crc)
		return b[:]
	default:
		return nil
	}
}

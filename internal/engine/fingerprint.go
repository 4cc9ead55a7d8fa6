package engine

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies the serialized content of one binary plist object.
// Two objects with equal fingerprints are interchangeable in the object table.
type Fingerprint [32]byte

// objectDomainKey is the BLAKE3 key for object fingerprints: the ASCII
// domain name zero-padded to 32 bytes.
var objectDomainKey = [32]byte{
	'g', 'o', 'p', 'l', 'i', 's', 't', '.', 'b', 'p', 'l', 'i', 's', 't', '.',
	'o', 'b', 'j', 'e', 'c', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// FingerprintBuilder accumulates the identity of an object: its kind tag,
// its payload bytes, and for containers the indices of its children.
type FingerprintBuilder struct {
	h   *blake3.Hasher
	buf [8]byte
}

// NewFingerprint starts a fingerprint for an object of the given kind tag.
func NewFingerprint(tag byte) *FingerprintBuilder {
	h, err := blake3.NewKeyed(objectDomainKey[:])
	if err != nil {
		// Only returned for a key of the wrong length.
		panic("engine: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	f := &FingerprintBuilder{h: h}
	_, _ = f.h.Write([]byte{tag})
	return f
}

// Bytes mixes a length-prefixed payload into the fingerprint.
func (f *FingerprintBuilder) Bytes(b []byte) *FingerprintBuilder {
	f.Uint(uint64(len(b)))
	_, _ = f.h.Write(b)
	return f
}

// Uint mixes an integer (a payload word or a child index) into the fingerprint.
func (f *FingerprintBuilder) Uint(v uint64) *FingerprintBuilder {
	binary.BigEndian.PutUint64(f.buf[:], v)
	_, _ = f.h.Write(f.buf[:])
	return f
}

// Sum finalizes the fingerprint.
func (f *FingerprintBuilder) Sum() Fingerprint {
	var out Fingerprint
	copy(out[:], f.h.Sum(nil))
	return out
}

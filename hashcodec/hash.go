// Package hashcodec defines the fixed-width digest and byte-codec
// primitives every other package in skipledger-sub005 builds on.
//
// The hash function is fixed for the lifetime of a ledger (§1 non-goals:
// no cryptographic agility). Everything here is a thin, allocation-light
// wrapper over crypto/sha256, plus the two byte encodings (base64-of-32,
// tiered length-prefixes) the wire formats in morsel and journal need.
package hashcodec

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

// Size is the fixed digest width in bytes.
const Size = sha256.Size

// Hash is an opaque 32-byte digest. The zero value is the sentinel: the
// row-zero predecessor hash used at the head of every skip-ledger.
type Hash [Size]byte

// Sentinel is the distinguished all-zero hash standing in for row 0.
var Sentinel Hash

// IsSentinel reports whether h is the all-zero predecessor hash.
func (h Hash) IsSentinel() bool {
	return h == Sentinel
}

// Bytes returns h as a freshly allocated slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

// Sum computes the fixed digest over the concatenation of parts, in
// order, without an intermediate allocation of the concatenated buffer.
func Sum(parts ...[]byte) Hash {
	d := sha256.New()
	for _, p := range parts {
		d.Write(p)
	}
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// NewFromBytes copies exactly Size bytes from b into a Hash. It errors if
// b is not exactly Size bytes; callers that know the slice is well-formed
// (e.g. terminal hashes already validated on load) may use FromBytesUnsafe.
func NewFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, errors.Errorf("hashcodec: expected %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// FromBytesUnsafe copies min(len(b), Size) bytes into a Hash, zero-padding
// any remainder. Use only when the caller has already validated length.
func FromBytesUnsafe(b []byte) Hash {
	var h Hash
	n := len(b)
	if n > Size {
		n = Size
	}
	copy(h[:n], b[:n])
	return h
}

// b64 is the URL-safe, unpadded 43-character base64 alphabet used to
// render a 32-byte hash as text.
var b64 = base64.RawURLEncoding

// Base64 encodes h as the URL-safe, 43-character, unpadded base64 text
// form used in reports and log lines.
func (h Hash) Base64() string {
	return b64.EncodeToString(h[:])
}

// String implements fmt.Stringer via the base64-of-32 encoding.
func (h Hash) String() string {
	return h.Base64()
}

// ParseBase64 parses the 43-character URL-safe base64 text form produced
// by Hash.Base64 back into a Hash.
func ParseBase64(s string) (Hash, error) {
	var h Hash
	b, err := b64.DecodeString(s)
	if err != nil {
		return h, errors.Wrap(err, "hashcodec: invalid base64-of-32 hash text")
	}
	if len(b) != Size {
		return h, errors.Errorf("hashcodec: decoded hash is %d bytes, want %d", len(b), Size)
	}
	copy(h[:], b)
	return h, nil
}

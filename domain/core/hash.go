package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Fingerprinter accumulates typed values into a content hash. Every value is
// length- or width-prefixed so that adjacent fields cannot collide.
type Fingerprinter struct {
	buf []byte
}

// NewFingerprinter starts a fingerprint under a namespace tag
func NewFingerprinter(namespace string) *Fingerprinter {
	f := &Fingerprinter{}
	return f.String(namespace)
}

// String appends a string
func (f *Fingerprinter) String(s string) *Fingerprinter {
	f.buf = binary.BigEndian.AppendUint64(f.buf, uint64(len(s)))
	f.buf = append(f.buf, s...)
	return f
}

// Int appends an integer
func (f *Fingerprinter) Int(v int64) *Fingerprinter {
	f.buf = binary.BigEndian.AppendUint64(f.buf, uint64(v))
	return f
}

// Bool appends a boolean
func (f *Fingerprinter) Bool(v bool) *Fingerprinter {
	if v {
		f.buf = append(f.buf, 1)
	} else {
		f.buf = append(f.buf, 0)
	}
	return f
}

// Float appends a float by its IEEE-754 bits, so NaN payloads hash consistently
func (f *Fingerprinter) Float(v float64) *Fingerprinter {
	f.buf = binary.BigEndian.AppendUint64(f.buf, math.Float64bits(v))
	return f
}

// Floats appends a length-prefixed float slice
func (f *Fingerprinter) Floats(vs []float64) *Fingerprinter {
	f.Int(int64(len(vs)))
	for _, v := range vs {
		f.Float(v)
	}
	return f
}

// Sum returns the accumulated hash
func (f *Fingerprinter) Sum() Hash {
	return NewHash(f.buf)
}

package deniable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"math/bits"
)

// Chain is a hash chain positioned at some depth for one password and salt.
//
// Depth 0 holds H(password‖salt); each Advance replaces the digest d with
// H(d‖password‖salt). A Chain has exactly one owner and is not safe for
// concurrent use. It only moves forward.
type Chain struct {
	h        hash.Hash
	passSalt []byte
	cur      []byte
	next     []byte
	depth    int
}

// NewChain returns a chain at depth 0
func NewChain(p HashPrimitive, password, salt []byte) *Chain {
	passSalt := make([]byte, 0, len(password)+len(salt))
	passSalt = append(passSalt, password...)
	passSalt = append(passSalt, salt...)

	h := p.New()
	h.Write(passSalt)

	return &Chain{
		h:        h,
		passSalt: passSalt,
		cur:      h.Sum(make([]byte, 0, p.Size())),
		next:     make([]byte, 0, p.Size()),
	}
}

// Depth returns the number of advances applied since depth 0
func (c *Chain) Depth() int {
	return c.depth
}

// Advance moves the chain one step deeper
func (c *Chain) Advance() {
	c.h.Reset()
	c.h.Write(c.cur)
	c.h.Write(c.passSalt)
	c.next = c.h.Sum(c.next[:0])
	c.cur, c.next = c.next, c.cur
	c.depth++
}

// AdvanceTo moves the chain forward until it reaches depth n
func (c *Chain) AdvanceTo(n int) {
	if n < c.depth {
		panic(fmt.Sprintf("deniable: chain at depth %d cannot rewind to %d", c.depth, n))
	}
	for c.depth < n {
		c.Advance()
	}
}

// Sum returns a copy of the digest at the current depth
func (c *Chain) Sum() []byte {
	return bytes.Clone(c.cur)
}

// Block returns the block selected by the current digest: the digest read
// as a big-endian integer, reduced modulo modulus.
func (c *Chain) Block(modulus uint64) uint64 {
	return reduce(c.cur, modulus)
}

// Details derives the block and key at the current depth. The chain
// position is left untouched.
//
// The key sub-chain is re-seeded with the low byte of the block so that
// the offset and key streams are separated.
func (c *Chain) Details(modulus uint64, keySize int) PartitionDetails {
	block := c.Block(modulus)

	h := c.h
	h.Reset()
	h.Write(c.cur)
	h.Write([]byte{byte(block)})
	h.Write(c.passSalt)
	d := h.Sum(nil)

	key := make([]byte, 0, keySize+len(d))
	for len(key) < keySize {
		key = append(key, d...)
		h.Reset()
		h.Write(d)
		h.Write(c.passSalt)
		d = h.Sum(d[:0])
	}

	return PartitionDetails{
		Block: block,
		Key:   key[:keySize],
	}
}

// Derive maps a password to its volume details. It is a pure function of
// its arguments. modulus must be positive and keySize non-negative; use
// DerivationParameters.Derive for validated input.
func Derive(p HashPrimitive, password, salt []byte, iterations, keySize int, modulus uint64) PartitionDetails {
	c := NewChain(p, password, salt)
	c.AdvanceTo(iterations)
	return c.Details(modulus, keySize)
}

// reduce computes big-endian(d) mod m without allocating
func reduce(d []byte, m uint64) uint64 {
	var r uint64
	for len(d) >= 8 {
		_, r = bits.Div64(r, binary.BigEndian.Uint64(d), m)
		d = d[8:]
	}
	for _, b := range d {
		hi, lo := bits.Mul64(r, 256)
		var carry uint64
		lo, carry = bits.Add64(lo, uint64(b), 0)
		_, r = bits.Div64(hi+carry, lo, m)
	}
	return r
}

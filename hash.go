package deniable

import (
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashID identifies the hash primitive driving the chain. It is persisted
// in unlocker artifacts, so existing values must never be renumbered.
type HashID uint8

const (
	// HashSHA3_512 is SHA3-512, the default primitive
	HashSHA3_512 HashID = iota + 1
	// HashSHA3_256 is SHA3-256
	HashSHA3_256
	// HashBLAKE2b512 is unkeyed BLAKE2b-512
	HashBLAKE2b512
	// HashSHA512 is SHA-512
	HashSHA512
)

// DefaultHash is used when no primitive is configured
const DefaultHash = HashSHA3_512

// String returns the string representation of the hash id
func (h HashID) String() string {
	switch h {
	case HashSHA3_512:
		return "sha3-512"
	case HashSHA3_256:
		return "sha3-256"
	case HashBLAKE2b512:
		return "blake2b-512"
	case HashSHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// HashPrimitive is the capability the derivation chain needs: a digest
// function of fixed, known output width.
type HashPrimitive interface {
	// ID returns the persisted identifier of the primitive
	ID() HashID

	// Size returns the digest width in bytes. Salts have the same width.
	Size() int

	// New returns a fresh hash state
	New() hash.Hash
}

type primitive struct {
	id   HashID
	size int
	new  func() hash.Hash
}

func (p *primitive) ID() HashID     { return p.id }
func (p *primitive) Size() int      { return p.size }
func (p *primitive) New() hash.Hash { return p.new() }

func newBLAKE2b512() hash.Hash {
	// Only fails for keys longer than 64 bytes.
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(err)
	}
	return h
}

var primitives = map[HashID]*primitive{
	HashSHA3_512:   {id: HashSHA3_512, size: 64, new: sha3.New512},
	HashSHA3_256:   {id: HashSHA3_256, size: 32, new: sha3.New256},
	HashBLAKE2b512: {id: HashBLAKE2b512, size: blake2b.Size, new: newBLAKE2b512},
	HashSHA512:     {id: HashSHA512, size: sha512.Size, new: sha512.New},
}

// LookupHash returns the primitive registered under id
func LookupHash(id HashID) (HashPrimitive, error) {
	p, ok := primitives[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedHash, id)
	}
	return p, nil
}

// ParseHash resolves a primitive by its string name (case-insensitive)
func ParseHash(name string) (HashID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id := range primitives {
		if id.String() == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedHash, name)
}

// Sum hashes the concatenation of parts with a fresh state of p
func Sum(p HashPrimitive, parts ...[]byte) []byte {
	h := p.New()
	for _, part := range parts {
		h.Write(part)
	}
	return h.Sum(nil)
}

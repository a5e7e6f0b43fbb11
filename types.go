package deniable

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// DefaultKeySize is the derived key length in bytes (aes-xts-plain64 with 512-bit keys)
	DefaultKeySize = 64

	// DefaultBlockSize is the logical block size in bytes
	DefaultBlockSize = 4096

	// SectorSize is the unit the mapping backend measures offsets in
	SectorSize = 512

	// DefaultIterations is the chain depth used when no window is configured
	DefaultIterations = 10000
)

// AggregatePolicy selects how per-password deviations combine into the
// score a salt is judged by.
type AggregatePolicy uint8

const (
	// PolicyCumulative sums the deviations of all passwords
	PolicyCumulative AggregatePolicy = iota
	// PolicyWorstCase takes the largest single deviation
	PolicyWorstCase
)

// String returns the string representation of the policy
func (p AggregatePolicy) String() string {
	switch p {
	case PolicyCumulative:
		return "cumulative"
	case PolicyWorstCase:
		return "worst-case"
	default:
		return "unknown"
	}
}

// ParsePolicy resolves a policy by name
func ParsePolicy(name string) (AggregatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cumulative", "sum":
		return PolicyCumulative, nil
	case "worst-case", "worst", "max":
		return PolicyWorstCase, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedPolicy, name)
	}
}

// combine folds one more deviation into a running aggregate
func (p AggregatePolicy) combine(agg, dev uint64) uint64 {
	if p == PolicyWorstCase {
		return max(agg, dev)
	}
	if sum := agg + dev; sum >= agg {
		return sum
	}
	return ^uint64(0)
}

// PartitionTarget is one requested volume: a password and the block the
// operator wants its data to start at.
type PartitionTarget struct {
	Password []byte
	Offset   uint64
}

// PartitionDetails is the derived location and key of one volume
type PartitionDetails struct {
	Block uint64 // Starting block, always in [0, modulus)
	Key   []byte // Exactly key-size bytes
}

// DerivationParameters is the complete configuration needed to derive any
// volume from its password. Only the salt is secret-ish; the rest is public.
type DerivationParameters struct {
	Salt         []byte // Shared salt, one digest wide
	Iterations   int    // Chain depth
	Hash         HashID // Hash primitive
	KeySize      int    // Derived key length in bytes
	BlockModulus uint64 // Number of blocks on the device
}

// Validate checks if the parameters can be used for derivation
func (d *DerivationParameters) Validate() error {
	p, err := LookupHash(d.Hash)
	if err != nil {
		return newValidationErr("hash", d.Hash, ErrUnsupportedHash, "")
	}
	if len(d.Salt) != p.Size() {
		return newValidationErr("salt", len(d.Salt), ErrInvalidSalt,
			"got %d bytes, expected %d bytes for %s", len(d.Salt), p.Size(), d.Hash)
	}
	if d.Iterations < 0 {
		return newValidationErr("iterations", d.Iterations, ErrInvalidIterations, "cannot be negative")
	}
	if err := ValidateKeySize(d.KeySize); err != nil {
		return err
	}
	if d.BlockModulus == 0 {
		return newValidationErr("block_modulus", d.BlockModulus, ErrInvalidModulus, "")
	}
	return nil
}

// Derive computes the volume details for password
func (d *DerivationParameters) Derive(password []byte) (PartitionDetails, error) {
	if err := d.Validate(); err != nil {
		return PartitionDetails{}, err
	}
	if len(password) == 0 {
		return PartitionDetails{}, newValidationErr("password", nil, ErrEmptyPassword, "")
	}
	p, _ := LookupHash(d.Hash)
	return Derive(p, password, d.Salt, d.Iterations, d.KeySize, d.BlockModulus), nil
}

// PartitionOffset reports where one target landed for a given salt
type PartitionOffset struct {
	Target    uint64 // Requested block
	Block     uint64 // Derived block
	Deviation uint64 // |Block - Target|
}

// SearchResult is the best layout found by a search
type SearchResult struct {
	Salt       []byte            // nil when no trial completed
	Iterations int               // Chain depth achieving Deviation
	Deviation  uint64            // Aggregate deviation under Policy
	Offsets    []PartitionOffset // Per target, in configuration order
	Policy     AggregatePolicy
	Trials     uint64 // Salts evaluated when the result was produced
	Satisfied  bool   // Deviation is within the budget

	hash    HashID
	keySize int
	modulus uint64
}

// Found reports whether the result carries a usable salt
func (r *SearchResult) Found() bool {
	return r != nil && r.Salt != nil
}

// Parameters returns the derivation parameters the result describes
func (r *SearchResult) Parameters() DerivationParameters {
	return DerivationParameters{
		Salt:         bytes.Clone(r.Salt),
		Iterations:   r.Iterations,
		Hash:         r.hash,
		KeySize:      r.keySize,
		BlockModulus: r.modulus,
	}
}

// clone returns a deep copy safe to hand to callers
func (r *SearchResult) clone() *SearchResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Salt = bytes.Clone(r.Salt)
	c.Offsets = append([]PartitionOffset(nil), r.Offsets...)
	return &c
}

func deviation(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

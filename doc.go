// Package deniable derives deniable volume locations and keys on a raw
// block device from passwords, and searches for the shared parameters
// that place each volume where the operator wants it.
//
// # Overview
//
// Every password resolves, through a salted hash chain, to a starting
// block and a symmetric key. Nothing on the device records how many
// passwords exist: a second volume is just more ciphertext-looking data
// at an offset only its password can compute.
//
// # Derivation
//
// With ps = password‖salt and H the configured primitive:
//
//	h  = H(ps)
//	h  = H(h‖ps)                 repeated iterations times
//	block = big-endian(h) mod blocks
//	h  = H(h‖byte(block)‖ps)     separates the key stream
//	key = h₀‖h₁‖…                each hᵢ₊₁ = H(hᵢ‖ps), truncated
//
// Derive and DerivationParameters.Derive implement this. The result is a
// pure function of its inputs.
//
// # Searching
//
// Offsets are effectively random per salt, so placing several volumes
// means trying salts until every password lands close enough:
//
//	cfg := deniable.SearchConfig{
//	    Targets: []deniable.PartitionTarget{
//	        {Password: []byte("decoy"), Offset: 0},
//	        {Password: []byte("hidden"), Offset: 1 << 20},
//	    },
//	    BlockModulus:    deviceBlocks,
//	    DeviationBudget: 4096,
//	    MinIterations:   10000,
//	    MaxIterations:   20000,
//	    Parallel:        deniable.DefaultParallelConfig(),
//	}
//
//	s, err := deniable.NewSearcher(cfg)
//	if err != nil {
//	    return err
//	}
//	result, err := s.Search(ctx)
//
// For every salt the searcher scans the whole iteration window, keeping
// one chain per password and advancing them in lockstep, so a salt costs
// one digest per password per depth. The search has no upper bound; it
// stops when a salt meets the budget, after MaxTrials, or when ctx is
// done, and always returns the best result seen.
//
// Deviation is aggregated per PolicyCumulative (sum, the default) or
// PolicyWorstCase (maximum).
//
// # Unlocking
//
// An Artifact carries the hash, salt, iteration count and block size.
// Given an artifact, a password and the device, NewMapping reproduces the
// derivation and yields the plain-mode cryptsetup invocation.
//
// # Security Considerations
//
// Not Protected Against:
//   - Weak passwords (the chain is the only work factor)
//   - Observers who can watch the device being written
//   - Proof that a specific volume is absent; deniability is not formally bounded
package deniable

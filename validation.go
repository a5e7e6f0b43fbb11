package deniable

import (
	"bytes"
	"fmt"
)

// MaxKeySize bounds derived key length
const MaxKeySize = 4096

// ValidateKeySize checks if a derived key length is usable
func ValidateKeySize(size int) error {
	if size <= 0 || size > MaxKeySize {
		return newValidationErr("key_size", size, ErrInvalidKeySize,
			"got %d bytes, must be between 1 and %d", size, MaxKeySize)
	}
	return nil
}

// ValidateIterations checks an iteration window. Windows are half-open,
// except that min == max names the single count min.
func ValidateIterations(minIter, maxIter int) error {
	if minIter < 1 {
		return newValidationErr("min_iterations", minIter, ErrInvalidIterations,
			"minimum must be at least 1, got %d", minIter)
	}
	if minIter > maxIter {
		return newValidationErr("max_iterations", maxIter, ErrInvalidIterations,
			"minimum %d exceeds maximum %d", minIter, maxIter)
	}
	return nil
}

// ValidateTargets checks every target against the modulus. No hashing
// happens here, so it is cheap to call before a search.
func ValidateTargets(targets []PartitionTarget, modulus uint64) error {
	if modulus == 0 {
		return newValidationErr("block_modulus", modulus, ErrInvalidModulus, "")
	}
	if len(targets) == 0 {
		return newValidationErr("targets", 0, ErrNoTargets, "")
	}
	for i, t := range targets {
		field := fmt.Sprintf("targets[%d]", i)
		if len(t.Password) == 0 {
			return newValidationErr(field, nil, ErrEmptyPassword, "")
		}
		if t.Offset >= modulus {
			return newValidationErr(field, t.Offset, ErrTargetOutOfRange,
				"offset %d, device has %d blocks", t.Offset, modulus)
		}
		for j := range i {
			if bytes.Equal(targets[j].Password, t.Password) {
				return newValidationErr(field, nil, ErrDuplicatePassword,
					"same as partition %d", j+1)
			}
		}
	}
	return nil
}

// ValidateBlockSize checks a logical block size against the sector size
// of the mapping backend.
func ValidateBlockSize(blockSize, sectorSize int) error {
	if sectorSize <= 0 {
		return newValidationErr("sector_size", sectorSize, ErrInvalidBlockSize,
			"sector size must be positive, got %d", sectorSize)
	}
	if blockSize < sectorSize || blockSize%sectorSize != 0 {
		return newValidationErr("block_size", blockSize, ErrInvalidBlockSize,
			"block size %d must be a positive multiple of the %d byte sector", blockSize, sectorSize)
	}
	return nil
}

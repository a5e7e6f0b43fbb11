package deniable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const sizeUnits = "BKMGTP"

// FormatSize renders blocks of blockSize bytes as a short binary size
// such as "1.5G"
func FormatSize(blocks uint64, blockSize int) string {
	v := float64(blocks) * float64(blockSize)
	unit := 0
	for v > 1024 && unit < len(sizeUnits)-1 {
		v /= 1024
		unit++
	}
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s + sizeUnits[unit:unit+1]
}

// ParseBlocks reads a block count. A trailing k, m, g, t or p makes the
// number a byte size, rounded to the nearest block.
func ParseBlocks(s string, blockSize int) (uint64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, NewValidationError("size", s, "size cannot be empty")
	}
	if blockSize <= 0 {
		return 0, newValidationErr("block_size", blockSize, ErrInvalidBlockSize, "")
	}

	exp := strings.IndexByte(sizeUnits[1:], strings.ToUpper(s[len(s)-1:])[0])
	if exp < 0 {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, &ValidationError{Field: "size", Value: s, Message: "not a block count", Err: err}
		}
		return n, nil
	}

	f, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, &ValidationError{Field: "size", Value: s, Message: "not a size", Err: err}
	}
	blocks := math.Round(f * math.Pow(1024, float64(exp+1)) / float64(blockSize))
	if blocks >= math.MaxUint64 {
		return 0, NewValidationError("size", s, fmt.Sprintf("size %s is too large", s))
	}
	return uint64(blocks), nil
}

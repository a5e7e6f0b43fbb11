package deniable

import (
	"fmt"
	"io"
	"sync"
)

// GenerateSalt reads a salt of size bytes from r
func GenerateSalt(r io.Reader, size int) ([]byte, error) {
	salt := make([]byte, size)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// saltSource serializes reads so a seeded, non-thread-safe reader can feed
// several workers
type saltSource struct {
	mu   sync.Mutex
	r    io.Reader
	size int
}

func newSaltSource(r io.Reader, size int) *saltSource {
	return &saltSource{r: r, size: size}
}

func (s *saltSource) next() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GenerateSalt(s.r, s.size)
}

package deniable

import (
	"crypto/aes"
	"fmt"
	"strings"

	"golang.org/x/crypto/xts"
)

// DefaultMappingCipher is the plain-mode cipher volumes are mapped with
const DefaultMappingCipher = "aes-xts-plain64"

// Mapping is a resolved volume ready to hand to the device-mapper backend
type Mapping struct {
	Device string
	Name   string
	Cipher string
	Block  uint64 // Starting block
	Offset uint64 // Starting sector
	Key    []byte
}

// NewMapping derives the volume behind password on a device of
// deviceBlocks blocks
func NewMapping(a *Artifact, password []byte, deviceBlocks uint64, device, name string) (*Mapping, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	params := a.Parameters(deviceBlocks)
	details, err := params.Derive(password)
	if err != nil {
		return nil, err
	}

	m := &Mapping{
		Device: device,
		Name:   name,
		Cipher: DefaultMappingCipher,
		Block:  details.Block,
		Offset: details.Block * uint64(a.BlockSize/uint32(a.SectorSize)),
		Key:    details.Key,
	}
	if err := m.Validate(); err != nil {
		m.Wipe()
		return nil, err
	}
	return m, nil
}

// Validate checks that the key suits the cipher
func (m *Mapping) Validate() error {
	if m.Device == "" {
		return NewValidationError("device", m.Device, "device path cannot be empty")
	}
	if m.Name == "" {
		return NewValidationError("name", m.Name, "mapped name cannot be empty")
	}
	return ValidateMappingKeySize(m.Cipher, len(m.Key))
}

// ValidateMappingKeySize checks that cipher can be keyed with size bytes.
// XTS splits the key into two AES keys, so 32, 48 and 64 bytes are valid.
func ValidateMappingKeySize(cipher string, size int) error {
	if !strings.HasPrefix(cipher, "aes-xts-") {
		return nil
	}
	key := make([]byte, max(size, 0))
	if _, err := xts.NewCipher(aes.NewCipher, key); err != nil {
		return newValidationErr("key_size", size, ErrInvalidKeySize,
			"%s needs a 32, 48 or 64 byte key, got %d", cipher, size)
	}
	return nil
}

// Args returns the cryptsetup arguments opening the mapping in plain mode.
// The key is read from standard input.
func (m *Mapping) Args() []string {
	return []string{
		"--cipher=" + m.Cipher,
		fmt.Sprintf("--offset=%d", m.Offset),
		"--key-file=-",
		fmt.Sprintf("--key-size=%d", len(m.Key)*8),
		"open",
		"--type=plain",
		m.Device,
		m.Name,
	}
}

// Wipe zeroes the key
func (m *Mapping) Wipe() {
	clear(m.Key)
}

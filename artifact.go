package deniable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/absfs/absfs"
)

const (
	// ArtifactMagic identifies unlocker artifacts (ASCII: "DNBL")
	ArtifactMagic = uint32(0x444E424C)

	// ArtifactVersion is the current artifact format version
	ArtifactVersion = uint8(1)

	// MaxSaltSize bounds the salt length accepted when reading
	MaxSaltSize = 1024
)

// Artifact is everything an unlocker needs besides the password and the
// device: enough to reproduce the derivation exactly.
//
// On disk (little-endian):
//
//	magic (4) | version (1) | hash (1) | salt size (2) | salt |
//	iterations (8) | block size (4) | key size (2) | sector size (2) |
//	device blocks (8)
type Artifact struct {
	Hash         HashID
	Salt         []byte
	Iterations   uint64
	BlockSize    uint32
	KeySize      uint16
	SectorSize   uint16
	DeviceBlocks uint64 // Device size when prepared; informational
}

// NewArtifact packages a search result for the unlocker
func NewArtifact(r *SearchResult, blockSize, sectorSize int) (*Artifact, error) {
	if !r.Found() {
		return nil, NewValidationError("result", nil, "search result has no salt")
	}
	if err := ValidateBlockSize(blockSize, sectorSize); err != nil {
		return nil, err
	}
	p := r.Parameters()
	if err := ValidateMappingKeySize(DefaultMappingCipher, p.KeySize); err != nil {
		return nil, err
	}
	a := &Artifact{
		Hash:         p.Hash,
		Salt:         p.Salt,
		Iterations:   uint64(p.Iterations),
		BlockSize:    uint32(blockSize),
		KeySize:      uint16(p.KeySize),
		SectorSize:   uint16(sectorSize),
		DeviceBlocks: p.BlockModulus,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Parameters returns the derivation parameters for a device of the given
// size in blocks
func (a *Artifact) Parameters(deviceBlocks uint64) DerivationParameters {
	return DerivationParameters{
		Salt:         bytes.Clone(a.Salt),
		Iterations:   int(a.Iterations),
		Hash:         a.Hash,
		KeySize:      int(a.KeySize),
		BlockModulus: deviceBlocks,
	}
}

// Validate checks if the artifact is usable
func (a *Artifact) Validate() error {
	p, err := LookupHash(a.Hash)
	if err != nil {
		return NewFormatError("hash", err)
	}
	if len(a.Salt) != p.Size() {
		return NewFormatError("salt", fmt.Errorf("%w: got %d bytes, expected %d", ErrInvalidSalt, len(a.Salt), p.Size()))
	}
	if a.Iterations < 1 {
		return NewFormatError("iterations", ErrInvalidIterations)
	}
	if err := ValidateKeySize(int(a.KeySize)); err != nil {
		return NewFormatError("key_size", err)
	}
	if err := ValidateBlockSize(int(a.BlockSize), int(a.SectorSize)); err != nil {
		return NewFormatError("block_size", err)
	}
	return nil
}

// WriteTo writes the artifact to the given writer
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}

	buf := new(bytes.Buffer)

	fields := []struct {
		name  string
		value any
	}{
		{"magic bytes", ArtifactMagic},
		{"version", ArtifactVersion},
		{"hash", a.Hash},
		{"salt size", uint16(len(a.Salt))},
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f.value); err != nil {
			return 0, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	// Write salt
	if _, err := buf.Write(a.Salt); err != nil {
		return 0, fmt.Errorf("failed to write salt: %w", err)
	}

	fields = []struct {
		name  string
		value any
	}{
		{"iterations", a.Iterations},
		{"block size", a.BlockSize},
		{"key size", a.KeySize},
		{"sector size", a.SectorSize},
		{"device blocks", a.DeviceBlocks},
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f.value); err != nil {
			return 0, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	// Write to actual writer
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom reads the artifact from the given reader
func (a *Artifact) ReadFrom(r io.Reader) (int64, error) {
	var totalRead int64
	read := func(field string, size int64, v any) error {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return NewFormatError(field, err)
		}
		totalRead += size
		return nil
	}

	var magic uint32
	if err := read("magic", 4, &magic); err != nil {
		return totalRead, err
	}
	if magic != ArtifactMagic {
		return totalRead, NewFormatError("magic", ErrInvalidHeader)
	}

	var version uint8
	if err := read("version", 1, &version); err != nil {
		return totalRead, err
	}
	if version == 0 || version > ArtifactVersion {
		return totalRead, NewFormatError("version", ErrUnsupportedVersion)
	}

	if err := read("hash", 1, &a.Hash); err != nil {
		return totalRead, err
	}

	var saltSize uint16
	if err := read("salt size", 2, &saltSize); err != nil {
		return totalRead, err
	}
	if saltSize == 0 || saltSize > MaxSaltSize {
		return totalRead, NewFormatError("salt size", fmt.Errorf("%w: %d bytes", ErrInvalidSalt, saltSize))
	}

	// Read salt
	a.Salt = make([]byte, saltSize)
	n, err := io.ReadFull(r, a.Salt)
	totalRead += int64(n)
	if err != nil {
		return totalRead, NewFormatError("salt", err)
	}

	if err := read("iterations", 8, &a.Iterations); err != nil {
		return totalRead, err
	}
	if err := read("block size", 4, &a.BlockSize); err != nil {
		return totalRead, err
	}
	if err := read("key size", 2, &a.KeySize); err != nil {
		return totalRead, err
	}
	if err := read("sector size", 2, &a.SectorSize); err != nil {
		return totalRead, err
	}
	if err := read("device blocks", 8, &a.DeviceBlocks); err != nil {
		return totalRead, err
	}

	return totalRead, a.Validate()
}

// SaveArtifact writes a to path on fs, replacing any existing file
func SaveArtifact(fs absfs.FileSystem, path string, a *Artifact) error {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return NewDeviceError("open", path, err)
	}
	if _, err := a.WriteTo(f); err != nil {
		f.Close()
		if IsFormatError(err) {
			return err
		}
		return NewDeviceError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return NewDeviceError("close", path, err)
	}
	return nil
}

// LoadArtifact reads an artifact from path on fs
func LoadArtifact(fs absfs.FileSystem, path string) (*Artifact, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, NewDeviceError("open", path, err)
	}
	defer f.Close()

	a := new(Artifact)
	if _, err := a.ReadFrom(f); err != nil {
		return nil, err
	}
	return a, nil
}

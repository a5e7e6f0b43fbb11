package deniable

import (
	"bytes"
	"errors"
	"strconv"
	"testing"
)

func TestNewMapping(t *testing.T) {
	r := sampleResult(t)
	a, err := NewArtifact(r, 4096, SectorSize)
	if err != nil {
		t.Fatalf("NewArtifact failed: %v", err)
	}

	m, err := NewMapping(a, []byte("hidden"), a.DeviceBlocks, "/dev/sdz", "secret")
	if err != nil {
		t.Fatalf("NewMapping failed: %v", err)
	}

	if m.Block != r.Offsets[1].Block {
		t.Fatalf("block = %d, want %d", m.Block, r.Offsets[1].Block)
	}
	if m.Offset != m.Block*8 {
		t.Fatalf("offset = %d sectors, want %d", m.Offset, m.Block*8)
	}
	if len(m.Key) != DefaultKeySize {
		t.Fatalf("key is %d bytes, want %d", len(m.Key), DefaultKeySize)
	}

	want := []string{
		"--cipher=aes-xts-plain64",
		"--offset=" + strconv.FormatUint(m.Offset, 10),
		"--key-file=-",
		"--key-size=512",
		"open",
		"--type=plain",
		"/dev/sdz",
		"secret",
	}
	got := m.Args()
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	m.Wipe()
	if !bytes.Equal(m.Key, make([]byte, DefaultKeySize)) {
		t.Fatal("Wipe left key material behind")
	}
}

func TestNewMapping_Errors(t *testing.T) {
	a, err := NewArtifact(sampleResult(t), 4096, SectorSize)
	if err != nil {
		t.Fatalf("NewArtifact failed: %v", err)
	}

	if _, err := NewMapping(a, nil, 100, "/dev/sdz", "x"); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("empty password: error = %v", err)
	}
	if _, err := NewMapping(a, []byte("pw"), 0, "/dev/sdz", "x"); !errors.Is(err, ErrInvalidModulus) {
		t.Errorf("empty device: error = %v", err)
	}
	if _, err := NewMapping(a, []byte("pw"), 100, "", "x"); !IsValidationError(err) {
		t.Errorf("no device path: error = %v", err)
	}

	short := *a
	short.KeySize = 16
	if _, err := NewMapping(&short, []byte("pw"), 100, "/dev/sdz", "x"); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("16 byte xts key: error = %v", err)
	}
}

func TestValidateMappingKeySize(t *testing.T) {
	tests := []struct {
		cipher string
		size   int
		valid  bool
	}{
		{DefaultMappingCipher, 32, true},
		{DefaultMappingCipher, 48, true},
		{DefaultMappingCipher, 64, true},
		{DefaultMappingCipher, 16, false},
		{DefaultMappingCipher, 100, false},
		{DefaultMappingCipher, 0, false},
		{DefaultMappingCipher, -1, false},
		{"serpent-cbc-essiv:sha256", 100, true},
	}

	for _, tt := range tests {
		err := ValidateMappingKeySize(tt.cipher, tt.size)
		if tt.valid && err != nil {
			t.Errorf("%s with %d bytes: unexpected error %v", tt.cipher, tt.size, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("%s with %d bytes: error = %v, want ErrInvalidKeySize", tt.cipher, tt.size, err)
		}
	}
}

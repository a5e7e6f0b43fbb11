package deniable

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/absfs/absfs"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes that may be written with a k/m/g/t/p suffix
// in configuration files
type ByteSize int

// UnmarshalYAML accepts plain integers or suffixed sizes such as "4k"
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", node.Line)
	}
	raw := node.Value
	n, err := ParseBlocks(raw, 1)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	if n > uint64(^uint32(0)) {
		return fmt.Errorf("line %d: size %q is too large", node.Line, raw)
	}
	*b = ByteSize(n)
	return nil
}

// IterationWindow bounds the chain depths scanned per salt
type IterationWindow struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Config holds tool defaults, usually loaded from a YAML file
type Config struct {
	BlockSize  ByteSize        `yaml:"block_size"`
	SectorSize ByteSize        `yaml:"sector_size"`
	KeySize    int             `yaml:"key_size"`
	Hash       string          `yaml:"hash"`
	Policy     string          `yaml:"policy"`
	Iterations IterationWindow `yaml:"iterations"`
	Workers    int             `yaml:"workers"`
	MaxTrials  uint64          `yaml:"max_trials"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		BlockSize:  DefaultBlockSize,
		SectorSize: SectorSize,
		KeySize:    DefaultKeySize,
		Hash:       DefaultHash.String(),
		Policy:     PolicyCumulative.String(),
		Iterations: IterationWindow{Min: DefaultIterations, Max: DefaultIterations},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if err := ValidateBlockSize(int(c.BlockSize), int(c.SectorSize)); err != nil {
		return err
	}
	if err := ValidateKeySize(c.KeySize); err != nil {
		return err
	}
	if err := ValidateMappingKeySize(DefaultMappingCipher, c.KeySize); err != nil {
		return err
	}
	if _, err := ParseHash(c.Hash); err != nil {
		return &ValidationError{Field: "hash", Value: c.Hash, Message: err.Error(), Err: ErrUnsupportedHash}
	}
	if _, err := ParsePolicy(c.Policy); err != nil {
		return &ValidationError{Field: "policy", Value: c.Policy, Message: err.Error(), Err: ErrUnsupportedPolicy}
	}
	if err := ValidateIterations(c.Iterations.Min, c.Iterations.Max); err != nil {
		return err
	}
	if c.Workers < 0 {
		return NewValidationError("workers", c.Workers, "workers cannot be negative")
	}
	return nil
}

// SearchConfig builds a search over targets on a device of blocks blocks
func (c *Config) SearchConfig(targets []PartitionTarget, blocks, budget uint64) (SearchConfig, error) {
	if err := c.Validate(); err != nil {
		return SearchConfig{}, err
	}
	hash, _ := ParseHash(c.Hash)
	policy, _ := ParsePolicy(c.Policy)

	cfg := SearchConfig{
		Targets:         targets,
		BlockModulus:    blocks,
		DeviationBudget: budget,
		KeySize:         c.KeySize,
		MinIterations:   c.Iterations.Min,
		MaxIterations:   c.Iterations.Max,
		Hash:            hash,
		Policy:          policy,
		Parallel:        DefaultParallelConfig(),
		MaxTrials:       c.MaxTrials,
	}
	if c.Workers > 0 {
		cfg.Parallel.MaxWorkers = c.Workers
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration from path on fsys. Fields missing
// from the file keep their defaults; a missing file yields DefaultConfig.
func LoadConfig(fsys absfs.FileSystem, path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, NewDeviceError("open", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ValidationError{Field: "config", Value: path, Message: fmt.Sprintf("failed to parse %s: %v", path, err), Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

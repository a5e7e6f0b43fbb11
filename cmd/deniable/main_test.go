package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absfs/deniable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBlocks = 100

// newDevice creates a sparse file standing in for a block device
func newDevice(t *testing.T, blocks int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(blocks)*deniable.DefaultBlockSize))
	require.NoError(t, f.Close())
	return path
}

func run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPrepareDeriveUnlock(t *testing.T) {
	dir := t.TempDir()
	device := newDevice(t, testBlocks)
	artifact := filepath.Join(dir, "unlock.dnbl")
	config := filepath.Join(dir, "deniable.yaml")
	require.NoError(t, os.WriteFile(config, []byte("iterations:\n  min: 1\n  max: 64\nworkers: 2\n"), 0600))

	input := strings.Join([]string{
		"decoy", "decoy", "10", "y",
		"hidden", "hidden", "90", "n",
		"40",
		"y",
	}, "\n") + "\n"

	out, err := run(t, input, "--config", config, "prepare", device, artifact)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Device is 100 (400K) blocks")
	assert.Contains(t, out, "Partition 1: Block 10")
	assert.Contains(t, out, "Partition 2: Block 90")
	assert.Contains(t, out, "Saved unlocker artifact to "+artifact)

	a, err := deniable.LoadArtifact(newOSFS(), artifact)
	require.NoError(t, err)
	assert.Equal(t, uint32(deniable.DefaultBlockSize), a.BlockSize)
	assert.Equal(t, uint64(testBlocks), a.DeviceBlocks)
	assert.GreaterOrEqual(t, a.Iterations, uint64(1))
	assert.Less(t, a.Iterations, uint64(64))

	params := a.Parameters(testBlocks)
	decoy, err := params.Derive([]byte("decoy"))
	require.NoError(t, err)
	hidden, err := params.Derive([]byte("hidden"))
	require.NoError(t, err)
	total := absDiff(decoy.Block, 10) + absDiff(hidden.Block, 90)
	assert.LessOrEqual(t, total, uint64(40))

	out, err = run(t, "hidden\n", "derive", artifact)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Block: %d (", hidden.Block))
	assert.Contains(t, out, fmt.Sprintf("Sector offset: %d", hidden.Block*8))

	out, err = run(t, "decoy\n", "unlock", "--dry-run", artifact, device, "secret")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Partition starts at block %d", decoy.Block))
	assert.Contains(t, out, fmt.Sprintf("cryptsetup --cipher=aes-xts-plain64 --offset=%d --key-file=- --key-size=512 open --type=plain %s secret", decoy.Block*8, device))
}

func TestPrepare_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	device := newDevice(t, testBlocks)
	artifact := filepath.Join(dir, "unlock.dnbl")

	input := "only\nonly\n0\nn\n50\ny\n"
	out, err := run(t, input, "prepare", "--min-iterations", "3", "--max-iterations", "9",
		"--hash", "blake2b-512", "--workers", "1", device, artifact)
	require.NoError(t, err, out)

	a, err := deniable.LoadArtifact(newOSFS(), artifact)
	require.NoError(t, err)
	assert.Equal(t, deniable.HashBLAKE2b512, a.Hash)
	assert.Len(t, a.Salt, 64)
	assert.GreaterOrEqual(t, a.Iterations, uint64(3))
	assert.Less(t, a.Iterations, uint64(9))
}

func TestPrepare_RejectsBadConfig(t *testing.T) {
	device := newDevice(t, testBlocks)
	_, err := run(t, "", "prepare", "--policy", "median", device, filepath.Join(t.TempDir(), "a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, deniable.ErrUnsupportedPolicy)
}

func TestPrepare_RejectsKeySizeUnlockCannotUse(t *testing.T) {
	dir := t.TempDir()
	device := newDevice(t, testBlocks)
	artifact := filepath.Join(dir, "unlock.dnbl")
	config := filepath.Join(dir, "deniable.yaml")
	require.NoError(t, os.WriteFile(config, []byte("key_size: 100\n"), 0600))

	out, err := run(t, "pw\npw\n5\nn\n100\ny\n", "--config", config, "prepare", device, artifact)
	require.Error(t, err)
	assert.ErrorIs(t, err, deniable.ErrInvalidKeySize)
	assert.NotContains(t, out, "Found a deviation")
	assert.NoFileExists(t, artifact)
}

func TestPrepare_AES192KeyUnlocks(t *testing.T) {
	dir := t.TempDir()
	device := newDevice(t, testBlocks)
	artifact := filepath.Join(dir, "unlock.dnbl")
	config := filepath.Join(dir, "deniable.yaml")
	require.NoError(t, os.WriteFile(config, []byte("key_size: 48\niterations: {min: 1, max: 4}\n"), 0600))

	_, err := run(t, "pw\npw\n5\nn\n100\ny\n", "--config", config, "prepare", device, artifact)
	require.NoError(t, err)

	out, err := run(t, "pw\n", "unlock", "--dry-run", artifact, device, "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "--key-size=384")
}

func TestDerive_BlocksFlag(t *testing.T) {
	dir := t.TempDir()
	device := newDevice(t, testBlocks)
	artifact := filepath.Join(dir, "unlock.dnbl")

	_, err := run(t, "pw\npw\n5\nn\n100\ny\n", "prepare", "--min-iterations", "1", "--max-iterations", "2", device, artifact)
	require.NoError(t, err)

	a, err := deniable.LoadArtifact(newOSFS(), artifact)
	require.NoError(t, err)
	params := a.Parameters(1 << 20)
	d, err := params.Derive([]byte("pw"))
	require.NoError(t, err)

	out, err := run(t, "pw\n", "derive", "--blocks", "4g", "--show-key", artifact)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Block: %d (", d.Block))
	assert.Contains(t, out, fmt.Sprintf("Key: %x", d.Key))
}

func TestUnlock_MissingArtifact(t *testing.T) {
	device := newDevice(t, testBlocks)
	_, err := run(t, "pw\n", "unlock", "--dry-run", filepath.Join(t.TempDir(), "nope"), device, "x")
	require.Error(t, err)
	assert.True(t, deniable.IsDeviceError(err))
}

func TestDeviceBlocks(t *testing.T) {
	device := newDevice(t, 10)

	blocks, err := deviceBlocks(device, deniable.DefaultBlockSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), blocks)

	blocks, err = deviceBlocks(device, 512)
	require.NoError(t, err)
	assert.Equal(t, uint64(80), blocks)

	_, err = deviceBlocks(device, 1<<20)
	assert.True(t, deniable.IsDeviceError(err))

	_, err = deviceBlocks(filepath.Join(t.TempDir(), "missing"), 4096)
	assert.True(t, deniable.IsDeviceError(err))
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

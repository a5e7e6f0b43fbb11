package main

import (
	"io"
	"os"

	"github.com/absfs/deniable"
)

// deviceBlocks returns how many whole blocks of blockSize fit on path. It
// seeks to the end so block devices report their real size.
func deviceBlocks(path string, blockSize int) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, deniable.NewDeviceError("open", path, err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, deniable.NewDeviceError("size", path, err)
	}
	blocks := uint64(size) / uint64(blockSize)
	if blocks == 0 {
		return 0, deniable.NewDeviceError("size", path, deniable.ErrInvalidModulus)
	}
	return blocks, nil
}

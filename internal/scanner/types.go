package scanner

import (
	"os"
	"syscall"

	"github.com/michaelcinquin/dirdup/internal/types"
)

// newFileInfo creates FileInfo from os.FileInfo and path.
func newFileInfo(path string, info os.FileInfo) *types.FileInfo {
	dev, ino := devIno(info)
	return &types.FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Dev:     dev,
		Ino:     ino,
	}
}

// devIno extracts the device and inode numbers from a stat result.
func devIno(info os.FileInfo) (uint64, uint64) {
	stat := info.Sys().(*syscall.Stat_t)
	return uint64(stat.Dev), stat.Ino //nolint:unconvert // platform-dependent type
}

//go:build !linux && !darwin

package disk

import "os"

// syncFile falls back to the standard library's fsync wrapper on platforms
// without a golang.org/x/sys/unix binding wired up.
func syncFile(f *os.File) error {
	return f.Sync()
}

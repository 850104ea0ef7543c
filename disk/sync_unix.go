//go:build linux || darwin

package disk

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile fsyncs the file descriptor directly through golang.org/x/sys/unix,
// mirroring the platform-specific direct-I/O split used by
// alexhholmes-fredb/internal/directio (darwin.go / unsupported.go) for the
// same "durable write, per-platform syscall" concern.
func syncFile(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}

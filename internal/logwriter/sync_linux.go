//go:build linux

package logwriter

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// writeDurable appends p under an exclusive advisory lock, so another process
// tailing or rotating the file by hand sees whole lines, then flushes the
// data to stable storage before returning.
func writeDurable(f *os.File, p []byte) error {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	if _, err := f.Write(p); err != nil {
		return err
	}
	if err := unix.Fdatasync(fd); err != nil {
		return fmt.Errorf("fdatasync: %w", err)
	}
	return nil
}

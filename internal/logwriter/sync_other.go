//go:build !linux

package logwriter

import "os"

func writeDurable(f *os.File, p []byte) error {
	if _, err := f.Write(p); err != nil {
		return err
	}
	return f.Sync()
}

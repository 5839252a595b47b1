//go:build !windows

package source

import "os"

// openShared opens path read-only. POSIX opens never lock out the writer.
func openShared(path string) (*os.File, error) {
	return os.Open(path)
}

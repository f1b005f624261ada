//go:build !(linux || darwin || freebsd)

package diskspace

import "errors"

// BytesAvailable is not implemented on this platform.
func BytesAvailable(path string) (uint64, error) {
	return 0, errors.New("free space query not supported on this platform")
}

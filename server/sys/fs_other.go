//go:build !linux && !darwin

package sys

import "errors"

func FreeSpace(path string) (uint64, error) {
	return 0, errors.ErrUnsupported
}

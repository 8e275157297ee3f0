//go:build !linux

package driver

import (
	"fmt"
	"os"
)

func openSerial(path string, baud int) (*os.File, error) {
	return nil, fmt.Errorf("receiver serial not supported on this platform")
}

package connfile

import (
	"fmt"
	"os"
)

// readFile reads the raw file contents, wrapping errors in the package's
// category error. Split out so Read stays focused on parsing.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFile, err)
	}
	return data, nil
}

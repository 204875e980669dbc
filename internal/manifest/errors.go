package manifest

import (
	"errors"
	"fmt"
)

var ErrManifest = errors.New("invalid manifest")

// Reported when a parameter override names a parameter the manifest does
// not declare.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown build parameter %q", e.Name)
}

// Reported when two artifact references write to the same destination path.
type DuplicateDestinationError struct {
	Dest string
}

func (e *DuplicateDestinationError) Error() string {
	return fmt.Sprintf("duplicate artifact destination %q", e.Dest)
}

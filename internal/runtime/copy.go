package runtime

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
)

// Creates a directory inside the environment, including parents.
func (e *Environment) MkdirAll(ctx context.Context, path string) error {
	return e.mustExec(ctx, "mkdir", nil, nil, "mkdir", "-p", path)
}

// Removes a path inside the environment, recursively. Missing paths are
// not an error.
func (e *Environment) Remove(ctx context.Context, path string) error {
	return e.mustExec(ctx, "rm", nil, nil, "rm", "-rf", path)
}

// Renames a path inside the environment.
func (e *Environment) Move(ctx context.Context, src, dest string) error {
	return e.mustExec(ctx, "mv", nil, nil, "mv", src, dest)
}

// Reports whether a path exists in the environment's filesystem.
func (e *Environment) Exists(ctx context.Context, path string) (bool, error) {
	exitCode, _, err := e.execCommand(ctx, nil, nil, nil, "", "test", "-e", path)
	if err != nil {
		return false, err
	}
	return exitCode == 0, nil
}

// Copies a tar stream into the environment's filesystem.
//
// The contents of r are extracted into destDir by piping them to "tar xf -
// -C destDir" inside the environment. File modes and executable bits come
// from the tar headers.
func (e *Environment) CopyTo(ctx context.Context, r io.Reader, destDir string) error {
	return e.mustExec(ctx, "tar extract", r, nil, "tar", "xf", "-", "-C", destDir)
}

// Copies a path from the environment's filesystem as a tar stream.
//
// The file or directory at path is archived by running "tar cf - -C <dir>
// <base>" inside the environment and streaming the output to w.
func (e *Environment) CopyFrom(ctx context.Context, w io.Writer, path string) error {
	return e.mustExec(ctx, "tar archive", nil, w, "tar", "cf", "-", "-C", filepath.Dir(path), filepath.Base(path))
}

// Runs a command inside the environment, returning an error that includes
// desc if the process exits with a non-zero code.
func (e *Environment) mustExec(ctx context.Context, desc string, stdin io.Reader, stdout io.Writer, args ...string) error {
	exitCode, stderr, err := e.execCommand(ctx, stdin, stdout, nil, "", args...)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("%w: %s failed with exit code %d (%s)", ErrRuntime, desc, exitCode, stderr)
	}
	return nil
}

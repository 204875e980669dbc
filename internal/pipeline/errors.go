package pipeline

import (
	"errors"
	"fmt"

	"github.com/masonbuild/mason/internal/manifest"
)

var (
	ErrPipeline            = errors.New("pipeline failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
)

// Reason codes reported on [Failure]. Each maps to one error kind in the
// pipeline's taxonomy; anything else is reported as internal.
const (
	ReasonUnknownParameter     = "unknown-parameter"
	ReasonDuplicateDestination = "duplicate-destination"
	ReasonProvision            = "provision"
	ReasonImport               = "import"
	ReasonBuild                = "build"
	ReasonMissingArtifact      = "missing-artifact"
	ReasonInternal             = "internal"
)

// Reported when a stage's environment cannot be provisioned: either the base
// failed to start or a package failed to install. No partial environment
// survives; the stage's container is destroyed with the rest of the run.
type ProvisionError struct {
	Base    string // Base environment identifier.
	Package string // First failing package. Empty when the base itself failed to start.
	Err     error
}

func (e *ProvisionError) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("provisioning from %q failed: %v", e.Base, e.Err)
	}
	return fmt.Sprintf("provisioning from %q failed installing package %q: %v", e.Base, e.Package, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Reported when the source tree cannot be imported into a stage.
type ImportError struct {
	Source string // Host path of the source tree.
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("importing source tree %q failed: %v", e.Source, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Reported when a stage command exits non-zero. Commands after the failing
// one are not attempted.
type BuildFailure struct {
	Stage    string // Stage identifier.
	Command  string // The failing command as declared in the manifest.
	ExitCode int
	Output   string // Captured diagnostic output of the failing command.
}

func (e *BuildFailure) Error() string {
	return fmt.Sprintf("stage %q: command %q exited with code %d: %s", e.Stage, e.Command, e.ExitCode, e.Output)
}

// Reported when an artifact reference names a path that does not exist in
// the source stage's final filesystem state.
type MissingArtifactError struct {
	Stage string // Source stage named by the reference.
	Path  string // Path that was not found.
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("artifact %q not found in stage %q", e.Path, e.Stage)
}

// The single failure value a pipeline invocation reports.
//
// Every error is fatal to the pipeline as a whole: there is no local
// recovery, no automatic retry, and no partial deliverable.
type Failure struct {
	Stage  string // Identifier of the stage that failed.
	Reason string // One of the Reason constants.
	Err    error  // Underlying error with full diagnostic context.
}

func (f *Failure) Error() string {
	return fmt.Sprintf("stage %q failed (%s): %v", f.Stage, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Maps an error to its reason code.
func Reason(err error) string {
	var (
		unknownParam *manifest.UnknownParameterError
		dupDest      *manifest.DuplicateDestinationError
		provision    *ProvisionError
		importErr    *ImportError
		buildFailure *BuildFailure
		missing      *MissingArtifactError
	)

	switch {
	case errors.As(err, &unknownParam):
		return ReasonUnknownParameter
	case errors.As(err, &dupDest):
		return ReasonDuplicateDestination
	case errors.As(err, &provision):
		return ReasonProvision
	case errors.As(err, &importErr):
		return ReasonImport
	case errors.As(err, &buildFailure):
		return ReasonBuild
	case errors.As(err, &missing):
		return ReasonMissingArtifact
	default:
		return ReasonInternal
	}
}

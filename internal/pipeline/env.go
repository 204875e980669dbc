package pipeline

import (
	"context"
	"io"

	"github.com/masonbuild/mason/internal/runtime"
)

// Starts stage environments from base identifiers.
//
// Implemented by [runtime.Runtime] through [NewEngine]. Tests substitute
// in-memory fakes so the pipeline logic runs without a containerd daemon.
type Engine interface {
	Start(ctx context.Context, base, id string) (Environment, error)
}

// An isolated stage filesystem plus command execution.
//
// The pipeline owns each environment exclusively during its stage's
// execution window; later stages interact with it only through CopyFrom.
type Environment interface {
	ID() string
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (*runtime.ExecResult, error)
	MkdirAll(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
	Move(ctx context.Context, src, dest string) error
	Exists(ctx context.Context, path string) (bool, error)
	CopyTo(ctx context.Context, r io.Reader, destDir string) error
	CopyFrom(ctx context.Context, w io.Writer, path string) error
	Stop(ctx context.Context) error
	Export(ctx context.Context, output string, entrypoint []string) error
	Destroy(ctx context.Context)
}

// Adapts a containerd runtime to the [Engine] interface.
type containerdEngine struct {
	rt *runtime.Runtime
}

// Wraps a containerd runtime as a pipeline engine.
func NewEngine(rt *runtime.Runtime) Engine {
	return containerdEngine{rt: rt}
}

func (e containerdEngine) Start(ctx context.Context, base, id string) (Environment, error) {
	return e.rt.Start(ctx, base, id)
}

package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/masonbuild/mason/internal/manifest"
)

// Pulls the stage's declared artifacts in from earlier stages.
//
// The receiving environment was instantiated fresh from its own base, so
// nothing from the build-time environments is inherited; the extracted
// paths are the only state that crosses the boundary. References are
// independent and may be processed in any order; manifest validation has
// already rejected duplicate destinations.
func (r *run) extract(ctx context.Context, env Environment, stage manifest.Stage) error {
	for _, ref := range stage.Artifacts {
		if err := r.extractArtifact(ctx, env, ref); err != nil {
			return err
		}
	}
	return nil
}

// Copies one artifact from a completed stage into the receiving environment.
//
// The tar stream is piped directly from the source environment's CopyFrom
// to the receiver's CopyTo, preserving file permissions and executable
// bits. A missing source path is fatal to the whole pipeline.
func (r *run) extractArtifact(ctx context.Context, env Environment, ref manifest.ArtifactRef) error {
	src, ok := r.stages[ref.From]
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", ErrPipeline, ref.From)
	}

	exists, err := src.Exists(ctx, ref.Path)
	if err != nil {
		return err
	}
	if !exists {
		return &MissingArtifactError{Stage: ref.From, Path: ref.Path}
	}

	destDir := path.Dir(ref.To)
	if err := env.MkdirAll(ctx, destDir); err != nil {
		return err
	}

	slog.Debug("extracting artifact", "from", ref.From, "path", ref.Path, "to", ref.To)

	pr, pw := io.Pipe()
	// Closing the read end unblocks the source's CopyFrom if CopyTo bails
	// before draining the stream.
	defer pr.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- src.CopyFrom(ctx, pw, ref.Path)
		pw.Close()
	}()

	if err := env.CopyTo(ctx, pr, destDir); err != nil {
		return err
	}
	if err := <-errc; err != nil {
		return err
	}

	// The tar stream lands under the source basename; rename when the
	// destination basename differs.
	if path.Base(ref.Path) != path.Base(ref.To) {
		return env.Move(ctx, path.Join(destDir, path.Base(ref.Path)), ref.To)
	}

	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/masonbuild/mason/internal/manifest"
	"github.com/masonbuild/mason/internal/paths"
)

// Controls pipeline execution.
type Options struct {
	Pipeline *manifest.Pipeline // Resolved pipeline to execute.
	Name     string             // Resource name, used as a prefix for environment IDs.
	Source   string             // Host path of the source tree imported into source stages.
	Output   string             // Directory for the exported deliverable.
}

// Returned after successful pipeline execution.
type Result struct {
	Output string // Directory containing the exported deliverable.
}

// Executes a pipeline against the engine.
//
// Stages run strictly in declaration order; the first error of any kind
// aborts the whole run and is reported as a [*Failure]. The terminal stage's
// filesystem is exported as the deliverable to the output directory. All
// stage environments are destroyed when the run returns, whether it
// succeeded, failed, or was cancelled.
func Run(ctx context.Context, eng Engine, opts Options) (*Result, error) {
	slog.Info("executing pipeline",
		"name", opts.Name,
		"stages", len(opts.Pipeline.Stages),
		"output", opts.Output,
	)

	// Manifest loading already rejects empty pipelines, but Run is callable
	// with a hand-built Pipeline.
	if len(opts.Pipeline.Stages) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no stages", ErrPipeline)
	}

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	return newRun(eng, opts).execute(ctx)
}

// Holds shared state for one pipeline invocation.
//
// A run is constructed once per invocation and discarded afterwards; no
// state persists between invocations.
type run struct {
	eng      Engine
	pipeline *manifest.Pipeline
	name     string
	source   string
	output   string
	envs     []Environment          // All stage environments, destroyed when the run completes.
	stages   map[string]Environment // Completed stage environments by name, for artifact extraction.
}

func newRun(eng Engine, opts Options) *run {
	return &run{
		eng:      eng,
		pipeline: opts.Pipeline,
		name:     opts.Name,
		source:   opts.Source,
		output:   opts.Output,
		stages:   make(map[string]Environment),
	}
}

// Runs all stages in order, then exports the terminal stage.
func (r *run) execute(ctx context.Context) (*Result, error) {
	defer r.destroyEnvironments(ctx)

	for i, stage := range r.pipeline.Stages {
		if err := r.runStage(ctx, stage, i); err != nil {
			return nil, &Failure{Stage: stage.Name, Reason: Reason(err), Err: err}
		}
	}

	terminal := r.pipeline.Stages[len(r.pipeline.Stages)-1]
	if err := r.export(ctx, terminal); err != nil {
		return nil, &Failure{Stage: terminal.Name, Reason: Reason(err), Err: err}
	}

	return &Result{Output: r.output}, nil
}

// Runs a single stage through its state machine: provision the environment,
// import the source tree if requested, execute the commands, and pull in
// artifacts from earlier stages.
func (r *run) runStage(ctx context.Context, stage manifest.Stage, ordinal int) error {
	slog.Info("building stage", "stage", stage.Name, "ordinal", ordinal+1)
	track := newStageTracker(stage.Name)

	if err := track.advance(stateProvisioning); err != nil {
		return err
	}
	env, err := r.provision(ctx, stage)
	if err != nil {
		track.fail()
		return err
	}

	if err := track.advance(stateImporting); err != nil {
		return err
	}
	if stage.Source {
		if err := r.importSource(ctx, env, stage); err != nil {
			track.fail()
			return err
		}
	}

	if err := track.advance(stateRunning); err != nil {
		return err
	}
	if err := r.runCommands(ctx, env, stage); err != nil {
		track.fail()
		return err
	}
	if err := r.extract(ctx, env, stage); err != nil {
		track.fail()
		return err
	}

	return track.advance(stateSucceeded)
}

// Stops the terminal stage and exports its filesystem state as the
// deliverable.
func (r *run) export(ctx context.Context, terminal manifest.Stage) error {
	env := r.stages[terminal.Name]

	if err := env.Stop(ctx); err != nil {
		return err
	}

	return env.Export(ctx, r.output, terminal.Entrypoint)
}

// Destroys all stage environments.
//
// Runs on a context detached from cancellation so that teardown still
// happens when the invocation itself was cancelled.
func (r *run) destroyEnvironments(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, env := range r.envs {
		env.Destroy(ctx)
	}
}

// Returns a unique environment ID for a stage, scoped to this resource.
func (r *run) environmentID(stage string) string {
	return fmt.Sprintf("%s-stage-%s", r.name, stage)
}

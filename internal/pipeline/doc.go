// Package pipeline executes resolved pipeline manifests against an engine.
//
// A pipeline is an ordered sequence of stages, each backed by an isolated
// environment created from a base image. For every stage the engine
// provisions the environment and installs its packages, imports the source
// tree when requested, runs the stage's commands in order, and pulls in
// artifacts from earlier stages. The terminal stage's filesystem is exported
// as the deliverable.
//
// Control flow is strictly linear and every error is fatal: the first
// failing step aborts the run, later stages never start, and no partial
// deliverable is produced. Stage execution follows the state machine
// PENDING, PROVISIONING, IMPORTING, RUNNING, then SUCCEEDED or FAILED; no
// retries are performed, retry policy belongs to the caller. All stage
// environments are destroyed when the run returns.
//
// Environment operations are delegated to the [Engine] interface, backed by
// the runtime package in production.
//
// Example usage:
//
//	result, err := pipeline.Run(ctx, pipeline.NewEngine(rt), pipeline.Options{
//	    Pipeline: p,
//	    Name:     "my-service",
//	    Source:   ".",
//	    Output:   "dist",
//	})
//	if err != nil {
//	    return err
//	}
package pipeline

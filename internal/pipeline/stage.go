package pipeline

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sort"

	"github.com/masonbuild/mason/internal/manifest"
	"github.com/masonbuild/mason/internal/runtime"
)

const (

	// Shell used for provisioning and run commands.
	defaultShell = "/bin/sh"

	// Package install command used when a stage declares no installer.
	defaultInstaller = "apt-get install -y"

	// Staging directory inside an environment for atomic source imports.
	importStaging = "/tmp/.mason-import"
)

// Provisions a stage environment: starts it from the stage's base and
// installs the declared packages.
//
// Packages are installed one at a time so a failure can name the first
// failing package. Any failure is fatal; the half-provisioned environment
// is never handed to later steps and is destroyed with the rest of the run.
func (r *run) provision(ctx context.Context, stage manifest.Stage) (Environment, error) {
	env, err := r.eng.Start(ctx, stage.From, r.environmentID(stage.Name))
	if err != nil {
		return nil, &ProvisionError{Base: stage.From, Err: err}
	}

	r.envs = append(r.envs, env)
	r.stages[stage.Name] = env

	installer := stage.Installer
	if installer == "" {
		installer = defaultInstaller
	}

	for _, pkg := range stage.Packages {
		result, err := env.Exec(ctx, defaultShell, installer+" "+pkg, nil, "")
		if err != nil {
			return nil, &ProvisionError{Base: stage.From, Package: pkg, Err: err}
		}
		if result.ExitCode != 0 {
			return nil, &ProvisionError{
				Base:    stage.From,
				Package: pkg,
				Err:     fmt.Errorf("exit code %d: %s", result.ExitCode, capturedOutput(result)),
			}
		}
		slog.Debug("package installed", "stage", stage.Name, "package", pkg)
	}

	return env, nil
}

// Imports the invocation's source tree into the environment at the stage's
// workdir.
//
// The tree is streamed as a tar archive into a staging directory and renamed
// into place, so later steps observe either the whole tree or none of it.
// Relative structure and file modes are preserved by the tar headers.
func (r *run) importSource(ctx context.Context, env Environment, stage manifest.Stage) error {
	info, err := os.Stat(r.source)
	if err != nil {
		return &ImportError{Source: r.source, Err: err}
	}
	if !info.IsDir() {
		return &ImportError{Source: r.source, Err: fmt.Errorf("not a directory")}
	}

	slog.Debug("importing source tree", "stage", stage.Name, "source", r.source, "dest", stage.Workdir)

	if err := env.MkdirAll(ctx, importStaging); err != nil {
		return &ImportError{Source: r.source, Err: err}
	}

	base := path.Base(stage.Workdir)

	pr, pw := io.Pipe()
	// Closing the read end unblocks the writer goroutine if CopyTo bails
	// before draining the stream.
	defer pr.Close()

	go func() {
		tw := tar.NewWriter(pw)
		err := writeDirToTar(tw, r.source, base)
		tw.Close()
		pw.CloseWithError(err)
	}()

	if err := env.CopyTo(ctx, pr, importStaging); err != nil {
		return &ImportError{Source: r.source, Err: err}
	}

	// Swap the staged tree into place.
	for _, step := range []func() error{
		func() error { return env.MkdirAll(ctx, path.Dir(stage.Workdir)) },
		func() error { return env.Remove(ctx, stage.Workdir) },
		func() error { return env.Move(ctx, path.Join(importStaging, base), stage.Workdir) },
		func() error { return env.Remove(ctx, importStaging) },
	} {
		if err := step(); err != nil {
			return &ImportError{Source: r.source, Err: err}
		}
	}

	return nil
}

// Executes the stage's commands in declared order.
//
// Each command inherits the filesystem state left by the previous one. The
// first non-zero exit halts the stage; remaining commands are not attempted,
// since they may assume their predecessors succeeded.
func (r *run) runCommands(ctx context.Context, env Environment, stage manifest.Stage) error {
	for _, command := range stage.Run {
		slog.Debug("run", "stage", stage.Name, "command", command)

		result, err := env.Exec(ctx, defaultShell, command, environ(stage.Env), stage.Workdir)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return &BuildFailure{
				Stage:    stage.Name,
				Command:  command,
				ExitCode: result.ExitCode,
				Output:   capturedOutput(result),
			}
		}
	}

	return nil
}

// Formats a stage's environment variables as "key=value" strings, sorted
// for deterministic process specs.
func environ(env map[string]string) []string {
	entries := make([]string, 0, len(env))
	for k, v := range env {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	return entries
}

// Returns the diagnostic output of a command, preferring stderr.
func capturedOutput(result *runtime.ExecResult) string {
	if result.Stderr != "" {
		return result.Stderr
	}
	return result.Stdout
}

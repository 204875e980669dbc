package cli

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/masonbuild/mason/internal/manifest"
	"github.com/masonbuild/mason/internal/pipeline"
	"github.com/masonbuild/mason/internal/runtime"
)

// Represents the 'mason build' command.
type BuildCmd struct {
	ManifestPath string            `arg:"" name:"manifest" help:"Path to the pipeline manifest." type:"existingfile"`
	Source       string            `short:"C" default:"." help:"Source tree imported into source stages."`
	Output       string            `short:"o" default:"dist" help:"Directory for the exported deliverable."`
	Name         string            `short:"n" help:"Resource name, used as a prefix for environment IDs. Defaults to the manifest's directory name."`
	Set          map[string]string `help:"Override a build parameter." placeholder:"NAME=VALUE"`
	Address      string            `help:"Containerd socket address." default:"/run/containerd/containerd.sock"`
	Namespace    string            `help:"Containerd namespace." default:"mason"`
}

// Executes the build command.
//
// Loads the manifest with the given parameter overrides and runs the
// pipeline to completion. The process exits non-zero if any stage fails.
func (c *BuildCmd) Run(ctx context.Context) error {
	p, err := manifest.Load(c.ManifestPath, c.Set)
	if err != nil {
		return err
	}

	name := c.Name
	if name == "" {
		abs, err := filepath.Abs(c.ManifestPath)
		if err != nil {
			return err
		}
		name = filepath.Base(filepath.Dir(abs))
	}

	rt, err := runtime.New(c.Address, c.Namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := pipeline.Run(ctx, pipeline.NewEngine(rt), pipeline.Options{
		Pipeline: p,
		Name:     name,
		Source:   c.Source,
		Output:   c.Output,
	})
	if err != nil {
		return err
	}

	slog.Info("pipeline succeeded", "output", result.Output)
	return nil
}

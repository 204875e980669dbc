package runtime

import (
	"context"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// A running stage environment backed by a containerd container.
//
// Each environment exclusively owns its filesystem state for the duration
// of its stage. Other stages read from it only through [Environment.CopyFrom].
type Environment struct {
	client *containerd.Client // Containerd client for managing the container.
	id     string             // Unique identifier, used as the containerd container ID.
}

// Returns the environment's identifier.
func (e *Environment) ID() string {
	return e.id
}

// Stops the environment's task.
//
// The running task is killed and deleted; the container metadata and its
// snapshot are preserved so the filesystem state can still be exported.
// Stopping an already-stopped environment is not an error.
func (e *Environment) Stop(ctx context.Context) error {
	ctr, err := e.client.LoadContainer(ctx, e.id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return wrapRuntime(err)
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return wrapRuntime(err)
	}

	task.Kill(ctx, syscall.SIGKILL)
	if _, err := task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
		return wrapRuntime(err)
	}

	return nil
}

// Removes the environment and its resources.
//
// The task is killed and the container is removed from containerd along
// with its snapshot. After destruction the handle is invalid.
func (e *Environment) Destroy(ctx context.Context) {
	ctr, err := e.client.LoadContainer(ctx, e.id)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Warn("failed to load environment for destruction", "id", e.id, "error", err)
		}
		return
	}

	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}

	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete environment during destruction", "id", e.id, "error", err)
	}
}

// Creates the containerd container with the standard stage configuration.
func (e *Environment) create(ctx context.Context, image containerd.Image) (containerd.Container, error) {
	return e.client.NewContainer(ctx, e.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(e.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(
			oci.WithDefaultSpecForPlatform(hostPlatform()),
			oci.WithImageConfig(image),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
			oci.WithProcessArgs("sleep", "infinity"),
		),
	)
}

// Starts the environment's long-running task with no attached IO.
func (e *Environment) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Removes an existing container with this ID, if one exists.
//
// Any running task is killed and the container is deleted along with its
// snapshot. This is a no-op when no container with the ID is found.
func (e *Environment) remove(ctx context.Context) {
	existing, err := e.client.LoadContainer(ctx, e.id)
	if err != nil {
		return
	}
	if task, err := existing.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}
	existing.Delete(ctx, containerd.WithSnapshotCleanup)
}

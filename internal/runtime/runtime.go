package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
)

const (

	// Snapshotter used for environment filesystems. fuse-overlayfs provides
	// overlay semantics without requiring root privileges (no mount(2)),
	// allowing mason to run as a regular user.
	snapshotter = "fuse-overlayfs"

	// OCI runtime shim for running environments.
	ociRuntime = "io.containerd.runc.v2"
)

// Manages the containerd client and creates stage environments.
type Runtime struct {
	client *containerd.Client // Containerd client for image and container operations.
}

// Creates a runtime connected to the containerd socket at the given address.
//
// The namespace scopes all containerd operations to a single tenant. The
// runtime must be closed when no longer needed.
func New(address, namespace string) (*Runtime, error) {
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, wrapRuntime(err)
	}
	return &Runtime{client: client}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Starts a fresh environment from a base identifier.
//
// The base names either an OCI archive on disk or an image tag already
// present in the content store. Archives are imported and tagged under a
// deterministic name derived from the path, so re-provisioning from the
// same archive reuses the stored image; correctness never depends on that
// caching. The environment runs a long-lived task (sleep infinity) so that
// subsequent Exec calls have a running process to attach to. Any stale
// environment with the same ID from a previous run is removed first.
func (rt *Runtime) Start(ctx context.Context, base, id string) (*Environment, error) {
	tag, err := rt.resolveBase(ctx, base)
	if err != nil {
		return nil, err
	}

	env := &Environment{client: rt.client, id: id}
	env.remove(ctx)

	image, err := rt.image(ctx, tag)
	if err != nil {
		return nil, wrapRuntime(err)
	}

	ctr, err := env.create(ctx, image)
	if err != nil {
		return nil, wrapRuntime(err)
	}

	if err := env.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, wrapRuntime(err)
	}

	slog.Debug("environment started", "id", id, "base", base)

	return env, nil
}

// Resolves a base identifier to an image tag ready for container creation.
//
// A base naming a readable file is treated as an OCI archive and imported.
// Anything else must already exist as a tag in the image store.
func (rt *Runtime) resolveBase(ctx context.Context, base string) (string, error) {
	if _, err := os.Stat(base); err == nil {
		return rt.importArchive(ctx, base)
	}

	if _, err := rt.client.ImageService().Get(ctx, base); err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: %q", ErrUnknownBase, base)
		}
		return "", wrapRuntime(err)
	}

	return base, nil
}

// Imports an OCI archive into the content store and unpacks it for the host
// platform, returning the deterministic tag it was stored under.
//
// The archive must contain exactly one image. Multi-platform archives are
// supported (a single OCI index with per-platform manifests); the host
// manifest is selected during unpack.
func (rt *Runtime) importArchive(ctx context.Context, path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", wrapRuntime(err)
	}
	defer fh.Close()

	imported, err := rt.client.Import(ctx, fh)
	if err != nil {
		return "", wrapRuntime(err)
	}

	// Import returns one record per image in the archive's index.json. A
	// multi-platform archive still has a single entry; multiple records
	// would mean multiple unrelated images.
	if len(imported) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyArchive, path)
	} else if len(imported) > 1 {
		return "", fmt.Errorf("%w: %s", ErrMultipleImages, path)
	}

	tag := imageTag(path)
	if err := rt.tag(ctx, imported[0], tag); err != nil {
		return "", wrapRuntime(err)
	}

	image, err := rt.image(ctx, tag)
	if err != nil {
		return "", wrapRuntime(err)
	}
	if err := image.Unpack(ctx, snapshotter); err != nil {
		return "", wrapRuntime(err)
	}

	return tag, nil
}

// Tags an imported image under a deterministic name.
//
// Updates the tag if it already exists. Removes the source record when its
// name differs from the tag to avoid duplicates.
func (rt *Runtime) tag(ctx context.Context, source images.Image, tag string) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: source.Target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	if source.Name != tag {
		_ = is.Delete(ctx, source.Name)
	}

	return nil
}

// Looks up a tagged image and selects the manifest for the host platform.
func (rt *Runtime) image(ctx context.Context, tag string) (containerd.Image, error) {
	p, err := platforms.Parse(hostPlatform())
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Returns the OCI platform string for the host architecture.
func hostPlatform() string {
	return "linux/" + goruntime.GOARCH
}

// Produces a containerd image tag from an archive path.
//
// The path is hashed so the tag is always a valid OCI reference regardless
// of which characters the path contains.
func imageTag(path string) string {
	h := sha256.Sum256([]byte(path))
	return fmt.Sprintf("base/%s:latest", hex.EncodeToString(h[:]))
}

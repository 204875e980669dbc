// Package runtime manages stage environments backed by containerd.
//
// A [Runtime] connects to a containerd daemon and turns base-environment
// identifiers into running [Environment] values. Bases naming OCI archives
// are imported into the content store, tagged with a deterministic content
// hash, and unpacked for the host platform; bases naming an existing tag
// are used directly.
//
// Each [Environment] wraps a running containerd task. Commands can be
// executed inside it, files can be copied in and out as tar streams, and
// the final filesystem state can be committed and exported as a new OCI
// archive. Environments should be destroyed when no longer needed to
// release their snapshot and task resources.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "mason")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	env, err := rt.Start(ctx, "images/base.tar", "build-1")
//	if err != nil {
//	    return err
//	}
//	defer env.Destroy(ctx)
//
//	result, err := env.Exec(ctx, "/bin/sh", "make release", nil, "/opt/app")
//	if err != nil {
//	    return err
//	}
//
//	if err := env.Export(ctx, "dist", []string{"/usr/local/bin/app"}); err != nil {
//	    return err
//	}
package runtime

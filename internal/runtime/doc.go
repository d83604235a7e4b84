// Package runtime manages containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon and provides image
// resolution and container creation. Base images are either pulled from
// a registry or imported from a local OCI archive, tagged, and unpacked
// for the target platform. Build containers run a long-lived idle task
// so commands can be executed against them; run containers execute the
// image's configured command in the foreground and report its exit code.
//
// Each [Container] wraps a containerd task. Commands can be executed
// inside the container, files can be copied in as tar streams, and the
// final filesystem state can be committed and exported as a new OCI
// archive with the accumulated image configuration applied. When a
// container is no longer needed it should be destroyed to release its
// snapshot and task resources.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "kilnd")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	tag, err := rt.PullImage(ctx, "docker.io/library/python:3.13-slim", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//
//	ctr, err := rt.StartFromTag(ctx, tag, "bake-1", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	result, err := ctr.Exec(ctx, "/bin/sh", "echo hello", nil, "")
//	if err != nil {
//	    return err
//	}
//
//	err = ctr.Export(ctx, "dist", runtime.ExportConfig{Cmd: []string{"start"}})
package runtime

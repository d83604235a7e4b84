package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Exit code reported when the image's configured command cannot be
// resolved to an executable, mirroring the shell's command-not-found
// convention. Distinguishes a resolution failure from an error returned
// by the command itself.
const UnresolvedExitCode = 127

// Runs the image's configured command in the foreground and returns its
// exit code.
//
// A container is created from the tag without overriding the image's
// process configuration, so the command, working directory, and
// environment baked into the image config apply as-is. The task runs
// attached to the given streams and is waited on until it exits. When the
// command cannot be resolved to an executable, the returned error wraps
// [ErrEntrypoint] and the exit code is [UnresolvedExitCode]; any other
// exit code is whatever the command returned. Cancelling the context
// sends SIGTERM to the task and waits for it to exit.
//
// The container and its snapshot are removed when the run completes; the
// image is left in place.
func (rt *Runtime) Run(ctx context.Context, tag, id string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	platform := defaultPlatform()

	c := &Container{
		client:   rt.client,
		id:       id,
		platform: platform,
	}

	c.remove(ctx)

	image, err := rt.resolveImage(ctx, tag, platform)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRuntime, err)
	}

	ctr, err := c.createForeground(ctx, image)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRuntime, err)
	}
	defer ctr.Delete(context.Background(), containerd.WithSnapshotCleanup)

	slog.Debug("running container", "id", id, "image", tag)

	return c.runTask(ctx, ctr, stdin, stdout, stderr)
}

// Creates a containerd container that runs the image's own command.
//
// Unlike the build configuration, the process args are not overridden:
// the OCI spec inherits the command, working directory, and environment
// from the image config.
func (c *Container) createForeground(ctx context.Context, image containerd.Image) (containerd.Container, error) {
	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(
			oci.WithDefaultSpecForPlatform(c.platform),
			oci.WithImageConfig(image),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
		),
	)
}

// Starts the container's primary task attached to the given streams and
// waits for it to exit.
//
// Task creation and start both surface command resolution failures from
// the OCI runtime; those are classified as [ErrEntrypoint] with exit code
// [UnresolvedExitCode]. The task is deleted before returning.
func (c *Container) runTask(ctx context.Context, ctr containerd.Container, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	task, err := ctr.NewTask(ctx, cio.NewCreator(cio.WithStreams(stdin, stdout, stderr)))
	if err != nil {
		return classifyStartError(err)
	}
	defer task.Delete(context.Background(), containerd.WithProcessKill)

	statusC, err := task.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRuntime, err)
	}

	if err := task.Start(ctx); err != nil {
		return classifyStartError(err)
	}

	select {
	case <-ctx.Done():
		task.Kill(context.Background(), syscall.SIGTERM)
		exit := <-statusC
		code, _, _ := exit.Result()
		return int(code), nil
	case exit := <-statusC:
		code, _, err := exit.Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRuntime, err)
		}
		return int(code), nil
	}
}

// Maps a task creation or start failure onto the error taxonomy.
//
// A failure caused by an unresolvable executable becomes [ErrEntrypoint]
// with the command-not-found exit code; everything else is a plain
// runtime error.
func classifyStartError(err error) (int, error) {
	if isExecNotFound(err) {
		return UnresolvedExitCode, fmt.Errorf("%w: %v", ErrEntrypoint, err)
	}
	return 0, fmt.Errorf("%w: %v", ErrRuntime, err)
}

// Reports whether an OCI runtime error indicates the configured command
// could not be resolved to an executable.
//
// The OCI runtime does not return a structured error for this case; the
// message is matched against the phrasings runc emits for a missing
// command word or a missing interpreter path.
func isExecNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "no such file or directory")
}

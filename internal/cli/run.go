package cli

import (
	"context"
	"errors"
	"os"

	"github.com/kilnhq/kilnd/internal/runtime"
)

// Represents the 'kilnd run' command.
type RunCmd struct {
	Archive    string `arg:"" type:"existingfile" help:"Baked OCI archive to run."`
	Name       string `default:"kilnd-run" help:"Container name for the run."`
	Containerd string `placeholder:"PATH" help:"Containerd socket address."`
	Namespace  string `placeholder:"NAME" help:"Containerd namespace."`
}

// Executes the run command.
//
// Imports the archive and runs its configured entry point in the foreground
// with the terminal's streams attached. The container's exit code becomes
// the process exit code, including the command-not-found code when the
// entry point does not resolve inside the image.
func (c *RunCmd) Run(ctx context.Context) error {
	rt, err := runtime.New(c.Containerd, c.Namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	tag := runtime.ArchiveTag(c.Archive)
	if err := rt.ImportImage(ctx, c.Archive, tag); err != nil {
		return err
	}

	code, err := rt.Run(ctx, tag, c.Name, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		if errors.Is(err, runtime.ErrEntrypoint) {
			return &ExitError{Code: code, Err: err}
		}
		return err
	}

	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

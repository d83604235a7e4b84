package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// The container surface the pipeline builds against.
//
// Satisfied by [runtime.Container]; narrowed to the operations stages use so
// tests can substitute a recording fake.
type container interface {
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (*runtime.ExecResult, error)
	MkdirAll(ctx context.Context, path string) error
	CopyTo(ctx context.Context, r io.Reader, destDir string) error
}

// Controls recipe execution.
type Options struct {
	Recipe    *manifest.Recipe // Recipe to bake.
	Output    string           // Directory for the exported image.
	Root      string           // Directory containing the recipe, for resolving context and copy sources.
	Platforms []string         // Target platforms (e.g., ["linux/amd64"]). Defaults to host.
}

// Returned after a successful bake.
type Result struct {
	Output string // Directory containing the exported image.
}

// Bakes a recipe against the container runtime.
//
// The recipe is validated and the entry point preflight runs before any
// container is started, so a recipe that cannot produce a runnable image
// fails without touching containerd. Stages then run in sequence for each
// target platform and the result is exported to the output directory.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	if err := opts.Recipe.Validate(); err != nil {
		return nil, err
	}

	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{"linux/" + goruntime.GOARCH}
	}

	slog.Info("baking recipe",
		"name", opts.Recipe.Name,
		"output", opts.Output,
		"platforms", opts.Platforms,
	)

	if opts.Recipe.App.VerifyEntrypoint() {
		contextDir := opts.Recipe.App.Context
		if !filepath.IsAbs(contextDir) {
			contextDir = filepath.Join(opts.Root, contextDir)
		}
		if err := checkEntrypoint(contextDir, opts.Recipe.App.Entrypoint); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileSystemOperation, err)
	}

	return newPipeline(rt, opts).bake(ctx)
}

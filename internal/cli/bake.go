package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/kilnhq/kilnd/internal/build"
	"github.com/kilnhq/kilnd/internal/history"
	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Represents the 'kilnd bake' command.
type BakeCmd struct {
	File       string   `short:"f" default:"kiln.toml" type:"existingfile" help:"Recipe file to bake."`
	Output     string   `short:"o" default:"dist" help:"Output directory for the image archive."`
	Platforms  []string `short:"p" placeholder:"OS/ARCH" help:"Target platforms. Defaults to the host platform."`
	Containerd string   `placeholder:"PATH" help:"Containerd socket address."`
	Namespace  string   `placeholder:"NAME" help:"Containerd namespace."`
}

// Executes the bake command.
//
// Loads the recipe, bakes it against containerd, and appends the outcome to
// the local ledger. Relative paths in the recipe resolve against the recipe
// file's directory.
func (c *BakeCmd) Run(ctx context.Context) error {
	rec, err := manifest.Load(c.File)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(c.File)
	if err != nil {
		return err
	}
	root := filepath.Dir(abs)

	platforms := c.Platforms
	if len(platforms) == 0 {
		platforms = []string{"linux/" + goruntime.GOARCH}
	}

	rt, err := runtime.New(c.Containerd, c.Namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	started := time.Now()
	result, err := build.Run(ctx, rt, build.Options{
		Recipe:    rec,
		Output:    c.Output,
		Root:      root,
		Platforms: platforms,
	})

	recordBake(rec.Name, c.Output, platforms, started, err)

	if err != nil {
		return err
	}

	slog.Info("bake complete", "output", result.Output)
	return nil
}

// Appends the bake outcome to the local ledger.
//
// Ledger failures are reported but never fail the bake.
func recordBake(name, output string, platforms []string, started time.Time, bakeErr error) {
	ledger, err := history.Open(paths.Ledger())
	if err != nil {
		slog.Warn("failed to open bake ledger", "error", err)
		return
	}
	defer ledger.Close()

	rec := history.Record{
		Name:      name,
		Output:    output,
		Platforms: strings.Join(platforms, ","),
		Duration:  time.Since(started),
		BakedAt:   started,
	}
	if bakeErr != nil {
		rec.Error = bakeErr.Error()
	}

	if _, err := ledger.Append(rec); err != nil {
		slog.Warn("failed to record bake", "error", err)
	}
}

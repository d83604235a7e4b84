package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Holds shared state for baking all platforms of a recipe.
type pipeline struct {
	rt         *runtime.Runtime     // Container runtime for image and container operations.
	recipe     *manifest.Recipe     // Recipe being baked.
	root       string               // Directory containing the recipe, root for resolving context and copy sources.
	output     string               // Output directory for the final image archive.
	platforms  []string             // Target platforms to bake for.
	containers []*runtime.Container // Build containers across all platforms, destroyed after the bake completes.
}

// Creates a new [pipeline] from the given options.
func newPipeline(rt *runtime.Runtime, opts Options) *pipeline {
	return &pipeline{
		rt:        rt,
		recipe:    opts.Recipe,
		root:      opts.Root,
		output:    opts.Output,
		platforms: opts.Platforms,
	}
}

// Bakes the recipe end-to-end against the container runtime.
//
// Each target platform is baked independently. The stage sequence runs in
// order for each platform and the result is exported to the platform's
// output directory. All build containers are destroyed when the bake
// completes, successfully or not.
func (p *pipeline) bake(ctx context.Context) (*Result, error) {
	defer p.destroyContainers(ctx)

	for _, platform := range p.platforms {
		if err := p.bakePlatform(ctx, platform); err != nil {
			return nil, err
		}
	}

	return &Result{Output: p.output}, nil
}

// Bakes the recipe for a single platform.
//
// The base image is resolved and a build container started from it, then
// each stage runs in sequence, threading the layer state through. The final
// layer is applied to the exported image's config. The first stage error
// aborts the bake; nothing is exported for a failed platform.
func (p *pipeline) bakePlatform(ctx context.Context, platform string) error {
	slog.Info("baking platform", "platform", platform)

	output := p.platformOutput(platform)
	if err := os.MkdirAll(output, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %v", ErrFileSystemOperation, err)
	}

	ctr, err := p.startBase(ctx, platform)
	if err != nil {
		return fmt.Errorf("%w: platform %s: %w", ErrBuild, platform, err)
	}
	p.containers = append(p.containers, ctr)

	l := newLayer()
	for _, st := range p.stages() {
		slog.Info("running stage", "stage", st.name, "platform", platform)

		l, err = st.run(ctx, ctr, l)
		if err != nil {
			return fmt.Errorf("%w: platform %s, stage %s: %w", ErrBuild, platform, st.name, err)
		}
	}

	if err := ctr.Stop(ctx); err != nil {
		return fmt.Errorf("%w: platform %s: %w", ErrBuild, platform, err)
	}

	if err := ctr.Export(ctx, output, l.exportConfig()); err != nil {
		return fmt.Errorf("%w: platform %s: %w", ErrBuild, platform, err)
	}

	return nil
}

// Returns the stage sequence for this recipe.
//
// Provisioning is omitted when the recipe does not request it, and
// entry-point verification when the recipe opts out.
func (p *pipeline) stages() []stage {
	var stages []stage

	if p.recipe.Provision.Enabled() {
		stages = append(stages, stage{"provision", p.provisionStage})
	}

	stages = append(stages,
		stage{"python", p.pythonStage},
		stage{"app", p.appStage},
	)

	if p.recipe.App.VerifyEntrypoint() {
		stages = append(stages, stage{"verify", p.verifyStage})
	}

	return stages
}

// Resolves the base image and starts the build container for a platform.
//
// Archive paths are imported into the content store; registry references are
// pulled. Either way the image is unpacked for the platform and a detached
// build container is started from it.
func (p *pipeline) startBase(ctx context.Context, platform string) (*runtime.Container, error) {
	base := p.recipe.Base
	id := p.containerID(platform)

	if base.IsArchive() {
		path := base.Image
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.root, path)
		}
		return p.rt.StartContainer(ctx, path, id, platform)
	}

	tag, err := p.rt.PullImage(ctx, base.Image, platform)
	if err != nil {
		return nil, err
	}

	return p.rt.StartFromTag(ctx, tag, id, platform)
}

// Destroys all build containers.
func (p *pipeline) destroyContainers(ctx context.Context) {
	for _, ctr := range p.containers {
		ctr.Destroy(ctx)
	}
}

// Returns a unique container ID for a platform's build container, scoped to
// this recipe.
func (p *pipeline) containerID(platform string) string {
	return fmt.Sprintf("%s-%s-bake", p.recipe.Name, platformSlug(platform))
}

// Returns the output directory for a specific platform.
//
// When baking for a single platform, the output directory is left as-is
// to preserve the {output}/image.tar convention. For multi-platform bakes,
// each platform gets a subdirectory (e.g., {output}/linux-amd64).
func (p *pipeline) platformOutput(platform string) string {
	if len(p.platforms) == 1 {
		return p.output
	}
	return filepath.Join(p.output, platformSlug(platform))
}

// Converts a platform string to a filesystem-safe slug.
//
// Replaces slashes with dashes (e.g., "linux/amd64" becomes "linux-amd64").
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}

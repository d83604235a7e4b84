package build

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// A named pipeline stage.
//
// Stages run strictly sequentially: each receives the layer produced by the
// previous stage and returns the next. The first error aborts the bake.
type stage struct {
	name string
	run  func(ctx context.Context, ctr container, l layer) (layer, error)
}

// Establishes trust in the vendor repository and installs its packages.
//
// The plan runs step by step, each gated on the previous; the first failure
// aborts the stage with that step's error class. Custom provisioning steps
// run after the plan completes, so they cannot rely on the transient tools,
// which have been purged by then.
func (p *pipeline) provisionStage(ctx context.Context, ctr container, l layer) (layer, error) {
	if err := runPlan(ctx, ctr, Plan(p.recipe.Provision)); err != nil {
		return layer{}, err
	}

	if len(p.recipe.Provision.Steps) > 0 {
		if err := executeSteps(ctx, ctr, p.recipe.Provision.Steps, newStepState(), p.root); err != nil {
			return layer{}, err
		}
	}

	return l, nil
}

// Executes the provisioning plan inside the build container.
func runPlan(ctx context.Context, ctr container, plan []PlanStep) error {
	for _, step := range plan {
		slog.Info("provision", "class", step.Class, "step", step.Description)

		result, err := ctr.Exec(ctx, defaultShell, step.Command, aptEnv, "")
		if err != nil {
			return fmt.Errorf("%w: %s: %v", step.Class.err(), step.Description, err)
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("%w: %s: exit code %d: %s", step.Class.err(), step.Description, result.ExitCode, strings.TrimSpace(result.Stderr))
		}
	}
	return nil
}

// Installs the Python package-manager tool.
func (p *pipeline) pythonStage(ctx context.Context, ctr container, l layer) (layer, error) {
	tool := p.recipe.Python.Installer
	slog.Info("installing package manager", "tool", tool)

	result, err := ctr.Exec(ctx, defaultShell, "pip install --no-cache-dir "+tool, nil, "")
	if err != nil {
		return layer{}, err
	}
	if result.ExitCode != 0 {
		return layer{}, fmt.Errorf("%w: install %s: exit code %d: %s", ErrResolve, tool, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	return l, nil
}

// Materializes the application tree in the workdir and installs it.
//
// The build context is streamed into the workdir, the install command runs
// there, then custom app steps run with the workdir as their default
// directory. The returned layer carries the workdir, the recipe's
// environment, and the entry point as the image command.
func (p *pipeline) appStage(ctx context.Context, ctr container, l layer) (layer, error) {
	app := p.recipe.App

	if err := ctr.MkdirAll(ctx, app.Workdir); err != nil {
		return layer{}, err
	}

	contextDir := app.Context
	if !filepath.IsAbs(contextDir) {
		contextDir = filepath.Join(p.root, contextDir)
	}
	if err := copyContext(ctx, ctr, contextDir, app.Workdir); err != nil {
		return layer{}, err
	}

	install := installCommand(p.recipe.Python.Installer, app.EditableInstall())
	slog.Info("installing application", "command", install)

	result, err := ctr.Exec(ctx, defaultShell, install, nil, app.Workdir)
	if err != nil {
		return layer{}, err
	}
	if result.ExitCode != 0 {
		return layer{}, fmt.Errorf("%w: %s: exit code %d: %s", ErrResolve, install, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	if len(app.Steps) > 0 {
		state := newStepState()
		state.workdir = app.Workdir
		if err := executeSteps(ctx, ctr, app.Steps, state, p.root); err != nil {
			return layer{}, err
		}
	}

	return l.withWorkdir(app.Workdir).withEnv(app.Env).withCmd(app.Entrypoint), nil
}

// Resolves the entry point inside the build container before export.
//
// Catches a missing or misdeclared console script at bake time instead of
// as an exit 127 at container start.
func (p *pipeline) verifyStage(ctx context.Context, ctr container, l layer) (layer, error) {
	ep := p.recipe.App.Entrypoint

	result, err := ctr.Exec(ctx, defaultShell, "command -v "+ep, nil, "")
	if err != nil {
		return layer{}, err
	}
	if result.ExitCode != 0 {
		return layer{}, fmt.Errorf("%w: entry point %q did not resolve in the baked image", ErrMetadata, ep)
	}

	return l, nil
}

// Renders the application install command for the configured installer.
//
// uv installs into the system interpreter explicitly; other installers are
// invoked with a plain install since the slim base images carry no active
// virtualenv.
func installCommand(installer string, editable bool) string {
	cmd := installer + " install"
	if installer == "uv" {
		cmd = "uv pip install --system"
	}
	if editable {
		cmd += " --editable"
	}
	return cmd + " ."
}

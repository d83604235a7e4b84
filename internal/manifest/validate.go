package manifest

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// Resource names become container ID prefixes and must stay within the
	// character set containerd accepts for identifiers.
	namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

	// Tool and entry-point names are interpolated into shell commands and
	// are restricted to plain command-word characters.
	tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_.+-]+$`)
)

// Checks the recipe for structural problems.
//
// Returns the first problem found, wrapped in [ErrRecipe]. Load calls this
// after applying defaults; callers constructing recipes in code should call
// it themselves before handing the recipe to the build pipeline.
func (r *Recipe) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrRecipe)
	}
	if !namePattern.MatchString(r.Name) {
		return fmt.Errorf("%w: name %q must be lowercase alphanumerics and dashes", ErrRecipe, r.Name)
	}

	if r.Base.Image == "" {
		return fmt.Errorf("%w: base.image is required", ErrRecipe)
	}

	if r.Provision.Enabled() {
		if err := r.Provision.validate(); err != nil {
			return err
		}
	}

	if !tokenPattern.MatchString(r.Python.Installer) {
		return fmt.Errorf("%w: python.installer %q is not a valid tool name", ErrRecipe, r.Python.Installer)
	}

	if err := r.App.validate(); err != nil {
		return err
	}

	return validateSteps("app.steps", r.App.Steps)
}

// Checks the provisioning section.
//
// The trust chain requires every link to be declared: packages to install,
// a key to fetch, and a repository descriptor that references that key.
func (p Provision) validate() error {
	if len(p.Packages) == 0 {
		return fmt.Errorf("%w: provision.packages is required when provisioning is configured", ErrRecipe)
	}
	for _, pkg := range p.Packages {
		if !tokenPattern.MatchString(pkg) {
			return fmt.Errorf("%w: provision.packages entry %q is not a valid package name", ErrRecipe, pkg)
		}
	}
	for _, pkg := range p.Transient {
		if !tokenPattern.MatchString(pkg) {
			return fmt.Errorf("%w: provision.transient entry %q is not a valid package name", ErrRecipe, pkg)
		}
	}

	if p.Key.URL == "" {
		return fmt.Errorf("%w: provision.key.url is required", ErrRecipe)
	}
	if !strings.HasPrefix(p.Key.URL, "https://") {
		return fmt.Errorf("%w: provision.key.url %q must use https", ErrRecipe, p.Key.URL)
	}
	if !path.IsAbs(p.Key.Path) {
		return fmt.Errorf("%w: provision.key.path %q must be absolute", ErrRecipe, p.Key.Path)
	}

	if p.Repository.URL == "" {
		return fmt.Errorf("%w: provision.repository.url is required", ErrRecipe)
	}
	if p.Repository.Codename == "" {
		return fmt.Errorf("%w: provision.repository.codename is required", ErrRecipe)
	}
	if p.Repository.Suite == "" {
		return fmt.Errorf("%w: provision.repository.suite is required (pin the tool-suite version line)", ErrRecipe)
	}
	if !path.IsAbs(p.Repository.Path) {
		return fmt.Errorf("%w: provision.repository.path %q must be absolute", ErrRecipe, p.Repository.Path)
	}

	return validateSteps("provision.steps", p.Steps)
}

// Checks the application section.
func (a App) validate() error {
	if a.Context == "" {
		return fmt.Errorf("%w: app.context is required", ErrRecipe)
	}
	if !path.IsAbs(a.Workdir) {
		return fmt.Errorf("%w: app.workdir %q must be absolute", ErrRecipe, a.Workdir)
	}
	if !tokenPattern.MatchString(a.Entrypoint) {
		return fmt.Errorf("%w: app.entrypoint %q is not a valid command name", ErrRecipe, a.Entrypoint)
	}
	return nil
}

// Checks a custom step list.
//
// A step is either an operation (run or copy, not both) or a standalone
// modifier; an empty step is rejected. Run commands are parsed for shell
// syntax errors so they fail at load time instead of mid-bake.
func validateSteps(section string, steps []Step) error {
	for i, step := range steps {
		if step.Run != "" && step.Copy != "" {
			return fmt.Errorf("%w: %s[%d]: run and copy are mutually exclusive", ErrRecipe, section, i)
		}
		if step.Run == "" && step.Copy == "" && step.Shell == "" && step.Workdir == "" && len(step.Env) == 0 {
			return fmt.Errorf("%w: %s[%d]: step is empty", ErrRecipe, section, i)
		}
		if step.Run != "" {
			if err := checkShellSyntax(step.Run); err != nil {
				return fmt.Errorf("%w: %s[%d]: %v", ErrRecipe, section, i, err)
			}
		}
		if step.Copy != "" && len(strings.Fields(step.Copy)) != 2 {
			return fmt.Errorf("%w: %s[%d]: copy %q must be \"src dest\"", ErrRecipe, section, i, step.Copy)
		}
	}
	return nil
}

// Parses a run command with the POSIX shell grammar, returning the syntax
// error if it does not parse.
func checkShellSyntax(src string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(src), "")
	return err
}

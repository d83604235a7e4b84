package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Reads and parses a recipe file.
//
// Defaults are applied and the recipe is validated before it is returned;
// a recipe that loads successfully is safe to hand to the build pipeline.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecipe, err)
	}
	return Parse(data)
}

// Parses a recipe from TOML source.
//
// Unknown fields are rejected so typos fail loudly instead of silently
// dropping configuration.
func Parse(data []byte) (*Recipe, error) {
	var rec Recipe

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecipe, err)
	}

	rec.applyDefaults()

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return &rec, nil
}

// Fills in defaulted fields the recipe omits.
//
// Provisioning defaults are only applied when the recipe requests
// provisioning, so a recipe without a provision section stays empty.
func (r *Recipe) applyDefaults() {
	if r.App.Context == "" {
		r.App.Context = DefaultContext
	}
	if r.App.Workdir == "" {
		r.App.Workdir = DefaultWorkdir
	}
	if r.App.Entrypoint == "" {
		r.App.Entrypoint = DefaultEntrypoint
	}
	if r.Python.Installer == "" {
		r.Python.Installer = DefaultInstaller
	}

	if !r.Provision.Enabled() {
		return
	}

	if len(r.Provision.Transient) == 0 {
		r.Provision.Transient = append([]string(nil), DefaultTransient...)
	}
	if len(r.Provision.Repository.Components) == 0 {
		r.Provision.Repository.Components = []string{"main"}
	}
	if len(r.Provision.Repository.Architectures) == 0 {
		r.Provision.Repository.Architectures = []string{"amd64"}
	}

	slug := repositorySlug(r.Provision.Repository.Suite, r.Name)
	if r.Provision.Key.Path == "" {
		r.Provision.Key.Path = "/usr/share/keyrings/" + slug + ".gpg"
	}
	if r.Provision.Repository.Path == "" {
		r.Provision.Repository.Path = "/etc/apt/sources.list.d/" + slug + ".list"
	}
}

// Derives a filename-safe slug for default key and descriptor paths.
//
// The tool-suite version line is preferred (e.g. "mongodb-org/8.0" becomes
// "mongodb-org-8.0") so the defaults match the vendor's own naming; the
// recipe name is the fallback.
func repositorySlug(suite, name string) string {
	s := suite
	if s == "" {
		s = name
	}
	return strings.ReplaceAll(s, "/", "-")
}

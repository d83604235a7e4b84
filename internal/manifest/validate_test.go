package manifest

import (
	"errors"
	"strings"
	"testing"
)

// Returns a minimal valid recipe with provisioning configured.
func validRecipe() *Recipe {
	rec := &Recipe{
		Name: "backup-bot",
		Base: Base{Image: "docker.io/library/python:3.13-slim"},
		Provision: Provision{
			Packages:  []string{"mongodb-database-tools"},
			Transient: []string{"wget", "gnupg", "ca-certificates"},
			Key: SigningKey{
				URL:  "https://pgp.mongodb.com/server-8.0.asc",
				Path: "/usr/share/keyrings/mongodb-org-8.0.gpg",
			},
			Repository: Repository{
				URL:           "https://repo.mongodb.org/apt/debian",
				Codename:      "bookworm",
				Suite:         "mongodb-org/8.0",
				Components:    []string{"main"},
				Architectures: []string{"amd64"},
				Path:          "/etc/apt/sources.list.d/mongodb-org-8.0.list",
			},
		},
		Python: Python{Installer: "uv"},
		App: App{
			Context:    ".",
			Workdir:    "/app",
			Entrypoint: "start",
		},
	}
	return rec
}

func TestValidateAcceptsValidRecipe(t *testing.T) {
	if err := validRecipe().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Recipe)
		detail string
	}{
		{
			name:   "missing name",
			mutate: func(r *Recipe) { r.Name = "" },
			detail: "name is required",
		},
		{
			name:   "uppercase name",
			mutate: func(r *Recipe) { r.Name = "BackupBot" },
			detail: "lowercase",
		},
		{
			name:   "missing base image",
			mutate: func(r *Recipe) { r.Base.Image = "" },
			detail: "base.image",
		},
		{
			name:   "provision without packages",
			mutate: func(r *Recipe) { r.Provision.Packages = nil },
			detail: "provision.packages",
		},
		{
			name:   "package name with shell metacharacters",
			mutate: func(r *Recipe) { r.Provision.Packages = []string{"tools; rm -rf /"} },
			detail: "not a valid package name",
		},
		{
			name:   "missing key url",
			mutate: func(r *Recipe) { r.Provision.Key.URL = "" },
			detail: "key.url",
		},
		{
			name:   "insecure key url",
			mutate: func(r *Recipe) { r.Provision.Key.URL = "http://pgp.mongodb.com/server-8.0.asc" },
			detail: "https",
		},
		{
			name:   "relative key path",
			mutate: func(r *Recipe) { r.Provision.Key.Path = "keyrings/mongo.gpg" },
			detail: "must be absolute",
		},
		{
			name:   "missing repository url",
			mutate: func(r *Recipe) { r.Provision.Repository.URL = "" },
			detail: "repository.url",
		},
		{
			name:   "missing codename",
			mutate: func(r *Recipe) { r.Provision.Repository.Codename = "" },
			detail: "codename",
		},
		{
			name:   "missing suite",
			mutate: func(r *Recipe) { r.Provision.Repository.Suite = "" },
			detail: "suite",
		},
		{
			name:   "relative descriptor path",
			mutate: func(r *Recipe) { r.Provision.Repository.Path = "sources.list.d/mongo.list" },
			detail: "must be absolute",
		},
		{
			name:   "bad installer token",
			mutate: func(r *Recipe) { r.Python.Installer = "uv && curl evil" },
			detail: "python.installer",
		},
		{
			name:   "relative workdir",
			mutate: func(r *Recipe) { r.App.Workdir = "app" },
			detail: "app.workdir",
		},
		{
			name:   "bad entrypoint token",
			mutate: func(r *Recipe) { r.App.Entrypoint = "start me" },
			detail: "app.entrypoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecipe()
			tt.mutate(rec)

			err := rec.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrRecipe) {
				t.Fatalf("error %v is not ErrRecipe", err)
			}
			if !strings.Contains(err.Error(), tt.detail) {
				t.Fatalf("error %q does not mention %q", err, tt.detail)
			}
		})
	}
}

func TestValidateSteps(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{
			name: "run step",
			step: Step{Run: "echo hello"},
		},
		{
			name: "copy step",
			step: Step{Copy: "scripts/init.sh /usr/local/bin/init.sh"},
		},
		{
			name: "standalone modifier",
			step: Step{Workdir: "/srv"},
		},
		{
			name:    "run and copy together",
			step:    Step{Run: "echo", Copy: "a b"},
			wantErr: true,
		},
		{
			name:    "empty step",
			step:    Step{},
			wantErr: true,
		},
		{
			name:    "shell syntax error",
			step:    Step{Run: "if [ -f /x ; then echo"},
			wantErr: true,
		},
		{
			name:    "copy with one token",
			step:    Step{Copy: "only-src"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSteps("provision.steps", []Step{tt.step})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrRecipe) {
					t.Fatalf("error %v is not ErrRecipe", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStepsInAppSection(t *testing.T) {
	rec := validRecipe()
	rec.App.Steps = []Step{{Run: "for do done"}}

	err := rec.Validate()
	if err == nil {
		t.Fatal("expected error for bad app step syntax")
	}
	if !strings.Contains(err.Error(), "app.steps[0]") {
		t.Fatalf("error %q does not locate the step", err)
	}
}

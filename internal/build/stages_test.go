package build

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kilnhq/kilnd/internal/manifest"
)

func testRecipe(t *testing.T) *manifest.Recipe {
	t.Helper()
	dir := t.TempDir()
	writeContextFile(t, dir, "pyproject.toml", "[project]\nname = \"demo\"\n\n[project.scripts]\nstart = \"demo:main\"\n")

	return &manifest.Recipe{
		Name:   "demo",
		Base:   manifest.Base{Image: "docker.io/library/python:3.13-slim"},
		Python: manifest.Python{Installer: "uv"},
		App: manifest.App{
			Context:    dir,
			Workdir:    "/app",
			Entrypoint: "start",
		},
	}
}

func TestPythonStageInstallsTool(t *testing.T) {
	p := &pipeline{recipe: testRecipe(t)}
	ctr := &fakeContainer{}

	l, err := p.pythonStage(context.Background(), ctr, newLayer())
	if err != nil {
		t.Fatalf("pythonStage: %v", err)
	}

	if !slices.Contains(ctr.commands, "pip install --no-cache-dir uv") {
		t.Fatalf("commands = %v, want pip install --no-cache-dir uv", ctr.commands)
	}
	if l.workdir != "" || len(l.cmd) != 0 {
		t.Fatalf("python stage must not touch the layer, got %+v", l)
	}
}

func TestPythonStageFailureIsResolveError(t *testing.T) {
	p := &pipeline{recipe: testRecipe(t)}
	ctr := &fakeContainer{failPrefix: "pip install", failStderr: "no matching distribution"}

	_, err := p.pythonStage(context.Background(), ctr, newLayer())
	if !errors.Is(err, ErrResolve) {
		t.Fatalf("err = %v, want ErrResolve", err)
	}
}

func TestAppStageInstallsApplication(t *testing.T) {
	rec := testRecipe(t)
	p := &pipeline{recipe: rec}
	ctr := &fakeContainer{}

	l, err := p.appStage(context.Background(), ctr, newLayer())
	if err != nil {
		t.Fatalf("appStage: %v", err)
	}

	if !slices.Contains(ctr.mkdirs, "/app") {
		t.Fatalf("mkdirs = %v, want /app", ctr.mkdirs)
	}
	if !slices.Contains(ctr.copies, "/app") {
		t.Fatalf("copies = %v, want context copied to /app", ctr.copies)
	}

	install := slices.Index(ctr.commands, "uv pip install --system --editable .")
	if install < 0 {
		t.Fatalf("commands = %v, want editable system install", ctr.commands)
	}
	if ctr.workdirs[install] != "/app" {
		t.Fatalf("install ran in %q, want /app", ctr.workdirs[install])
	}

	cfg := l.exportConfig()
	if cfg.WorkingDir != "/app" {
		t.Fatalf("layer workdir = %q, want /app", cfg.WorkingDir)
	}
	if len(cfg.Cmd) != 1 || cfg.Cmd[0] != "start" {
		t.Fatalf("layer cmd = %v, want [start]", cfg.Cmd)
	}
}

func TestAppStageCarriesEnv(t *testing.T) {
	rec := testRecipe(t)
	rec.App.Env = map[string]string{"PYTHONUNBUFFERED": "1"}
	p := &pipeline{recipe: rec}

	l, err := p.appStage(context.Background(), &fakeContainer{}, newLayer())
	if err != nil {
		t.Fatalf("appStage: %v", err)
	}

	if !slices.Contains(l.exportConfig().Env, "PYTHONUNBUFFERED=1") {
		t.Fatalf("layer env = %v, want PYTHONUNBUFFERED=1", l.exportConfig().Env)
	}
}

func TestAppStageRunsCustomStepsInWorkdir(t *testing.T) {
	rec := testRecipe(t)
	rec.App.Steps = []manifest.Step{{Run: "python -m compileall ."}}
	p := &pipeline{recipe: rec}
	ctr := &fakeContainer{}

	if _, err := p.appStage(context.Background(), ctr, newLayer()); err != nil {
		t.Fatalf("appStage: %v", err)
	}

	i := slices.Index(ctr.commands, "python -m compileall .")
	if i < 0 {
		t.Fatalf("commands = %v, want custom step", ctr.commands)
	}
	if ctr.workdirs[i] != "/app" {
		t.Fatalf("custom step ran in %q, want /app", ctr.workdirs[i])
	}
}

func TestVerifyStageResolvesEntrypoint(t *testing.T) {
	p := &pipeline{recipe: testRecipe(t)}
	ctr := &fakeContainer{}

	if _, err := p.verifyStage(context.Background(), ctr, newLayer()); err != nil {
		t.Fatalf("verifyStage: %v", err)
	}

	if !slices.Contains(ctr.commands, "command -v start") {
		t.Fatalf("commands = %v, want command -v start", ctr.commands)
	}
}

func TestVerifyStageMissingEntrypointIsMetadataError(t *testing.T) {
	p := &pipeline{recipe: testRecipe(t)}
	ctr := &fakeContainer{failPrefix: "command -v"}

	_, err := p.verifyStage(context.Background(), ctr, newLayer())
	if !errors.Is(err, ErrMetadata) {
		t.Fatalf("err = %v, want ErrMetadata", err)
	}
}

func TestProvisionStageRunsCustomStepsAfterPlan(t *testing.T) {
	rec := testRecipe(t)
	rec.Provision = testProvision()
	rec.Provision.Steps = []manifest.Step{{Run: "mongodump --version"}}
	p := &pipeline{recipe: rec}
	ctr := &fakeContainer{}

	if _, err := p.provisionStage(context.Background(), ctr, newLayer()); err != nil {
		t.Fatalf("provisionStage: %v", err)
	}

	custom := slices.Index(ctr.commands, "mongodump --version")
	if custom < 0 {
		t.Fatalf("commands = %v, want custom step", ctr.commands)
	}

	// Custom steps run after the full plan, including the transient purge.
	purge := slices.IndexFunc(ctr.commands, func(cmd string) bool {
		return strings.HasPrefix(cmd, "apt-get purge")
	})
	if purge < 0 || custom < purge {
		t.Fatalf("custom step at %d ran before purge at %d", custom, purge)
	}
}

func TestStageSequence(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*manifest.Recipe)
		want   []string
	}{
		{
			name:   "default recipe",
			mutate: func(r *manifest.Recipe) {},
			want:   []string{"python", "app", "verify"},
		},
		{
			name:   "with provisioning",
			mutate: func(r *manifest.Recipe) { r.Provision = testProvision() },
			want:   []string{"provision", "python", "app", "verify"},
		},
		{
			name: "verification disabled",
			mutate: func(r *manifest.Recipe) {
				off := false
				r.App.Verify = &off
			},
			want: []string{"python", "app"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecipe(t)
			tt.mutate(rec)
			p := &pipeline{recipe: rec}

			var names []string
			for _, st := range p.stages() {
				names = append(names, st.name)
			}
			if !slices.Equal(names, tt.want) {
				t.Fatalf("stages = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestInstallCommand(t *testing.T) {
	tests := []struct {
		name      string
		installer string
		editable  bool
		want      string
	}{
		{"uv editable", "uv", true, "uv pip install --system --editable ."},
		{"uv plain", "uv", false, "uv pip install --system ."},
		{"pip editable", "pip", true, "pip install --editable ."},
		{"pip plain", "pip", false, "pip install ."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := installCommand(tt.installer, tt.editable); got != tt.want {
				t.Fatalf("installCommand = %q, want %q", got, tt.want)
			}
		})
	}
}

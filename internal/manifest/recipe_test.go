package manifest

import "testing"

func TestSourceLine(t *testing.T) {
	repo := Repository{
		URL:           "https://repo.mongodb.org/apt/debian",
		Codename:      "bookworm",
		Suite:         "mongodb-org/8.0",
		Components:    []string{"main"},
		Architectures: []string{"amd64", "arm64"},
	}

	got := repo.SourceLine("/usr/share/keyrings/mongodb-org-8.0.gpg")
	want := "deb [ arch=amd64,arm64 signed-by=/usr/share/keyrings/mongodb-org-8.0.gpg ] " +
		"https://repo.mongodb.org/apt/debian bookworm/mongodb-org/8.0 main"
	if got != want {
		t.Fatalf("SourceLine =\n  %q\nwant\n  %q", got, want)
	}
}

func TestSourceLineMultipleComponents(t *testing.T) {
	repo := Repository{
		URL:           "https://repo.example.com/apt/ubuntu",
		Codename:      "jammy",
		Suite:         "tools/1.2",
		Components:    []string{"main", "extra"},
		Architectures: []string{"amd64"},
	}

	got := repo.SourceLine("/usr/share/keyrings/tools.gpg")
	want := "deb [ arch=amd64 signed-by=/usr/share/keyrings/tools.gpg ] " +
		"https://repo.example.com/apt/ubuntu jammy/tools/1.2 main extra"
	if got != want {
		t.Fatalf("SourceLine = %q, want %q", got, want)
	}
}

func TestDistribution(t *testing.T) {
	tests := []struct {
		name     string
		codename string
		suite    string
		want     string
	}{
		{
			name:     "codename with suite",
			codename: "bookworm",
			suite:    "mongodb-org/8.0",
			want:     "bookworm/mongodb-org/8.0",
		},
		{
			name:     "codename only",
			codename: "bookworm",
			want:     "bookworm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := Repository{Codename: tt.codename, Suite: tt.suite}
			if got := repo.Distribution(); got != tt.want {
				t.Fatalf("Distribution = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBaseIsArchive(t *testing.T) {
	tests := []struct {
		image string
		want  bool
	}{
		{image: "docker.io/library/python:3.13-slim", want: false},
		{image: "python:3.13-slim", want: false},
		{image: "dist/base/image.tar", want: true},
		{image: "./image.tar", want: true},
		{image: "/srv/images/base.tar", want: true},
		{image: "/srv/images/base", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			b := Base{Image: tt.image}
			if got := b.IsArchive(); got != tt.want {
				t.Fatalf("IsArchive(%q) = %v, want %v", tt.image, got, tt.want)
			}
		})
	}
}

func TestProvisionEnabled(t *testing.T) {
	var p Provision
	if p.Enabled() {
		t.Fatal("empty provision section reported as enabled")
	}

	p = Provision{Packages: []string{"mongodb-database-tools"}}
	if !p.Enabled() {
		t.Fatal("provision with packages reported as disabled")
	}

	p = Provision{Key: SigningKey{URL: "https://pgp.example.com/key.asc"}}
	if !p.Enabled() {
		t.Fatal("provision with a key reported as disabled")
	}
}

func TestTriStateDefaults(t *testing.T) {
	var key SigningKey
	if !key.Dearmored() {
		t.Fatal("unset dearmor should default to true")
	}

	f := false
	key.Dearmor = &f
	if key.Dearmored() {
		t.Fatal("explicit dearmor=false ignored")
	}

	var app App
	if !app.EditableInstall() {
		t.Fatal("unset editable should default to true")
	}
	if !app.VerifyEntrypoint() {
		t.Fatal("unset verify should default to true")
	}

	app.Editable = &f
	app.Verify = &f
	if app.EditableInstall() || app.VerifyEntrypoint() {
		t.Fatal("explicit false ignored")
	}
}

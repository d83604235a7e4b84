package build

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCopy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		workdir string
		src     string
		dest    string
		wantErr bool
	}{
		{
			name:  "absolute dest",
			input: "file.txt /opt/file.txt",
			src:   "file.txt",
			dest:  "/opt/file.txt",
		},
		{
			name:    "relative dest with workdir",
			input:   "file.txt out/",
			workdir: "/app",
			src:     "file.txt",
			dest:    "/app/out",
		},
		{
			name:    "relative dest without workdir",
			input:   "file.txt out/",
			wantErr: true,
		},
		{
			name:    "missing destination",
			input:   "file.txt",
			wantErr: true,
		},
		{
			name:    "too many tokens",
			input:   "a b c",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dest, err := parseCopy(tt.input, tt.workdir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertParseCopy(t, src, dest, tt.src, tt.dest)
		})
	}
}

func assertParseCopy(t *testing.T, gotSrc, gotDest, wantSrc, wantDest string) {
	t.Helper()
	if gotSrc != wantSrc {
		t.Errorf("src = %q, want %q", gotSrc, wantSrc)
	}
	if gotDest != wantDest {
		t.Errorf("dest = %q, want %q", gotDest, wantDest)
	}
}

func TestWriteDirToTar(t *testing.T) {
	dir := t.TempDir()
	writeContextFile(t, dir, "pyproject.toml", "[project]\nname = \"demo\"\n")
	writeContextFile(t, dir, filepath.Join("src", "demo", "__init__.py"), "")

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := writeDirToTar(tw, dir, "."); err != nil {
		t.Fatalf("writeDirToTar: %v", err)
	}
	tw.Close()

	entries := readTarNames(t, &buf)
	for _, want := range []string{"pyproject.toml", "src/demo/__init__.py"} {
		if !entries[want] {
			t.Errorf("archive missing entry %q (got %v)", want, entries)
		}
	}
}

func TestWriteDirToTarNestsUnderPrefix(t *testing.T) {
	dir := t.TempDir()
	writeContextFile(t, dir, "app.py", "print()\n")

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := writeDirToTar(tw, dir, "bundle"); err != nil {
		t.Fatalf("writeDirToTar: %v", err)
	}
	tw.Close()

	entries := readTarNames(t, &buf)
	if !entries["bundle/app.py"] {
		t.Errorf("archive missing entry bundle/app.py (got %v)", entries)
	}
}

func writeContextFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// Reads all entry names from a tar stream, normalizing the leading "./"
// produced by a "." prefix.
func readTarNames(t *testing.T, r io.Reader) map[string]bool {
	t.Helper()
	names := make(map[string]bool)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		name := filepath.ToSlash(filepath.Clean(hdr.Name))
		names[name] = true
	}
	return names
}

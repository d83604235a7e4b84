package build

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Project metadata read during the host-side preflight.
type pyproject struct {
	Project struct {
		Name    string            `toml:"name"`
		Scripts map[string]string `toml:"scripts"`
	} `toml:"project"`
}

// Checks that the build context declares the entry point before any
// container work starts.
//
// Reads pyproject.toml in the context directory and requires the entry point
// under [project.scripts]. A context missing the file or the script would
// bake an image whose command cannot resolve at container start; the
// preflight reports that as a metadata error up front.
func checkEntrypoint(contextDir, entrypoint string) error {
	path := filepath.Join(contextDir, "pyproject.toml")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: no pyproject.toml in build context %s", ErrMetadata, contextDir)
		}
		return fmt.Errorf("%w: %v", ErrMetadata, err)
	}

	var meta pyproject
	if err := toml.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMetadata, path, err)
	}

	if _, ok := meta.Project.Scripts[entrypoint]; !ok {
		return fmt.Errorf("%w: %s declares no [project.scripts] entry %q", ErrMetadata, path, entrypoint)
	}

	return nil
}

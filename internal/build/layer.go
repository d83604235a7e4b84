package build

import (
	"maps"
	"sort"

	"github.com/kilnhq/kilnd/internal/runtime"
)

// Image configuration accumulated while the pipeline runs.
//
// A layer value flows through the stage sequence: each stage receives the
// current layer and returns the next, never mutating the one it was
// given. The final layer is applied to the exported image's OCI config.
type layer struct {
	env     map[string]string
	workdir string
	cmd     []string
}

// Returns an empty starting layer.
func newLayer() layer {
	return layer{env: make(map[string]string)}
}

// Returns a copy of the layer with the given environment entries merged in.
func (l layer) withEnv(env map[string]string) layer {
	if len(env) == 0 {
		return l
	}
	next := l.clone()
	maps.Copy(next.env, env)
	return next
}

// Returns a copy of the layer with the working directory set.
func (l layer) withWorkdir(dir string) layer {
	next := l.clone()
	next.workdir = dir
	return next
}

// Returns a copy of the layer with the default command set.
func (l layer) withCmd(cmd ...string) layer {
	next := l.clone()
	next.cmd = append([]string(nil), cmd...)
	return next
}

// Returns a deep copy of the layer.
func (l layer) clone() layer {
	next := layer{
		env:     make(map[string]string, len(l.env)),
		workdir: l.workdir,
		cmd:     append([]string(nil), l.cmd...),
	}
	maps.Copy(next.env, l.env)
	return next
}

// Converts the layer into the configuration applied at export time.
//
// Environment entries are sorted so the exported image config is
// deterministic regardless of map iteration order.
func (l layer) exportConfig() runtime.ExportConfig {
	env := make([]string, 0, len(l.env))
	for k, v := range l.env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	return runtime.ExportConfig{
		Cmd:        l.cmd,
		WorkingDir: l.workdir,
		Env:        env,
	}
}

package build

import (
	"context"
	"io"
	"strings"

	"github.com/kilnhq/kilnd/internal/runtime"
)

// A container fake recording the operations stages perform against it.
//
// Exec calls whose command starts with failPrefix return failCode (or 1)
// and failStderr, letting a test fail one specific command.
type fakeContainer struct {
	commands   []string   // Commands passed to Exec, in order.
	envs       [][]string // Env slices passed to Exec, parallel to commands.
	workdirs   []string   // Workdirs passed to Exec, parallel to commands.
	mkdirs     []string   // Paths passed to MkdirAll.
	copies     []string   // Destination dirs passed to CopyTo.
	failPrefix string     // Command prefix that triggers a failure.
	failCode   int        // Exit code for failing commands; 0 means 1.
	failStderr string     // Stderr for failing commands.
}

func (f *fakeContainer) Exec(_ context.Context, _, command string, env []string, workdir string) (*runtime.ExecResult, error) {
	f.commands = append(f.commands, command)
	f.envs = append(f.envs, env)
	f.workdirs = append(f.workdirs, workdir)

	if f.failPrefix != "" && strings.HasPrefix(command, f.failPrefix) {
		code := f.failCode
		if code == 0 {
			code = 1
		}
		return &runtime.ExecResult{ExitCode: code, Stderr: f.failStderr}, nil
	}

	return &runtime.ExecResult{}, nil
}

func (f *fakeContainer) MkdirAll(_ context.Context, path string) error {
	f.mkdirs = append(f.mkdirs, path)
	return nil
}

// Drains the stream so the writer goroutine behind the pipe never blocks.
func (f *fakeContainer) CopyTo(_ context.Context, r io.Reader, destDir string) error {
	io.Copy(io.Discard, r)
	f.copies = append(f.copies, destDir)
	return nil
}

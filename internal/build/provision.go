package build

import (
	"fmt"
	"path"
	"strings"

	"github.com/kilnhq/kilnd/internal/manifest"
)

// Path the signing key is staged at between fetch and install. Lives under
// /tmp so the cleanup step can remove it without touching image content.
const stagedKeyPath = "/tmp/kilnd-signing.key"

// Environment applied to every plan command. Debconf prompts would hang a
// bake with no terminal attached.
var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// Classifies a provisioning step for error reporting.
type Class int

const (
	ClassFetch   Class = iota // Network retrieval: index refresh, tool install, key download.
	ClassTrust                // Trust establishment: key verify, key install, descriptor registration.
	ClassInstall              // Vendor package resolution and install.
	ClassCleanup              // Transient purge and cache removal.
)

// Returns the class name as printed by the plan command.
func (c Class) String() string {
	switch c {
	case ClassFetch:
		return "fetch"
	case ClassTrust:
		return "trust"
	case ClassInstall:
		return "install"
	case ClassCleanup:
		return "cleanup"
	}
	return "unknown"
}

// Returns the sentinel error a failed step of this class wraps.
func (c Class) err() error {
	switch c {
	case ClassFetch:
		return ErrFetch
	case ClassTrust:
		return ErrTrust
	case ClassInstall:
		return ErrResolve
	}
	return ErrCommandFailed
}

// A single step of the provisioning plan.
type PlanStep struct {
	Description string // One-line summary, printed by the plan command.
	Command     string // Shell command executed inside the build container.
	Class       Class  // Error class a failure maps to.
}

// Builds the ordered provisioning plan for the given configuration.
//
// The plan establishes trust before consuming the repository: the descriptor
// referencing the signing key is written only after the key has been fetched,
// verified, and installed at its final path, so apt never sees the repository
// without the key that vouches for it. Transient fetch tools are installed up
// front and purged after the vendor install, leaving no trace in the final
// image.
//
// The plan carries no existence guards. Running it against an already
// provisioned layer repeats every step, including the descriptor write.
func Plan(p manifest.Provision) []PlanStep {
	transient := strings.Join(p.Transient, " ")

	return []PlanStep{
		{
			Description: "refresh package index",
			Command:     "apt-get update",
			Class:       ClassFetch,
		},
		{
			Description: "install transient fetch tools",
			Command:     "apt-get install -y --no-install-recommends " + transient,
			Class:       ClassFetch,
		},
		{
			Description: "fetch signing key",
			Command:     fmt.Sprintf("wget -qO %s %s", stagedKeyPath, p.Key.URL),
			Class:       ClassFetch,
		},
		{
			Description: "verify signing key",
			Command:     fmt.Sprintf("test -s %s && gpg --show-keys %s", stagedKeyPath, stagedKeyPath),
			Class:       ClassTrust,
		},
		{
			Description: "install signing key",
			Command:     installKeyCommand(p.Key),
			Class:       ClassTrust,
		},
		{
			Description: "register repository",
			Command:     fmt.Sprintf("printf '%%s\\n' '%s' > %s", p.Repository.SourceLine(p.Key.Path), p.Repository.Path),
			Class:       ClassTrust,
		},
		{
			Description: "refresh package index",
			Command:     "apt-get update",
			Class:       ClassFetch,
		},
		{
			Description: "install vendor packages",
			Command:     "apt-get install -y " + strings.Join(p.Packages, " "),
			Class:       ClassInstall,
		},
		{
			Description: "purge transient tools",
			Command:     "apt-get purge -y --auto-remove " + transient,
			Class:       ClassCleanup,
		},
		{
			Description: "clean package caches",
			Command:     "apt-get clean && rm -rf /var/lib/apt/lists/* " + stagedKeyPath,
			Class:       ClassCleanup,
		},
	}
}

// Renders the command that installs the verified key at its final path.
//
// ASCII-armored keys are dearmored into binary keyring form; raw keys are
// installed as-is. Either way the destination directory is created first, so
// recipes can point at keyring directories absent from the base image.
func installKeyCommand(k manifest.SigningKey) string {
	dir := path.Dir(k.Path)
	if k.Dearmored() {
		return fmt.Sprintf("install -d %s && gpg --dearmor --yes -o %s < %s", dir, k.Path, stagedKeyPath)
	}
	return fmt.Sprintf("install -d %s && install -m 0644 %s %s", dir, stagedKeyPath, k.Path)
}

package manifest

import "strings"

// Default values applied by Load when the recipe omits them.
const (
	DefaultInstaller  = "uv"
	DefaultWorkdir    = "/app"
	DefaultEntrypoint = "start"
	DefaultContext    = "."
)

// Transient tool packages installed for key fetching and verification when
// the recipe does not override them. They are purged again before the
// provisioning stage completes.
var DefaultTransient = []string{"wget", "gnupg", "ca-certificates"}

// Describes how to bake an image for a Python application.
type Recipe struct {
	Name      string    `toml:"name"`      // Resource name, used as a prefix for container IDs and ledger records.
	Base      Base      `toml:"base"`      // Base image to build on.
	Provision Provision `toml:"provision"` // Vendor tool provisioning via a signed apt repository.
	Python    Python    `toml:"python"`    // Python package-manager tool installation.
	App       App       `toml:"app"`       // Application materialization and entry point.
}

// Identifies the image all stages are layered on.
type Base struct {

	// Registry reference (e.g. "docker.io/library/python:3.13-slim") or the
	// path of a local OCI archive. Must resolve to exactly one image.
	Image string `toml:"image"`
}

// Returns true when the image field names a local OCI archive rather than
// a registry reference.
func (b Base) IsArchive() bool {
	return strings.HasSuffix(b.Image, ".tar") ||
		strings.HasPrefix(b.Image, "./") ||
		strings.HasPrefix(b.Image, "/")
}

// Describes the vendor-tool provisioning performed against the base layer.
//
// Provisioning establishes trust in a third-party apt repository (signing
// key fetch, descriptor registration) and installs the named packages from
// it. The transient tool set exists only within the stage: it is installed
// before the key fetch and purged after the vendor install.
type Provision struct {
	Transient  []string   `toml:"transient"`  // Fetch/verify tools; defaults to DefaultTransient.
	Packages   []string   `toml:"packages"`   // Vendor packages that persist in the image.
	Key        SigningKey `toml:"key"`        // Signing key establishing trust in the repository.
	Repository Repository `toml:"repository"` // Repository the packages are installed from.
	Steps      []Step     `toml:"steps"`      // Extra steps executed after the vendor install.
}

// Returns true when the recipe requests vendor provisioning.
func (p Provision) Enabled() bool {
	return len(p.Packages) > 0 || p.Key.URL != "" || p.Repository.URL != ""
}

// Cryptographic key material authenticating the repository.
type SigningKey struct {
	URL     string `toml:"url"`     // HTTPS location the key is fetched from.
	Path    string `toml:"path"`    // Destination path inside the image; referenced by the repository descriptor.
	Dearmor *bool  `toml:"dearmor"` // Convert ASCII-armored key material to binary form. Defaults to true.
}

// Returns true when the fetched key should be dearmored before install.
func (k SigningKey) Dearmored() bool {
	return k.Dearmor == nil || *k.Dearmor
}

// A line registered into the apt source list, referencing the signing key.
type Repository struct {
	URL           string   `toml:"url"`           // Repository base URL.
	Codename      string   `toml:"codename"`      // OS release codename (e.g. "bookworm"). Must match the base image's OS.
	Suite         string   `toml:"suite"`         // Tool-suite version line (e.g. "mongodb-org/8.0").
	Components    []string `toml:"components"`    // Repository components; defaults to ["main"].
	Architectures []string `toml:"architectures"` // Package architectures; defaults to ["amd64"].
	Path          string   `toml:"path"`          // Descriptor file path; defaults to /etc/apt/sources.list.d/<name>.list.
}

// Returns the apt distribution string: the codename, extended with the
// tool-suite version line when one is set (e.g. "bookworm/mongodb-org/8.0").
func (r Repository) Distribution() string {
	if r.Suite == "" {
		return r.Codename
	}
	return r.Codename + "/" + r.Suite
}

// Renders the sources.list line for this repository.
//
// The line pins the architectures and references the signing key by path via
// signed-by, so apt refuses packages not signed by that exact key:
//
//	deb [ arch=amd64 signed-by=/usr/share/keyrings/x.gpg ] <url> <distribution> <components...>
func (r Repository) SourceLine(keyPath string) string {
	var b strings.Builder
	b.WriteString("deb [ arch=")
	b.WriteString(strings.Join(r.Architectures, ","))
	b.WriteString(" signed-by=")
	b.WriteString(keyPath)
	b.WriteString(" ] ")
	b.WriteString(r.URL)
	b.WriteString(" ")
	b.WriteString(r.Distribution())
	b.WriteString(" ")
	b.WriteString(strings.Join(r.Components, " "))
	return b.String()
}

// Describes the Python package-manager tool installed into the runtime.
type Python struct {
	Installer string `toml:"installer"` // Tool name; defaults to "uv".
}

// Describes the application installed into the image.
type App struct {
	Context    string            `toml:"context"`    // Build context directory; defaults to ".".
	Workdir    string            `toml:"workdir"`    // Directory the context is copied to; defaults to "/app".
	Entrypoint string            `toml:"entrypoint"` // Console entry point set as the image command; defaults to "start".
	Editable   *bool             `toml:"editable"`   // Install in editable mode. Defaults to true.
	Verify     *bool             `toml:"verify"`     // Resolve the entry point at bake time. Defaults to true.
	Env        map[string]string `toml:"env"`        // Environment variables persisted in the image config.
	Steps      []Step            `toml:"steps"`      // Extra steps executed after the install.
}

// Returns true when the application should be installed in editable mode,
// keeping the installed distribution a live reference to the copied tree.
func (a App) EditableInstall() bool {
	return a.Editable == nil || *a.Editable
}

// Returns true when the entry point should be resolved inside the build
// container before export. When false, a missing entry point surfaces only
// at container start.
func (a App) VerifyEntrypoint() bool {
	return a.Verify == nil || *a.Verify
}

// A single custom build step.
//
// Exactly one of Run or Copy names an operation. The remaining fields are
// modifiers: on an operation step they apply to that operation only, and on
// a standalone step they persist for all subsequent steps.
type Step struct {
	Run     string            `toml:"run"`     // Shell command executed in the build container.
	Copy    string            `toml:"copy"`    // "src dest" host copy into the build container.
	Shell   string            `toml:"shell"`   // Shell used for run steps.
	Workdir string            `toml:"workdir"` // Working directory for the operation.
	Env     map[string]string `toml:"env"`     // Environment variables for the operation.
}

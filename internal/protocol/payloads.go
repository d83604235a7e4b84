package protocol

import (
	"time"

	"github.com/kilnhq/kilnd/internal/manifest"
)

// Lifecycle state of a container as reported by the daemon.
type ContainerState string

const (
	ContainerNotCreated ContainerState = "not-created"
	ContainerRunning    ContainerState = "running"
	ContainerStopped    ContainerState = "stopped"
)

// Asks the daemon to bake an image from a recipe.
type BakeRequest struct {
	Recipe    *manifest.Recipe `json:"recipe"`              // Recipe to bake. Validated by the daemon before execution.
	Root      string           `json:"root"`                // Directory recipe-relative paths resolve against.
	Output    string           `json:"output"`              // Directory for the exported image.
	Platforms []string         `json:"platforms,omitempty"` // Target platforms. Empty means the daemon host platform.
}

// Returned after a successful bake.
type BakeResult struct {
	Output string `json:"output"` // Directory containing the exported image.
}

// Asks the daemon to run a baked image's entry point.
//
// Exactly one of Archive or Tag identifies the image: an archive is
// imported first, a tag refers to a previously imported image.
type RunRequest struct {
	Archive string `json:"archive,omitempty"` // Path to a baked OCI archive.
	Tag     string `json:"tag,omitempty"`     // Previously imported image tag.
	Name    string `json:"name"`              // Container name for the run.
}

// Returned after the entry point exits.
//
// An exit code of 127 indicates the entry point could not be resolved in
// the image; any other code is whatever the entry point returned.
type RunResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Asks the daemon to import an OCI archive under a tag.
type ImageImportRequest struct {
	Archive string `json:"archive"`
	Tag     string `json:"tag"`
}

// Asks the daemon to remove an image and its containers.
type ImageDestroyRequest struct {
	Tag string `json:"tag"`
}

// Identifies a container for status and stop commands.
type ContainerRequest struct {
	ID string `json:"id"`
}

// Returned for a container status query.
type ContainerStatusResult struct {
	State ContainerState `json:"state"`
}

// Returned for a daemon status query.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Bakes   int    `json:"bakes"`
}

// Asks the daemon for recent bake records.
type HistoryRequest struct {
	Limit int `json:"limit,omitempty"` // Maximum records to return. Zero means the daemon default.
}

// Returned for a history query, newest record first.
type HistoryResult struct {
	Records []BakeRecord `json:"records"`
}

// A single entry from the bake ledger.
type BakeRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Output    string    `json:"output"`
	Platforms string    `json:"platforms"`
	Duration  string    `json:"duration"`
	Error     string    `json:"error,omitempty"`
	BakedAt   time.Time `json:"baked_at"`
}

// Carried by an error response.
type ErrorResult struct {
	Message string `json:"message"`
}

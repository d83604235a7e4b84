// Package build bakes recipes into OCI image archives.
//
// A recipe describes a Python application image: the base it layers on,
// vendor tools provisioned from a signed apt repository, the package-manager
// tool, and the application install with its console entry point. The
// pipeline runs these as a fixed stage sequence (provision, python, app,
// verify) inside a single build container, threading an immutable layer
// value through the stages that accumulates the image configuration (env,
// workdir, command) applied at export. Multi-platform bakes repeat the
// pipeline per platform, writing each result to a platform-specific output
// directory.
//
// Provisioning is an ordered, auditable plan: trust in the vendor repository
// is established (key fetch, verify, install, descriptor registration)
// before its packages are resolved, and the transient fetch tools are purged
// before the stage completes. Plan can be inspected without executing it.
//
// Container operations are delegated to the runtime package. Step state
// (environment variables, working directory, shell) is accumulated across
// custom steps within a stage and reset between stages.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Recipe:    recipe,
//	    Output:    "dist",
//	    Root:      ".",
//	    Platforms: []string{"linux/amd64", "linux/arm64"},
//	})
//	if err != nil {
//	    return err
//	}
package build

// Package manifest defines the recipe format for baking images.
//
// A recipe is a TOML document describing how to assemble a runnable image
// for a Python application: the base image, an optional vendor-tool
// provisioning section (signed apt repository plus the packages to install
// from it), the Python package-manager tool, and the application itself
// (build context, workdir, console entry point). Loading applies defaults
// and validates the document eagerly, including shell-syntax checks on
// custom steps, so a malformed recipe never reaches the build pipeline.
//
// Example recipe:
//
//	name = "backup-bot"
//
//	[base]
//	image = "docker.io/library/python:3.13-slim"
//
//	[provision]
//	packages = ["mongodb-database-tools"]
//
//	[provision.key]
//	url = "https://pgp.mongodb.com/server-8.0.asc"
//
//	[provision.repository]
//	url = "https://repo.mongodb.org/apt/debian"
//	codename = "bookworm"
//	suite = "mongodb-org/8.0"
//
//	[app]
//	context = "."
//	entrypoint = "start"
package manifest

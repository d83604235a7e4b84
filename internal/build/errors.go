package build

import "errors"

var (
	ErrBuild               = errors.New("bake failed")
	ErrFetch               = errors.New("fetch failed")
	ErrTrust               = errors.New("trust verification failed")
	ErrResolve             = errors.New("dependency resolution failed")
	ErrMetadata            = errors.New("packaging metadata error")
	ErrCommandFailed       = errors.New("command failed")
	ErrCopy                = errors.New("copy failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
)

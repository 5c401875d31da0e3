package taskconfig

import "errors"

// ErrCannotResolve is raised when a value cannot be shaped into the requested
// type after callable invocation and future awaiting.
var ErrCannotResolve = errors.New("taskconfig: cannot resolve value")

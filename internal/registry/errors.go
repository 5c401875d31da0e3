package registry

import "errors"

// ErrConfigInvalid is raised by schema validation; fatal at load.
var ErrConfigInvalid = errors.New("registry: config invalid")

// ErrDuplicateName is raised when registering a name that already exists
// under a root kind without forceOverride.
var ErrDuplicateName = errors.New("registry: duplicate name")

// ErrUnknownRoot / ErrUnknownType identify a lookup miss.
var (
	ErrUnknownRoot = errors.New("registry: unknown root kind")
	ErrUnknownType = errors.New("registry: unknown type")
)

package engine

import (
	logx "cameleer/pkg/logx"
	"cameleer/internal/statectx"
)

// TaskHandle is the owning task instance passed to callables and awaitables
// during config resolution and to every step body as the job's task
// reference: a logger and static-context proxy injected once at admission
// time, with no setter to change them later.
type TaskHandle struct {
	Name    string
	Logger  logx.Logger
	Context *statectx.Proxy
}

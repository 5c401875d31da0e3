// Package hostconfig implements the daemon-level configuration the cameleerd
// host loads at startup and hot-reloads while running: logging policy,
// engine-wide retry defaults, the default queue set, static-context storage,
// and the control-surface instrumentation choice.
package hostconfig

import "time"

// Config is the root daemon configuration document, decoded from either
// JSON or YAML (coerced to JSON first, see yaml.go).
type Config struct {
	Logging       LoggingConfig       `json:"logging"`
	Engine        EngineConfig        `json:"engine"`
	Queues        []QueueConfig       `json:"queues"`
	StaticContext StaticContextConfig `json:"staticContext"`
	Control       ControlConfig       `json:"control"`
}

type LoggingConfig struct {
	Level   string     `json:"level"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig carries the CameleerDefaults in wire form: the
// recovery schedule is declared as a plain interval duration string here,
// since a func value has no JSON representation. Validate parses the
// duration strings; neither the engine nor cmd/cameleerd reads these fields,
// and nothing converts RecoveryInterval into a taskconfig.RecoveryScheduleFunc.
type EngineConfig struct {
	MaxNumFails         int    `json:"maxNumFails"`
	ContinueOnFinalFail bool   `json:"continueOnFinalFail"`
	Skip                bool   `json:"skip"`
	RecoveryInterval    string `json:"recoveryInterval"`
	KeepAlive           string `json:"keepAlive"`

	recoveryInterval time.Duration
	keepAlive        time.Duration
}

func (e EngineConfig) ResolvedRecoveryInterval() time.Duration { return e.recoveryInterval }
func (e EngineConfig) ResolvedKeepAlive() time.Duration        { return e.keepAlive }

// QueueConfig declares one default queue (parallel or cost) the engine
// constructs at startup.
type QueueConfig struct {
	Name               string  `json:"name"`
	Kind               string  `json:"kind"` // "parallel" or "cost"
	IsDefault          bool    `json:"isDefault"`
	Parallelism        int     `json:"parallelism"`
	Capabilities       float64 `json:"capabilities"`
	AllowExclusiveJobs bool    `json:"allowExclusiveJobs"`
}

// StaticContextConfig locates the backing file for the Static Task Context
// Store and its debounce interval.
type StaticContextConfig struct {
	Path              string `json:"path"`
	SerializeInterval string `json:"serializeInterval"`

	serializeInterval time.Duration
}

func (s StaticContextConfig) ResolvedSerializeInterval() time.Duration { return s.serializeInterval }

// ControlConfig selects the control surface: "none", "stdin", "http",
// or "http-<port>".
type ControlConfig struct {
	Instrument      string  `json:"instrument"`
	HTTPAddr        string  `json:"httpAddr"`
	RateLimitPerSec float64 `json:"rateLimitPerSec"`
	RateLimitBurst  int     `json:"rateLimitBurst"`
}

package hostconfig

import "fmt"

// Validate checks structural invariants the decoder can't express: queue
// kinds, a unique default-queue-per-kind expectation, and a known
// instrumentation choice.
func Validate(cfg *Config) error {
	if err := normalizeDurations(cfg); err != nil {
		return err
	}

	seen := map[string]bool{}
	defaultKind := map[string]bool{}
	for i, q := range cfg.Queues {
		if q.Name == "" {
			return fmt.Errorf("queues[%d]: name is required", i)
		}
		if seen[q.Name] {
			return fmt.Errorf("queues[%d]: duplicate queue name %q", i, q.Name)
		}
		seen[q.Name] = true
		switch q.Kind {
		case "parallel", "cost":
		default:
			return fmt.Errorf("queues[%d]: unknown kind %q, want \"parallel\" or \"cost\"", i, q.Kind)
		}
		if q.IsDefault {
			if defaultKind[q.Kind] {
				return fmt.Errorf("queues[%d]: more than one default queue of kind %q", i, q.Kind)
			}
			defaultKind[q.Kind] = true
		}
	}

	switch cfg.Control.Instrument {
	case "", "none", "stdin", "http":
	default:
		if len(cfg.Control.Instrument) < 5 || cfg.Control.Instrument[:5] != "http-" {
			return fmt.Errorf("control.instrument: unknown value %q", cfg.Control.Instrument)
		}
	}

	return nil
}

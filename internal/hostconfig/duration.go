package hostconfig

import (
	"fmt"
	"strings"
	"time"
)

func parseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := parseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// normalizeDurations resolves every raw duration string field into its
// time.Duration counterpart, applying defaults where the document leaves a
// field blank.
func normalizeDurations(cfg *Config) error {
	d, err := parseDurationOrDefault("engine.recoveryInterval", cfg.Engine.RecoveryInterval, 30*time.Second)
	if err != nil {
		return err
	}
	cfg.Engine.recoveryInterval = d

	d, err = parseDurationOrDefault("engine.keepAlive", cfg.Engine.KeepAlive, time.Minute)
	if err != nil {
		return err
	}
	cfg.Engine.keepAlive = d

	d, err = parseDurationOrDefault("staticContext.serializeInterval", cfg.StaticContext.SerializeInterval, 2*time.Second)
	if err != nil {
		return err
	}
	cfg.StaticContext.serializeInterval = d

	return nil
}

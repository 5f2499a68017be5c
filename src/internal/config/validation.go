// FILE: logkeep/src/internal/config/validation.go
package config

import (
	"fmt"
	"regexp"

	"logkeep/src/internal/core"
	"logkeep/src/internal/filter"
)

func (c *Config) validate() error {
	if c.Buffer.Capacity < 1 {
		return fmt.Errorf("buffer capacity must be positive: %d", c.Buffer.Capacity)
	}

	if c.Dispatch.RateLimit < 0 {
		return fmt.Errorf("dispatch rate limit must not be negative: %f", c.Dispatch.RateLimit)
	}
	if c.Dispatch.RateLimit > 0 && c.Dispatch.RateBurst < 1 {
		return fmt.Errorf("dispatch rate burst must be positive when rate limiting: %d", c.Dispatch.RateBurst)
	}

	for i := range c.Filters {
		if err := validateFilter(i, &c.Filters[i]); err != nil {
			return err
		}
	}

	switch c.Format.Type {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid format type: %s", c.Format.Type)
	}

	if len(c.Sinks) == 0 {
		return fmt.Errorf("no sinks configured")
	}
	for i := range c.Sinks {
		if err := validateSink(i, &c.Sinks[i]); err != nil {
			return err
		}
	}

	if c.Logging != nil {
		if err := validateLogConfig(c.Logging); err != nil {
			return err
		}
	}

	return nil
}

func validateFilter(index int, cfg *filter.Config) error {
	switch cfg.Type {
	case filter.TypeInclude, filter.TypeExclude, "":
	default:
		return fmt.Errorf("filter[%d]: invalid type '%s' (must be 'include' or 'exclude')", index, cfg.Type)
	}

	switch cfg.Logic {
	case filter.LogicOr, filter.LogicAnd, "":
	default:
		return fmt.Errorf("filter[%d]: invalid logic '%s' (must be 'or' or 'and')", index, cfg.Logic)
	}

	if cfg.MinLevel != "" {
		if _, err := core.ParseLevel(cfg.MinLevel); err != nil {
			return fmt.Errorf("filter[%d]: %w", index, err)
		}
	}

	for i, pattern := range cfg.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("filter[%d] pattern[%d] '%s': invalid regex: %w", index, i, pattern, err)
		}
	}

	return nil
}

func validateSink(index int, cfg *SinkConfig) error {
	switch cfg.Type {
	case "console":
		if cfg.Console != nil {
			switch cfg.Console.Target {
			case "", "stdout", "stderr", "split":
			default:
				return fmt.Errorf("sink[%d]: invalid console target: %s", index, cfg.Console.Target)
			}
		}

	case "file":
		if cfg.File == nil || cfg.File.Path == "" {
			return fmt.Errorf("sink[%d]: file sink requires a path", index)
		}

	case "http":
		if cfg.HTTP == nil {
			return fmt.Errorf("sink[%d]: http sink requires options", index)
		}
		if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
			return fmt.Errorf("sink[%d]: invalid HTTP port: %d", index, cfg.HTTP.Port)
		}
		if cfg.HTTP.Heartbeat != nil && cfg.HTTP.Heartbeat.Enabled && cfg.HTTP.Heartbeat.IntervalSeconds < 1 {
			return fmt.Errorf("sink[%d]: heartbeat interval must be positive: %d", index, cfg.HTTP.Heartbeat.IntervalSeconds)
		}

	case "tcp":
		if cfg.TCP == nil {
			return fmt.Errorf("sink[%d]: tcp sink requires options", index)
		}
		if cfg.TCP.Port < 1 || cfg.TCP.Port > 65535 {
			return fmt.Errorf("sink[%d]: invalid TCP port: %d", index, cfg.TCP.Port)
		}

	default:
		return fmt.Errorf("sink[%d]: unknown sink type: %s", index, cfg.Type)
	}

	return nil
}

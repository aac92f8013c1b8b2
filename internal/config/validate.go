package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Realtime validation
	if cfg.Realtime.URL != "" && !strings.HasPrefix(cfg.Realtime.URL, "ws://") && !strings.HasPrefix(cfg.Realtime.URL, "wss://") {
		issues = append(issues, ValidationIssue{
			Path:    "realtime.url",
			Message: fmt.Sprintf("must be a ws:// or wss:// URL, got %q", cfg.Realtime.URL),
		})
	}

	validTurnDetection := []string{"server_vad", "none"}
	if cfg.Realtime.TurnDetection != "" && !slices.Contains(validTurnDetection, cfg.Realtime.TurnDetection) {
		issues = append(issues, ValidationIssue{
			Path:    "realtime.turnDetection",
			Message: fmt.Sprintf("must be one of %v, got %q", validTurnDetection, cfg.Realtime.TurnDetection),
		})
	}

	// Relay validation
	if cfg.Relay.Port < 0 || cfg.Relay.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "relay.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Relay.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Relay.Bind != "" && !slices.Contains(validBinds, cfg.Relay.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "relay.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Relay.Bind),
		})
	}

	// Audio validation
	if cfg.Audio.SampleRate < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "audio.sampleRate",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Audio.SampleRate),
		})
	}
	if cfg.Audio.Threshold < 0 || cfg.Audio.Threshold > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "audio.threshold",
			Message: fmt.Sprintf("must be in [0, 1], got %g", cfg.Audio.Threshold),
		})
	}
	if cfg.Audio.HangMs < cfg.Audio.DetectMs {
		issues = append(issues, ValidationIssue{
			Path:    "audio.hangMs",
			Message: fmt.Sprintf("must be at least detectMs (%d), got %d", cfg.Audio.DetectMs, cfg.Audio.HangMs),
		})
	}

	// Music validation (only if configured)
	if cfg.Music != nil {
		if cfg.Music.ClientID == "" {
			issues = append(issues, ValidationIssue{
				Path:    "music.clientId",
				Message: "clientId is required",
			})
		}
		if cfg.Music.VolumeStep < 0 || cfg.Music.VolumeStep > 100 {
			issues = append(issues, ValidationIssue{
				Path:    "music.volumeStep",
				Message: fmt.Sprintf("must be 0-100, got %d", cfg.Music.VolumeStep),
			})
		}
	}

	// History validation
	validStores := []string{"sqlite", "none"}
	if cfg.History.Store != "" && !slices.Contains(validStores, cfg.History.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "history.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.History.Store),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

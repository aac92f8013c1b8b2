package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Realtime.APIKey = expandEnvVars(cfg.Realtime.APIKey)
	cfg.Relay.APIKey = expandEnvVars(cfg.Relay.APIKey)
	cfg.Transcription.APIKey = expandEnvVars(cfg.Transcription.APIKey)
	if cfg.Music != nil {
		cfg.Music.ClientSecret = expandEnvVars(cfg.Music.ClientSecret)
		cfg.Music.RefreshToken = expandEnvVars(cfg.Music.RefreshToken)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Realtime.URL == "" {
		cfg.Realtime.URL = def.Realtime.URL
	}
	if cfg.Realtime.Model == "" {
		cfg.Realtime.Model = def.Realtime.Model
	}
	if cfg.Realtime.Voice == "" {
		cfg.Realtime.Voice = def.Realtime.Voice
	}
	if cfg.Realtime.TurnDetection == "" {
		cfg.Realtime.TurnDetection = def.Realtime.TurnDetection
	}
	if cfg.Relay.Port == 0 {
		cfg.Relay.Port = def.Relay.Port
	}
	if cfg.Relay.Bind == "" {
		cfg.Relay.Bind = def.Relay.Bind
	}
	if cfg.Relay.UpstreamURL == "" {
		cfg.Relay.UpstreamURL = def.Relay.UpstreamURL
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = def.Audio.SampleRate
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = def.Audio.Channels
	}
	if cfg.Audio.ChunkMs == 0 {
		cfg.Audio.ChunkMs = def.Audio.ChunkMs
	}
	if cfg.Audio.DetectMs == 0 {
		cfg.Audio.DetectMs = def.Audio.DetectMs
	}
	if cfg.Audio.HangMs == 0 {
		cfg.Audio.HangMs = def.Audio.HangMs
	}
	if cfg.Audio.Threshold == 0 {
		cfg.Audio.Threshold = def.Audio.Threshold
	}
	if cfg.Transcription.URL == "" {
		cfg.Transcription.URL = def.Transcription.URL
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = def.Transcription.Model
	}
	if cfg.Transcription.Language == "" {
		cfg.Transcription.Language = def.Transcription.Language
	}
	if cfg.Transcription.TimeoutSeconds == 0 {
		cfg.Transcription.TimeoutSeconds = def.Transcription.TimeoutSeconds
	}
	if cfg.Music != nil && cfg.Music.VolumeStep == 0 {
		cfg.Music.VolumeStep = 10
	}
	if cfg.History.Store == "" {
		cfg.History.Store = def.History.Store
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = def.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads REPCOACH_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPCOACH_API_KEY"); v != "" {
		cfg.Realtime.APIKey = v
	}
	if v := os.Getenv("REPCOACH_REALTIME_URL"); v != "" {
		cfg.Realtime.URL = v
	}
	if v := os.Getenv("REPCOACH_RELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Relay.Port = port
		}
	}
	if v := os.Getenv("REPCOACH_RELAY_API_KEY"); v != "" {
		cfg.Relay.APIKey = v
	}
	if v := os.Getenv("REPCOACH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

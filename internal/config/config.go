package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Realtime: RealtimeConfig{
			URL:           "wss://api.openai.com/v1/realtime",
			Model:         "gpt-4o-realtime-preview",
			Voice:         "onyx",
			TurnDetection: "server_vad",
		},
		Relay: RelayConfig{
			Port:        18990,
			Bind:        "loopback",
			UpstreamURL: "wss://api.openai.com/v1/realtime",
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			ChunkMs:    1000,
			DetectMs:   100,
			HangMs:     500,
			Threshold:  0.08,
		},
		Transcription: TranscriptionConfig{
			URL:            "https://api.openai.com/v1/audio/transcriptions",
			Model:          "whisper-1",
			Language:       "en",
			TimeoutSeconds: 30,
		},
		History: HistoryConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

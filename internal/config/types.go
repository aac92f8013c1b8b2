package config

// Config is the root configuration for repcoach.
type Config struct {
	Realtime      RealtimeConfig      `yaml:"realtime,omitempty"`
	Relay         RelayConfig         `yaml:"relay,omitempty"`
	Audio         AudioConfig         `yaml:"audio,omitempty"`
	Transcription TranscriptionConfig `yaml:"transcription,omitempty"`
	Music         *MusicConfig        `yaml:"music,omitempty"`
	History       HistoryConfig       `yaml:"history,omitempty"`
	Logging       LoggingConfig       `yaml:"logging,omitempty"`
}

// RealtimeConfig controls the connection to the realtime voice backend.
type RealtimeConfig struct {
	URL           string `yaml:"url,omitempty"`           // websocket endpoint (backend or relay)
	APIKey        string `yaml:"apiKey,omitempty"`        // backend key, or relay-issued token when URL points at a relay
	Model         string `yaml:"model,omitempty"`
	Voice         string `yaml:"voice,omitempty"`
	TurnDetection string `yaml:"turnDetection,omitempty"` // "server_vad" | "none"
	Instructions  string `yaml:"instructions,omitempty"`  // overrides the built-in coach persona
}

// RelayConfig controls the credential-hiding relay server.
// The relay is the only component that holds the backend API key.
type RelayConfig struct {
	Port           int    `yaml:"port,omitempty"`
	Bind           string `yaml:"bind,omitempty"` // "loopback" | "lan" | "auto" | "custom"
	CustomBindHost string `yaml:"customBindHost,omitempty"`
	UpstreamURL    string `yaml:"upstreamUrl,omitempty"`
	APIKey         string `yaml:"apiKey,omitempty"`
}

// AudioConfig controls microphone capture and voice-activity detection.
type AudioConfig struct {
	SampleRate int     `yaml:"sampleRate,omitempty"`
	Channels   int     `yaml:"channels,omitempty"`
	ChunkMs    int     `yaml:"chunkMs,omitempty"`   // capture cadence
	DetectMs   int     `yaml:"detectMs,omitempty"`  // VAD cadence
	HangMs     int     `yaml:"hangMs,omitempty"`    // silence before activity clears
	Threshold  float64 `yaml:"threshold,omitempty"` // mean-magnitude activity threshold (0-1)
}

// TranscriptionConfig controls the speech-to-text sub-call.
type TranscriptionConfig struct {
	URL            string `yaml:"url,omitempty"`
	APIKey         string `yaml:"apiKey,omitempty"` // defaults to realtime.apiKey when empty
	Model          string `yaml:"model,omitempty"`
	Language       string `yaml:"language,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// MusicConfig configures the music playback client.
type MusicConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
	RefreshToken string `yaml:"refreshToken,omitempty"`
	VolumeStep   int    `yaml:"volumeStep,omitempty"` // percent per volume_up/volume_down
}

// HistoryConfig configures the workout-history store.
type HistoryConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "none"
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

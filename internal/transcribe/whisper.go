// Package transcribe turns buffered speech audio into text via a
// whisper-style HTTP transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/repcoach/internal/logging"
)

// Transcriber converts PCM16 speech audio into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// WhisperConfig configures the HTTP transcription client.
type WhisperConfig struct {
	URL        string
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Channels   int
	Timeout    time.Duration
}

// Whisper calls a whisper-compatible transcription endpoint with the
// audio as a multipart WAV upload.
type Whisper struct {
	cfg    WhisperConfig
	client *http.Client
	log    *logging.Logger
}

// NewWhisper creates a transcription client.
func NewWhisper(cfg WhisperConfig, log *logging.Logger) *Whisper {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Whisper{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Sub("transcribe"),
	}
}

// Transcribe uploads the audio and returns the trimmed transcript text.
// An empty transcript is not an error.
func (w *Whisper) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	wav := wrapWAV(pcm, w.cfg.SampleRate, w.cfg.Channels)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("writing audio data: %w", err)
	}
	if err := writer.WriteField("model", w.cfg.Model); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if w.cfg.Language != "" {
		if err := writer.WriteField("language", w.cfg.Language); err != nil {
			return "", fmt.Errorf("writing language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	w.log.Debug().Int("audioBytes", len(pcm)).Msg("sending audio for transcription")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription failed: %d %s", resp.StatusCode, string(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	w.log.Info().Str("text", text).Dur("took", time.Since(start)).Msg("transcription complete")
	return text, nil
}

// wrapWAV prefixes raw PCM16 with a standard 44-byte WAV header.
func wrapWAV(pcm []byte, sampleRate, channels int) []byte {
	bitsPerSample := 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)
	fileSize := 36 + dataSize

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	putLE32(header[4:8], uint32(fileSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	putLE32(header[16:20], 16) // PCM fmt chunk size
	putLE16(header[20:22], 1)  // PCM format
	putLE16(header[22:24], uint16(channels))
	putLE32(header[24:28], uint32(sampleRate))
	putLE32(header[28:32], uint32(byteRate))
	putLE16(header[32:34], uint16(blockAlign))
	putLE16(header[34:36], uint16(bitsPerSample))
	copy(header[36:40], "data")
	putLE32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

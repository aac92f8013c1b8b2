// Package audio acquires the microphone, chunks captured audio for
// transmission, and runs a continuous voice-activity detector.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/repcoach/internal/logging"
)

// ErrPermissionDenied is returned when the input device cannot be
// acquired. Surfaced to the session-start caller; no session starts.
var ErrPermissionDenied = errors.New("audio: input device unavailable or permission denied")

// Source is a PCM16 input stream backed by a capture device.
type Source interface {
	// Start acquires the device. Failing to acquire it is a
	// permission-class error.
	Start(ctx context.Context) error

	// Read blocks until samples are available. Returns an error after Close.
	Read(p []byte) (int, error)

	// Close releases the device and unblocks any pending Read.
	Close() error
}

// ActivityObserver receives voice-activity transitions.
type ActivityObserver func(active bool)

// Config controls capture and detection cadences.
type Config struct {
	SampleRate     int
	Channels       int
	ChunkInterval  time.Duration // audio chunk emission cadence
	DetectInterval time.Duration // VAD sampling cadence
	Hang           time.Duration // silence before activity clears
	Threshold      float64       // mean-magnitude threshold (0-1)
	WindowMs       int           // sample window the detector inspects
}

// DefaultConfig returns the standard cadences: 1s chunks, 100ms
// detection with a 500ms hang.
func DefaultConfig() Config {
	return Config{
		SampleRate:     16000,
		Channels:       1,
		ChunkInterval:  time.Second,
		DetectInterval: 100 * time.Millisecond,
		Hang:           500 * time.Millisecond,
		Threshold:      0.08,
		WindowMs:       100,
	}
}

// Pipeline runs chunk capture and voice-activity detection over one
// source. Both cadences stop together: Stop cancels the shared context,
// releases the device, and waits for every internal goroutine.
type Pipeline struct {
	src Source
	cfg Config
	log *logging.Logger

	mu      sync.Mutex
	pending []byte // accumulated since the last chunk tick
	window  []byte // most recent samples for the detector

	obsMu    sync.Mutex
	observer ActivityObserver

	chunks chan []byte

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  bool
}

// NewPipeline creates a pipeline over the given source. Zero config
// fields fall back to DefaultConfig values.
func NewPipeline(src Source, cfg Config, log *logging.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = def.Channels
	}
	if cfg.ChunkInterval == 0 {
		cfg.ChunkInterval = def.ChunkInterval
	}
	if cfg.DetectInterval == 0 {
		cfg.DetectInterval = def.DetectInterval
	}
	if cfg.Hang == 0 {
		cfg.Hang = def.Hang
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.WindowMs == 0 {
		cfg.WindowMs = def.WindowMs
	}

	return &Pipeline{
		src:    src,
		cfg:    cfg,
		log:    log.Sub("audio"),
		chunks: make(chan []byte, 8),
	}
}

// SetActivityObserver registers the voice-activity callback, replacing
// any prior one. Transitions only; no chatter on steady state.
func (p *Pipeline) SetActivityObserver(fn ActivityObserver) {
	p.obsMu.Lock()
	p.observer = fn
	p.obsMu.Unlock()
}

// Chunks returns the channel of captured audio chunks. Closed by Stop.
func (p *Pipeline) Chunks() <-chan []byte {
	return p.chunks
}

// Start acquires the device and begins both cadences.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.started {
		return errors.New("audio: pipeline already started")
	}

	if err := p.src.Start(ctx); err != nil {
		return fmt.Errorf("acquiring input device: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	p.wg.Add(3)
	go p.captureLoop(runCtx)
	go p.chunkLoop(runCtx)
	go p.detectLoop(runCtx)

	p.log.Info().
		Dur("chunkInterval", p.cfg.ChunkInterval).
		Dur("detectInterval", p.cfg.DetectInterval).
		Msg("pipeline started")
	return nil
}

// Stop halts both cadences, releases the device, and drops any
// unconsumed samples. Idempotent.
func (p *Pipeline) Stop() {
	if !p.started {
		return
	}
	p.stopOnce.Do(func() {
		p.cancel()
		p.src.Close() // unblocks captureLoop's Read
		p.wg.Wait()
		close(p.chunks)
		p.notify(false)
		p.log.Info().Msg("pipeline stopped")
	})
}

// captureLoop drains the source into the pending and window buffers.
func (p *Pipeline) captureLoop(ctx context.Context) {
	defer p.wg.Done()
	buf := make([]byte, 4096)
	windowBytes := p.cfg.SampleRate * p.cfg.Channels * 2 * p.cfg.WindowMs / 1000

	for {
		n, err := p.src.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Warn().Err(err).Msg("capture read failed")
			}
			return
		}
		if n == 0 {
			continue
		}

		p.mu.Lock()
		p.pending = append(p.pending, buf[:n]...)
		p.window = append(p.window, buf[:n]...)
		if len(p.window) > windowBytes {
			p.window = p.window[len(p.window)-windowBytes:]
		}
		p.mu.Unlock()
	}
}

// chunkLoop emits one bounded chunk per cadence tick.
func (p *Pipeline) chunkLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.ChunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			chunk := p.pending
			p.pending = nil
			p.mu.Unlock()

			if len(chunk) == 0 {
				continue
			}
			select {
			case p.chunks <- chunk:
			default:
				p.log.Warn().Int("bytes", len(chunk)).Msg("chunk buffer full, dropping")
			}
		}
	}
}

// detectLoop samples the window on the fast cadence and reports
// activity transitions.
func (p *Pipeline) detectLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.DetectInterval)
	defer ticker.Stop()

	det := newDetector(p.cfg.Threshold, p.cfg.Hang)
	last := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			level := meanMagnitude(p.window)
			p.mu.Unlock()

			active := det.observe(level)
			if active != last {
				last = active
				p.notify(active)
			}
		}
	}
}

func (p *Pipeline) notify(active bool) {
	p.obsMu.Lock()
	observer := p.observer
	p.obsMu.Unlock()
	if observer != nil {
		observer(active)
	}
}

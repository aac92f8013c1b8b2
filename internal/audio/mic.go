package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
)

// MicSource captures PCM16 audio from the default input device via
// miniaudio.
type MicSource struct {
	sampleRate int
	channels   int

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// NewMicSource creates an unstarted microphone source.
func NewMicSource(sampleRate, channels int) *MicSource {
	m := &MicSource{
		sampleRate: sampleRate,
		channels:   channels,
		buf:        make([]byte, 0, sampleRate*2),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Start acquires the capture device. Device init failures map to
// ErrPermissionDenied so callers can refuse to start a session.
func (m *MicSource) Start(ctx context.Context) error {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(m.channels)
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.mu.Lock()
			if !m.closed {
				m.buf = append(m.buf, pInputSamples...)
			}
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	m.malgoCtx = malgoCtx
	m.device = device
	return nil
}

// Read blocks until captured samples are available or the source closes.
func (m *MicSource) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return 0, io.EOF
	}

	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

// Close stops the device and unblocks any pending Read. Idempotent.
func (m *MicSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()

	if m.device != nil {
		m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		m.malgoCtx.Uninit()
		m.malgoCtx = nil
	}
	return nil
}

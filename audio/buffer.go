package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// Buffer accumulates PCM frames from a capture device between Arm and
// DisarmAndDrain. Frames are only appended while armed; anything the
// backend delivers after disarm is dropped.
type Buffer struct {
	ctx    Context
	device *DeviceInfo
	config CaptureConfig

	mu      sync.Mutex
	armed   bool
	capture CaptureDevice
	chunks  [][]byte
	frames  uint64
	level   float64
}

func NewBuffer(ctx Context, device *DeviceInfo, config CaptureConfig) *Buffer {
	if config.Channels == 0 {
		config.Channels = 1
	}
	return &Buffer{ctx: ctx, device: device, config: config}
}

// SetDevice changes the input used by the next Arm.
func (b *Buffer) SetDevice(device *DeviceInfo) {
	b.mu.Lock()
	b.device = device
	b.mu.Unlock()
}

func (b *Buffer) Arm() error {
	b.mu.Lock()
	if b.armed {
		b.mu.Unlock()
		return ErrAlreadyArmed
	}
	device := b.device

	if device == nil {
		devices, err := b.ctx.Devices()
		if err != nil {
			b.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		if len(devices) == 0 {
			b.mu.Unlock()
			return ErrDeviceUnavailable
		}
	}

	capture, err := b.ctx.NewCapture(device, b.config)
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	b.chunks = nil
	b.frames = 0
	b.level = 0
	b.capture = capture
	b.armed = true
	capture.SetCallback(b.OnFrame)
	b.mu.Unlock()

	// Start may deliver frames synchronously, so it runs outside the lock.
	if err := capture.Start(); err != nil {
		b.mu.Lock()
		b.armed = false
		b.capture = nil
		b.chunks = nil
		b.frames = 0
		b.mu.Unlock()
		capture.ClearCallback()
		capture.Close()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return nil
}

// OnFrame is the capture callback. It copies data because backends reuse
// their buffers between callbacks.
func (b *Buffer) OnFrame(data []byte, frameCount uint32) {
	if len(data) == 0 {
		return
	}
	level := rms(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.armed {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	b.chunks = append(b.chunks, chunk)
	b.frames += uint64(frameCount)
	b.level = level
}

// DisarmAndDrain stops capture and returns every frame accumulated since
// Arm as one contiguous buffer. The buffer is empty afterwards.
func (b *Buffer) DisarmAndDrain() ([]byte, error) {
	b.mu.Lock()
	if !b.armed {
		b.mu.Unlock()
		return nil, ErrNotArmed
	}
	b.armed = false
	capture := b.capture
	b.capture = nil

	size := 0
	for _, c := range b.chunks {
		size += len(c)
	}
	pcm := make([]byte, 0, size)
	for _, c := range b.chunks {
		pcm = append(pcm, c...)
	}
	frames := b.frames
	b.chunks = nil
	b.frames = 0
	b.level = 0
	b.mu.Unlock()

	stopCapture(capture)

	if frames == 0 {
		return nil, ErrEmptyCapture
	}
	return pcm, nil
}

// Discard disarms and throws away anything captured so far.
func (b *Buffer) Discard() {
	b.mu.Lock()
	if !b.armed {
		b.mu.Unlock()
		return
	}
	b.armed = false
	capture := b.capture
	b.capture = nil
	b.chunks = nil
	b.frames = 0
	b.level = 0
	b.mu.Unlock()

	stopCapture(capture)
}

func (b *Buffer) Armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armed
}

func (b *Buffer) CurrentDurationSeconds() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.config.SampleRate == 0 {
		return 0
	}
	return float64(b.frames) / float64(b.config.SampleRate)
}

// Level is the RMS (0..1) of the most recent frame while armed.
func (b *Buffer) Level() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

func (b *Buffer) SampleRate() int { return int(b.config.SampleRate) }

func stopCapture(c CaptureDevice) {
	if c == nil {
		return
	}
	c.ClearCallback()
	c.Stop()
	c.Close()
}

func rms(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(n))
}

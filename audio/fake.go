package audio

import (
	"time"

	"scribe/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays fixed PCM through the capture interfaces. With
// realtime set, chunks are paced at the sample rate and silence follows
// the clip until Stop, like an open microphone.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// NoDevices makes Devices report an empty list.
	NoDevices bool
	// CaptureErr is returned from NewCapture when set.
	CaptureErr error
	// StartErr is returned from Start when set.
	StartErr error
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func NewFakeContextFromWAV(wavPath string, realtime bool) (*FakeContext, error) {
	pcm, _, err := encoder.DecodeWAVFile(wavPath)
	if err != nil {
		return nil, err
	}
	return NewFakeContext(pcm, realtime), nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.NoDevices {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.CaptureErr != nil {
		return nil, f.CaptureErr
	}
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, startErr: f.StartErr, audioDone: make(chan struct{})}, nil
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	startErr  error
	audioDone chan struct{}

	callbackSlot
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the whole clip has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

// feedChunk delivers the chunk at pos and returns the next position, or
// pos unchanged when nobody is listening.
func (f *FakeCapture) feedChunk(pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	if !f.deliver(chunk, uint32(len(chunk)/fakeBytesPerFrame)) {
		return pos
	}
	return end
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	if !f.realtime {
		for pos := 0; pos < len(f.pcm); {
			next := f.feedChunk(pos, chunkBytes)
			if next == pos {
				break
			}
			pos = next
		}
		close(f.audioDone)
		return nil
	}

	f.feedDone = make(chan struct{})
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		audioFinished := false

		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			if !f.active() {
				time.Sleep(time.Millisecond)
				continue
			}

			if pos < len(f.pcm) {
				pos = f.feedChunk(pos, chunkBytes)
			} else {
				if !audioFinished {
					audioFinished = true
					close(f.audioDone)
				}
				f.deliver(silence, fakeFrameSize)
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	if f.feedDone != nil {
		<-f.feedDone
	}
}

func (f *FakeCapture) Close() {}

//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"scribe/encoder"
	"scribe/log"
)

// player keeps one playback device open and swaps the clip it reads from.
// The device callback runs on a miniaudio thread, so the clip and cursor
// are atomics.
type player struct {
	ctx  *malgo.AllocatedContext
	cues [CueError + 1][]byte

	mu     sync.Mutex
	device *malgo.Device

	clip atomic.Pointer[[]byte]
	pos  atomic.Uint32
}

var defaultPlayer = sync.OnceValue(newPlayer)

func newPlayer() *player {
	p := &player{}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("beep: malgo context: %v", err)
		return p
	}
	for c, s := range renderCues(1, 0) {
		p.cues[c] = encoder.PCM(s)
	}
	p.ctx = ctx
	if err := p.openDevice(); err != nil {
		log.Warnf("beep: malgo playback device: %v", err)
		ctx.Uninit()
		p.ctx = nil
	}
	return p
}

func (p *player) openDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate
	dev, err := malgo.InitDevice(p.ctx.Context, cfg, malgo.DeviceCallbacks{Data: p.fill})
	if err != nil {
		return err
	}
	p.device = dev
	return nil
}

func (p *player) fill(out, _ []byte, frames uint32) {
	clip := p.clip.Load()
	if clip == nil {
		clear(out)
		return
	}
	pos := p.pos.Load()
	n := min(frames*2, uint32(len(*clip))-pos)
	if n == 0 {
		p.clip.Store(nil)
		clear(out)
		return
	}
	copy(out, (*clip)[pos:pos+n])
	p.pos.Store(pos + n)
	clear(out[n:])
}

func (p *player) play(clip []byte) {
	if p.ctx == nil || len(clip) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.device.Stop()
	p.pos.Store(0)
	p.clip.Store(&clip)
	if err := p.device.Start(); err == nil {
		return
	}
	// The device can go stale across sleep and wake; reopen it once.
	p.device.Uninit()
	if err := p.openDevice(); err != nil {
		log.Warnf("beep: reopen playback device: %v", err)
		p.clip.Store(nil)
		return
	}
	if err := p.device.Start(); err != nil {
		p.clip.Store(nil)
	}
}

func play(c Cue) {
	p := defaultPlayer()
	p.play(p.cues[c])
}

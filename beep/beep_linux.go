//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"scribe/log"
)

// PulseAudio buffers about 200ms before playback starts, so ticks carry a
// silent tail of that length.
var pulseCues = sync.OnceValue(func() cueSet { return renderCues(2, 0.2) })

func play(c Cue) {
	go playPulse(pulseCues()[c])
}

// playPulse opens a short-lived client per cue and blocks until the
// samples have drained.
func playPulse(samples []int16) {
	if len(samples) == 0 {
		return
	}
	client, err := pulse.NewClient(pulse.ClientApplicationName("scribe"))
	if err != nil {
		log.Warnf("beep: pulse client: %v", err)
		return
	}
	defer client.Close()

	rest := samples
	src := pulse.Int16Reader(func(buf []int16) (int, error) {
		if len(rest) == 0 {
			return 0, pulse.EndOfData
		}
		n := copy(buf, rest)
		rest = rest[n:]
		return n, nil
	})
	stream, err := client.NewPlayback(src,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("beep: pulse playback: %v", err)
		return
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
}

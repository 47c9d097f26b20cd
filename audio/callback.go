package audio

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// callbackSlot holds the consumer of a backend's frames. Backends invoke
// it from their own audio threads, so it is swapped atomically.
type callbackSlot struct {
	cb atomic.Pointer[DataCallback]
}

func (s *callbackSlot) SetCallback(cb DataCallback) { s.cb.Store(&cb) }

func (s *callbackSlot) ClearCallback() { s.cb.Store(nil) }

// deliver reports whether a consumer was installed.
func (s *callbackSlot) deliver(data []byte, frames uint32) bool {
	cb := s.cb.Load()
	if cb == nil {
		return false
	}
	(*cb)(data, frames)
	return true
}

func (s *callbackSlot) active() bool { return s.cb.Load() != nil }

// amplify scales samples by gain with saturation and packs them as
// 16-bit little-endian PCM.
func amplify(samples []int16, gain int32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s) * gain
		v = max(min(v, math.MaxInt16), math.MinInt16)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

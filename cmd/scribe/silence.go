package main

import "time"

const (
	tickInterval    = 100 * time.Millisecond
	noVoiceWarnFor  = 8 * time.Second
	noVoiceCloseFor = 30 * time.Second

	// speechLevel is the RMS above which a tick counts as voiced.
	speechLevel = 0.02

	voicedMinRatio   = 0.10
	voicedClearRatio = 0.25 // stricter than voicedMinRatio so the warning does not flap
)

type silenceEvent int

const (
	silenceNone silenceEvent = iota
	silenceWarn
	silenceCleared
	silenceRepeat
	silenceAutoClose
)

// silenceMonitor watches the capture level while recording and reports
// long stretches without voice. Auto-close applies only when the
// recording would otherwise stay open indefinitely.
type silenceMonitor struct {
	autoClose bool
	warnTicks int
	window    []bool

	ticks    int
	voiced   int
	warned   bool
	lastWarn int
}

func newSilenceMonitor(autoClose bool) *silenceMonitor {
	return &silenceMonitor{
		autoClose: autoClose,
		warnTicks: int(noVoiceWarnFor / tickInterval),
		window:    make([]bool, int(noVoiceCloseFor/tickInterval)),
	}
}

// Level feeds one tick's RMS level.
func (m *silenceMonitor) Level(rms float64) silenceEvent {
	return m.Tick(rms >= speechLevel)
}

// recentRatio is the voiced share of the last n ticks.
func (m *silenceMonitor) recentRatio(n int) float64 {
	n = min(n, m.ticks)
	if n == 0 {
		return 1
	}
	size := len(m.window)
	count := 0
	for i := 1; i <= n; i++ {
		if m.window[(m.ticks-i)%size] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(voiced bool) silenceEvent {
	size := len(m.window)
	slot := m.ticks % size
	if m.ticks >= size && m.window[slot] {
		m.voiced--
	}
	m.window[slot] = voiced
	if voiced {
		m.voiced++
	}
	m.ticks++

	recent := m.recentRatio(m.warnTicks)
	switch {
	case !m.warned && m.ticks >= m.warnTicks && recent < voicedMinRatio:
		m.warned = true
		m.lastWarn = m.ticks
		return silenceWarn
	case m.warned && recent >= voicedClearRatio:
		m.warned = false
		return silenceCleared
	}

	if !m.autoClose {
		return silenceNone
	}
	if m.ticks >= size && float64(m.voiced)/float64(size) < voicedMinRatio {
		return silenceAutoClose
	}
	if m.warned && m.ticks-m.lastWarn >= m.warnTicks {
		m.lastWarn = m.ticks
		return silenceRepeat
	}
	return silenceNone
}

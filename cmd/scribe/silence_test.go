package main

import "testing"

func feed(m *silenceMonitor, voiced bool, n int) silenceEvent {
	var last silenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(voiced)
	}
	return last
}

func TestSilenceWarnAfterEightSeconds(t *testing.T) {
	m := newSilenceMonitor(false)
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != silenceNone {
			t.Fatalf("tick %d: unexpected event %d", i, ev)
		}
	}
	if ev := m.Tick(false); ev != silenceWarn {
		t.Fatalf("tick 80: got %d, want silenceWarn", ev)
	}
}

func TestSilenceWarnClearsOnVoice(t *testing.T) {
	m := newSilenceMonitor(false)
	feed(m, false, 80)
	for i := 0; i < 80; i++ {
		if m.Tick(true) == silenceCleared {
			return
		}
	}
	t.Fatal("warning never cleared")
}

func TestSilenceWarnSurvivesSparseNoise(t *testing.T) {
	m := newSilenceMonitor(false)
	feed(m, false, 80)
	for i := 0; i < 80; i++ {
		if m.Tick(i%10 == 0) == silenceCleared {
			t.Fatalf("10%% voiced ticks cleared the warning at tick %d", i)
		}
	}
}

func TestSilenceNoWarnWhileTalking(t *testing.T) {
	m := newSilenceMonitor(true)
	for i := 0; i < 500; i++ {
		if ev := m.Tick(i%10 < 7); ev == silenceWarn || ev == silenceAutoClose {
			t.Fatalf("tick %d: event %d during speech", i, ev)
		}
	}
}

func TestSilenceWarnOnlyOnce(t *testing.T) {
	m := newSilenceMonitor(false)
	warns := 0
	for i := 0; i < 300; i++ {
		switch m.Tick(false) {
		case silenceWarn:
			warns++
		case silenceRepeat, silenceAutoClose:
			t.Fatalf("tick %d: repeat or auto-close without autoClose", i)
		}
	}
	if warns != 1 {
		t.Errorf("got %d warnings, want 1", warns)
	}
}

func TestSilenceRepeatThenAutoClose(t *testing.T) {
	m := newSilenceMonitor(true)
	feed(m, false, 80)

	var repeats int
	for i := 81; i <= 400; i++ {
		switch m.Tick(false) {
		case silenceRepeat:
			if i >= 300 {
				t.Fatalf("repeat at tick %d, want auto-close", i)
			}
			repeats++
		case silenceAutoClose:
			if i != 300 {
				t.Errorf("auto-close at tick %d, want 300", i)
			}
			if repeats == 0 {
				t.Error("no repeat before auto-close")
			}
			return
		}
	}
	t.Fatal("no auto-close within 400 ticks")
}

func TestSilenceLevelThreshold(t *testing.T) {
	m := newSilenceMonitor(false)
	for i := 0; i < 80; i++ {
		m.Level(speechLevel)
	}
	if m.voiced != 80 {
		t.Errorf("voiced = %d, want 80 ticks at the threshold", m.voiced)
	}
	if ev := feed(m, false, 1); ev != silenceNone {
		t.Errorf("event = %d after voiced window", ev)
	}
}

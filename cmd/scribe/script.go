package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"scribe/audio"
	"scribe/config"
	"scribe/dictation"
	"scribe/log"
)

// runScript replays wavPath as the microphone and drives the controller
// from line commands read from in:
//
//	START | STOP | CANCEL    controller calls
//	WAIT                     block until the next cycle ends
//	SLEEP <ms>
//	QUIT
//
// Every status is written to out; a finished cycle also writes "> text".
func runScript(ctx context.Context, cfg *config.Config, wavPath string, realtime bool, in io.Reader, out io.Writer) error {
	fake, err := audio.NewFakeContextFromWAV(wavPath, realtime)
	if err != nil {
		return fmt.Errorf("loading %s: %w", wavPath, err)
	}

	var (
		mu       sync.Mutex
		s        *session
		terminal = make(chan struct{}, 64)
	)
	obs := dictation.ObserverFunc(func(st dictation.Status) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, st.String())
		if !st.Terminal() {
			return
		}
		if u := s.ctrl.Last(); u != nil && u.Outcome == dictation.OutcomeSuccess {
			fmt.Fprintln(out, ">", u.Text)
		}
		select {
		case terminal <- struct{}{}:
		default:
		}
	})

	mu.Lock()
	s, err = newSession(ctx, cfg, fake, sessionOptions{noPaste: true, observer: obs})
	mu.Unlock()
	if err != nil {
		return err
	}
	log.SessionStart(s.engine.Name(), "script:"+wavPath)
	defer func() {
		log.SessionEnd(s.ctrl.Completed())
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		s.Close(cctx)
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		var err error
		switch {
		case line == "":
			continue
		case line == "START":
			err = s.ctrl.BeginCapture()
		case line == "STOP":
			_, err = s.ctrl.EndCapture()
		case line == "CANCEL":
			err = s.ctrl.Cancel()
		case line == "WAIT":
			select {
			case <-terminal:
			case <-ctx.Done():
				return ctx.Err()
			}
		case line == "QUIT":
			return nil
		case strings.HasPrefix(line, "SLEEP "):
			ms, perr := strconv.Atoi(strings.TrimSpace(line[len("SLEEP "):]))
			if perr != nil {
				return fmt.Errorf("bad script line %q", line)
			}
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			return fmt.Errorf("unknown script command %q", line)
		}
		if err != nil {
			mu.Lock()
			fmt.Fprintf(out, "! %s: %v\n", line, err)
			mu.Unlock()
		}
	}
	return scanner.Err()
}

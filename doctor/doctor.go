// Package doctor runs environment diagnostics for scribe.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/audio"
	"scribe/clipboard"
	"scribe/encoder"
	"scribe/transcriber"
)

// Check is one named diagnostic. Run returns a short detail on success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// ErrSkipped marks a check that does not apply to this setup.
var ErrSkipped = errors.New("skipped")

type Env struct {
	Audio       audio.Context
	Device      *audio.DeviceInfo
	Engine      transcriber.Engine
	HistoryPath string
	// Record, when positive, captures that long from the microphone and
	// sends it to Engine.
	Record time.Duration
	// Clipboard enables the clipboard round trip and paste binding checks.
	Clipboard bool
}

func Checks(env Env) []Check {
	checks := []Check{
		{"Audio devices", func(context.Context) (string, error) { return checkDevices(env.Audio) }},
		{"Transcription engine", func(ctx context.Context) (string, error) { return checkEngine(ctx, env.Engine) }},
		{"History path", func(context.Context) (string, error) { return checkHistoryPath(env.HistoryPath) }},
	}
	if env.Record > 0 {
		checks = append(checks, Check{"Microphone and transcription", func(ctx context.Context) (string, error) {
			return checkMicrophone(ctx, env)
		}})
	}
	if env.Clipboard {
		checks = append(checks,
			Check{"Clipboard copy", func(context.Context) (string, error) { return checkClipboardCopy(3 * time.Second) }},
			Check{"Paste keystroke", func(context.Context) (string, error) { return clipboard.Verify() }},
		)
	}
	return checks
}

// Run executes checks in order and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "scribe doctor - system diagnostics")
	fmt.Fprintln(w, "==================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.Name)
		detail, err := c.Run(ctx)
		switch {
		case errors.Is(err, ErrSkipped):
			fmt.Fprintf(w, "  SKIP: %s\n", detail)
		case err != nil:
			failed++
			fmt.Fprintf(w, "  FAIL: %v\n", err)
		default:
			fmt.Fprintf(w, "  PASS: %s\n", detail)
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

func checkDevices(ctx audio.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("audio backend not initialized")
	}
	devices, err := ctx.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", audio.ErrDeviceUnavailable
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
		if audio.IsBluetooth(d.Name) {
			names[i] += " (bluetooth, narrowband)"
		}
	}
	return fmt.Sprintf("%d found: %s", len(devices), strings.Join(names, ", ")), nil
}

func checkEngine(ctx context.Context, e transcriber.Engine) (string, error) {
	if e == nil {
		return "no engine configured", ErrSkipped
	}
	hc, ok := e.(transcriber.HealthChecker)
	if !ok {
		return e.Name() + " has no health probe", ErrSkipped
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := hc.Check(ctx); err != nil {
		return "", err
	}
	return e.Name() + " reachable", nil
}

// checkHistoryPath verifies the directory exists or can be created and
// accepts new files.
func checkHistoryPath(path string) (string, error) {
	if path == "" {
		return "no history path configured", ErrSkipped
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return "", fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return path + " writable", nil
}

func checkMicrophone(ctx context.Context, env Env) (string, error) {
	if env.Audio == nil {
		return "", errors.New("audio backend not initialized")
	}
	buf := audio.NewBuffer(env.Audio, env.Device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err := buf.Arm(); err != nil {
		return "", err
	}
	select {
	case <-time.After(env.Record):
	case <-ctx.Done():
		buf.Discard()
		return "", ctx.Err()
	}
	level := buf.Level()
	pcm, err := buf.DisarmAndDrain()
	if err != nil {
		return "", fmt.Errorf("recording error: %w", err)
	}
	detail := fmt.Sprintf("recorded %.1fs (%.1f KB, level %.3f)",
		float64(len(pcm)/2)/encoder.SampleRate, float64(len(pcm))/1024, level)
	if env.Engine == nil {
		return detail, nil
	}

	res, err := env.Engine.Transcribe(ctx, pcm, transcriber.Options{VAD: true})
	if err != nil {
		return "", fmt.Errorf("transcription error: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	return fmt.Sprintf("%s, transcribed: %s", detail, text), nil
}

func checkClipboardCopy(timeout time.Duration) (string, error) {
	testStr := fmt.Sprintf("scribe-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("clipboard %s failed: %w", res.phase, res.err)
		}
		if res.readback != testStr {
			return "", fmt.Errorf("clipboard mismatch: wrote %q, got %q", testStr, res.readback)
		}
		return "clipboard write/read verified", nil
	case <-time.After(timeout):
		return "", errors.New("clipboard timed out (clipboard tool hung - display server not accessible?)")
	}
}

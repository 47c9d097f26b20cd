package doctor

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/audio"
	"scribe/transcriber"
)

func TestCheckDevices(t *testing.T) {
	detail, err := checkDevices(audio.NewFakeContext(nil, false))
	if err != nil || !strings.Contains(detail, "1 found: fake") {
		t.Errorf("checkDevices = %q, %v", detail, err)
	}

	none := audio.NewFakeContext(nil, false)
	none.NoDevices = true
	if _, err := checkDevices(none); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("no devices err = %v", err)
	}
	if _, err := checkDevices(nil); err == nil {
		t.Error("nil context should fail")
	}
}

func TestCheckEngine(t *testing.T) {
	if _, err := checkEngine(context.Background(), nil); !errors.Is(err, ErrSkipped) {
		t.Errorf("nil engine err = %v", err)
	}
	if _, err := checkEngine(context.Background(), transcriber.NewFake("", nil)); err != nil {
		t.Errorf("fake engine err = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	w := transcriber.NewWhisper(transcriber.Config{URL: srv.URL})
	if _, err := checkEngine(context.Background(), w); err == nil {
		t.Error("unhealthy sidecar passed")
	}
}

func TestCheckHistoryPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "history.json")
	if _, err := checkHistoryPath(path); err != nil {
		t.Fatalf("checkHistoryPath: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}

	blocker := filepath.Join(dir, "file")
	os.WriteFile(blocker, []byte("x"), 0644)
	if _, err := checkHistoryPath(filepath.Join(blocker, "history.json")); err == nil {
		t.Error("path under a regular file should fail")
	}
	if _, err := checkHistoryPath(""); !errors.Is(err, ErrSkipped) {
		t.Errorf("empty path err = %v", err)
	}
}

func TestCheckMicrophone(t *testing.T) {
	pcm := make([]byte, 16000*2)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	env := Env{
		Audio:  audio.NewFakeContext(pcm, false),
		Engine: transcriber.NewFake("testing one two", nil),
		Record: 10 * time.Millisecond,
	}
	detail, err := checkMicrophone(context.Background(), env)
	if err != nil {
		t.Fatalf("checkMicrophone: %v", err)
	}
	if !strings.Contains(detail, "recorded 1.0s") || !strings.Contains(detail, "transcribed: testing one two") {
		t.Errorf("detail = %q", detail)
	}
}

func TestRun(t *testing.T) {
	checks := []Check{
		{"ok", func(context.Context) (string, error) { return "fine", nil }},
		{"skip", func(context.Context) (string, error) { return "n/a", ErrSkipped }},
		{"bad", func(context.Context) (string, error) { return "", errors.New("broken") }},
	}
	var out bytes.Buffer
	if code := Run(context.Background(), &out, checks); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	for _, want := range []string{"[1/3] ok", "PASS: fine", "SKIP: n/a", "FAIL: broken", "1 check(s) failed"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if code := Run(context.Background(), &out, checks[:2]); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestChecksOptional(t *testing.T) {
	if n := len(Checks(Env{})); n != 3 {
		t.Errorf("default checks = %d, want 3", n)
	}
	if n := len(Checks(Env{Record: time.Second, Clipboard: true})); n != 6 {
		t.Errorf("all checks = %d, want 6", n)
	}
}

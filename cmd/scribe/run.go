package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"scribe/audio"
	"scribe/beep"
	"scribe/clipboard"
	"scribe/config"
	"scribe/dictation"
	"scribe/log"
	"scribe/transcriber"
)

const closeTimeout = 5 * time.Second

func newRunCmd(a *app) *cobra.Command {
	var (
		deviceName string
		noPaste    bool
		script     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the terminal dictation front-end",
		Long: "Space or Enter starts and stops a recording, Esc cancels it and q quits.\n" +
			"The refined text is saved to history, copied and pasted into the focused window.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if !cfg.Cues.Enabled {
				beep.Disable()
			}
			a.startLogging()
			if script != "" {
				return runScript(cmd.Context(), cfg, script, true, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if deviceName == "" {
				deviceName = cfg.Audio.Device
			}
			return runTUI(cmd.Context(), cfg, deviceName, noPaste)
		},
	}
	cmd.Flags().StringVar(&deviceName, "device", "", "microphone name or substring (default: audio.device, then system default)")
	cmd.Flags().BoolVar(&noPaste, "no-paste", false, "keep results in history only, do not touch the clipboard")
	cmd.Flags().StringVar(&script, "script", "", "replay this WAV file and read commands from stdin instead of the microphone")
	cmd.Flags().MarkHidden("script")
	return cmd
}

func runTUI(ctx context.Context, cfg *config.Config, deviceName string, noPaste bool) error {
	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer actx.Close()

	device, err := audio.FindDevice(actx, deviceName)
	if err != nil {
		return err
	}

	var program atomic.Pointer[tea.Program]
	toTUI := dictation.ObserverFunc(func(s dictation.Status) {
		if p := program.Load(); p != nil {
			p.Send(statusMsg{s})
		}
	})

	s, err := newSession(ctx, cfg, actx, sessionOptions{
		device:   device,
		noPaste:  noPaste,
		observer: fanOut(cueObserver(beep.Play), toTUI),
	})
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := s.Close(cctx); err != nil {
			log.Warnf("closing session: %v", err)
		}
	}()

	if cfg.Paste.Auto && !noPaste {
		go func() {
			if err := clipboard.Init(); err != nil {
				log.Warnf("paste init: %v", err)
			}
		}()
	}
	if hc, ok := s.engine.(transcriber.HealthChecker); ok {
		go func() {
			cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := hc.Check(cctx); err != nil {
				log.Warnf("engine health: %v", err)
			}
		}()
	}

	log.SessionStart(s.engine.Name(), deviceLabel(device))
	m := newTUIModel(s.ctrl, s.buffer, beep.Play)
	m.modeLine = modeLineText(cfg, s.engine)
	m.deviceLine = "mic: " + deviceLabel(device)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	program.Store(p)
	_, err = p.Run()
	log.SessionEnd(s.ctrl.Completed())
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func deviceLabel(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "system default"
	}
	if audio.IsBluetooth(dev.Name) {
		return dev.Name + " (BT!)"
	}
	return dev.Name
}

func modeLineText(cfg *config.Config, e transcriber.Engine) string {
	label := e.Name()
	if cfg.Engine.Language != "" {
		label += " (" + cfg.Engine.Language + ")"
	}
	return fmt.Sprintf("[%s | %s]", cfg.Engine.Format, label)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scribe/audio"
	"scribe/config"
	"scribe/doctor"
	"scribe/encoder"
	"scribe/history"
	"scribe/log"
	"scribe/transcriber"
)

var errNoSpeech = errors.New("no speech detected")

func newTranscribeCmd(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe and refine a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			a.startLogging()
			text, err := transcribeFile(cmd.Context(), cfg, args[0], save)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "append the result to history")
	return cmd
}

// transcribeFile runs the dictation pipeline over a recording instead of
// the microphone. Clipboard and paste are never touched.
func transcribeFile(ctx context.Context, cfg *config.Config, path string, save bool) (string, error) {
	pcm, rate, err := encoder.DecodeWAVFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	ecfg := engineConfig(cfg)
	ecfg.SampleRate = rate
	engine, err := transcriber.New(ecfg)
	if err != nil {
		return "", err
	}
	refiner, err := newRefiner(cfg)
	if err != nil {
		return "", err
	}

	res, err := engine.Transcribe(ctx, pcm, transcribeOptions(cfg))
	if errors.Is(err, transcriber.ErrNoAudioData) {
		return "", errNoSpeech
	}
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(res.Text)
	text := refiner.Refine(raw)
	if text == "" {
		return "", errNoSpeech
	}
	log.TranscriptionText(text)

	if save {
		store, err := history.Open(cfg.History.Backend, cfg.History.Path)
		if err != nil {
			return "", err
		}
		defer store.Close()
		e := history.NewEntry(text)
		e.Transcription = raw
		e.Metadata = &history.Metadata{
			ID:        uuid.NewString(),
			DurationS: float64(len(pcm)/2) / float64(rate),
			Engine:    engine.Name(),
			Language:  res.Language,
		}
		if _, err := store.Append(ctx, e); err != nil {
			return "", fmt.Errorf("saving to history: %w", err)
		}
	}
	return text, nil
}

func newRefineCmd(a *app) *cobra.Command {
	var (
		noContractions bool
		add            []string
	)
	cmd := &cobra.Command{
		Use:   "refine [TEXT...]",
		Short: "Apply jargon, spacing and capitalization fixes to text (reads stdin without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if noContractions {
				cfg.Refine.Contractions = false
			}
			r, err := newRefiner(cfg)
			if err != nil {
				return err
			}
			for _, m := range add {
				term, proper, err := parseMapping(m)
				if err != nil {
					return err
				}
				r.AddMapping(term, proper)
			}

			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(raw)
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.Refine(text))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noContractions, "no-contractions", false, "leave apostrophe-less contractions alone")
	cmd.Flags().StringArrayVar(&add, "add", nil, "extra jargon mapping term=Proper (repeatable)")
	return cmd
}

// parseMapping splits "term=Proper". The term may contain spaces.
func parseMapping(s string) (term, proper string, err error) {
	term, proper, ok := strings.Cut(s, "=")
	term, proper = strings.TrimSpace(term), strings.TrimSpace(proper)
	if !ok || term == "" || proper == "" {
		return "", "", fmt.Errorf("invalid mapping %q, want term=Proper", s)
	}
	return term, proper, nil
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit    int
		clearAll bool
		stats    bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, export or clear saved dictations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.History.Backend, cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			return runHistory(cmd.Context(), store, cmd.OutOrStdout(), historyOptions{
				limit: limit, clear: clearAll, stats: stats, json: asJSON,
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "show the newest N entries (0 = all)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete every entry")
	cmd.Flags().BoolVar(&stats, "stats", false, "show totals instead of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type historyOptions struct {
	limit int
	clear bool
	stats bool
	json  bool
}

func runHistory(ctx context.Context, store history.Store, w io.Writer, o historyOptions) error {
	switch {
	case o.clear:
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "History cleared.")
		return nil

	case o.stats:
		st, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		if o.json {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		fmt.Fprintf(w, "File:       %s (%.1f KB)\n", st.Path, st.SizeKB)
		fmt.Fprintf(w, "Entries:    %d\n", st.TotalEntries)
		fmt.Fprintf(w, "Characters: %d\n", st.TotalCharacters)
		if st.First != nil {
			fmt.Fprintf(w, "First:      %s\n", st.First.Timestamp)
			fmt.Fprintf(w, "Last:       %s\n", st.Last.Timestamp)
		}
		return nil

	case o.json && o.limit <= 0:
		return history.Export(ctx, store, w)
	}

	entries, err := store.List(ctx, o.limit)
	if err != nil {
		return err
	}
	if o.json {
		if entries == nil {
			entries = []history.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "[%s] %s\n", e.Timestamp, e.Content)
	}
	return nil
}

func newDevicesCmd(a *app) *cobra.Command {
	var pick bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List microphones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("initializing audio: %w", err)
			}
			defer actx.Close()
			out := cmd.OutOrStdout()

			if pick {
				dev, err := audio.SelectDevice(actx, os.Stdin, out)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Selected %q. Set audio.device in %s or pass --device to use it.\n", dev.Name, config.Path())
				return nil
			}

			configured := ""
			if cfg, err := a.config(); err == nil {
				configured = cfg.Audio.Device
			}
			return listDevices(actx, configured, out)
		},
	}
	cmd.Flags().BoolVar(&pick, "pick", false, "choose a device interactively")
	return cmd
}

func listDevices(actx audio.Context, configured string, w io.Writer) error {
	devices, err := actx.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return audio.ErrDeviceUnavailable
	}
	selected, _ := audio.FindDevice(actx, configured)
	for _, d := range devices {
		mark := " "
		if selected != nil && selected.ID == d.ID {
			mark = "*"
		}
		note := ""
		if audio.IsBluetooth(d.Name) {
			note = "  (bluetooth headset, narrowband)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, d.Name, note)
	}
	return nil
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.Path()
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			raw, err := cfg.YAML()
			if err != nil {
				return err
			}
			source := cfg.File
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n%s", source, raw)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func newDoctorCmd(a *app) *cobra.Command {
	var (
		record    time.Duration
		checkClip bool
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check audio, engine, clipboard and history setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks, cleanup := doctorChecks(a, doctor.Env{Record: record, Clipboard: checkClip})
			defer cleanup()
			if doctor.Run(cmd.Context(), cmd.OutOrStdout(), checks) != 0 {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&record, "record", 0, "also record this long from the microphone and transcribe it (e.g. 3s)")
	cmd.Flags().BoolVar(&checkClip, "clipboard", true, "check clipboard access and the paste keystroke")
	return cmd
}

// doctorChecks fills env from the configuration. A broken configuration
// becomes a failed check rather than aborting the run.
func doctorChecks(a *app, env doctor.Env) ([]doctor.Check, func()) {
	cfg, cfgErr := a.config()
	checks := []doctor.Check{{Name: "Configuration", Run: func(context.Context) (string, error) {
		switch {
		case cfgErr != nil:
			return "", cfgErr
		case cfg.File == "":
			return "built-in defaults (no config file)", nil
		default:
			return cfg.File, nil
		}
	}}}

	cleanup := func() {}
	if actx, err := audio.NewContext(); err == nil {
		env.Audio = actx
		cleanup = actx.Close
	}
	if cfgErr != nil {
		return append(checks, doctor.Checks(env)...), cleanup
	}

	env.HistoryPath = cfg.History.Path
	if env.Audio != nil {
		env.Device, _ = audio.FindDevice(env.Audio, cfg.Audio.Device)
	}
	engine, err := transcriber.New(engineConfig(cfg))
	if err != nil {
		checks = append(checks, doctor.Check{Name: "Engine settings", Run: func(context.Context) (string, error) {
			return "", err
		}})
	}
	env.Engine = engine
	return append(checks, doctor.Checks(env)...), cleanup
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			goVersion := runtime.Version()
			if info, ok := debug.ReadBuildInfo(); ok && info.GoVersion != "" {
				goVersion = info.GoVersion
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scribe %s (%s, %s/%s)\n", version, goVersion, runtime.GOOS, runtime.GOARCH)
		},
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"scribe/config"
	"scribe/log"
)

// app carries the global flags and the lazily loaded configuration.
type app struct {
	configPath string
	logPath    string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "scribe",
		Short: "Push-to-talk dictation for the terminal",
		Long: "scribe records speech while you hold the floor, transcribes it with a local or\n" +
			"hosted Whisper engine, cleans up technical jargon and pastes the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, err := log.ResolveDir(a.logPath)
			if err != nil {
				return fmt.Errorf("resolving log directory: %w", err)
			}
			log.SetDir(dir)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: "+config.Path()+")")
	root.PersistentFlags().StringVar(&a.logPath, "log-path", "", "log directory (default: OS-specific location, use ./ for current dir)")

	root.AddCommand(
		newRunCmd(a),
		newTranscribeCmd(a),
		newRefineCmd(a),
		newHistoryCmd(a),
		newDevicesCmd(a),
		newConfigCmd(a),
		newDoctorCmd(a),
		newVersionCmd(),
	)
	return root
}

// config loads and validates the configuration once per process.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	var opts []config.Option
	if a.configPath != "" {
		opts = append(opts, config.WithConfigFile(a.configPath))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// startLogging opens the diagnostic logs and routes runtime crashes to
// crash_log.txt next to them.
func (a *app) startLogging() {
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
		return
	}
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
}

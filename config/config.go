// Package config loads scribe settings from a YAML file, a .env file and
// SCRIBE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SCRIBE"

// keyDelim replaces viper's "." so jargon keys such as "node.js" stay flat.
const keyDelim = "::"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Audio   Audio   `mapstructure:"audio" yaml:"audio"`
	Engine  Engine  `mapstructure:"engine" yaml:"engine"`
	Refine  Refine  `mapstructure:"refine" yaml:"refine"`
	History History `mapstructure:"history" yaml:"history"`
	Paste   Paste   `mapstructure:"paste" yaml:"paste"`
	Cues    Cues    `mapstructure:"cues" yaml:"cues"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

type Audio struct {
	SampleRate  int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels    int           `mapstructure:"channels" yaml:"channels"`
	Device      string        `mapstructure:"device" yaml:"device"`
	MinDuration time.Duration `mapstructure:"min_duration" yaml:"min_duration"`
}

type Engine struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	URL         string        `mapstructure:"url" yaml:"url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model       string        `mapstructure:"model" yaml:"model"`
	ComputeType string        `mapstructure:"compute_type" yaml:"compute_type"`
	Device      string        `mapstructure:"device" yaml:"device"`
	Language    string        `mapstructure:"language" yaml:"language"`
	VAD         bool          `mapstructure:"vad" yaml:"vad"`
	Prompt      string        `mapstructure:"prompt" yaml:"prompt"`
	Keywords    []string      `mapstructure:"keywords" yaml:"keywords"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries     int           `mapstructure:"retries" yaml:"retries"`
	Format      string        `mapstructure:"format" yaml:"format"`
}

type Refine struct {
	Contractions bool              `mapstructure:"contractions" yaml:"contractions"`
	JargonFile   string            `mapstructure:"jargon_file" yaml:"jargon_file"`
	Jargon       map[string]string `mapstructure:"jargon" yaml:"jargon"`
}

type History struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type Paste struct {
	Auto  bool          `mapstructure:"auto" yaml:"auto"`
	Delay time.Duration `mapstructure:"delay" yaml:"delay"`
}

type Cues struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Audio: Audio{
			SampleRate:  16000,
			Channels:    1,
			MinDuration: 100 * time.Millisecond,
		},
		Engine: Engine{
			Provider:    "whisper",
			URL:         "http://localhost:8387",
			Model:       "base",
			ComputeType: "int8",
			Device:      "cpu",
			VAD:         true,
			Timeout:     120 * time.Second,
			Retries:     2,
			Format:      "flac",
		},
		Refine: Refine{
			Contractions: true,
			Jargon:       map[string]string{},
		},
		History: History{
			Backend: "json",
			Path:    filepath.Join(DataDir(), "history.json"),
		},
		Paste: Paste{
			Auto:  true,
			Delay: 100 * time.Millisecond,
		},
	}
}

type loaderConfig struct {
	configFile string
	envFiles   []string
}

type Option func(*loaderConfig)

// WithConfigFile reads path instead of searching the default location.
// A missing explicit file is an error.
func WithConfigFile(path string) Option {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile replaces the .env search list.
func WithEnvFile(paths ...string) Option {
	return func(lc *loaderConfig) { lc.envFiles = paths }
}

// Load resolves the effective configuration and validates it.
func Load(opts ...Option) (*Config, error) {
	lc := loaderConfig{envFiles: []string{".env", filepath.Join(Dir(), ".env")}}
	for _, opt := range opts {
		opt(&lc)
	}

	for _, f := range lc.envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelim))
	setDefaults(v, Default())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelim, "_"))
	v.AutomaticEnv()

	file := lc.configFile
	if file == "" {
		if p := os.Getenv("SCRIBE_CONFIG"); p != "" {
			file = p
		}
	}
	switch {
	case file != "":
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	default:
		if p := Path(); fileExists(p) {
			v.SetConfigFile(p)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", p, err)
			}
			file = p
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	cfg.History.Path = expandHome(cfg.History.Path)
	cfg.Refine.JargonFile = expandHome(cfg.Refine.JargonFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	set := func(key string, value any) {
		v.SetDefault(strings.ReplaceAll(key, ".", keyDelim), value)
	}
	set("audio.sample_rate", d.Audio.SampleRate)
	set("audio.channels", d.Audio.Channels)
	set("audio.device", d.Audio.Device)
	set("audio.min_duration", d.Audio.MinDuration)
	set("engine.provider", d.Engine.Provider)
	set("engine.url", d.Engine.URL)
	set("engine.api_key", d.Engine.APIKey)
	set("engine.model", d.Engine.Model)
	set("engine.compute_type", d.Engine.ComputeType)
	set("engine.device", d.Engine.Device)
	set("engine.language", d.Engine.Language)
	set("engine.vad", d.Engine.VAD)
	set("engine.prompt", d.Engine.Prompt)
	set("engine.keywords", d.Engine.Keywords)
	set("engine.timeout", d.Engine.Timeout)
	set("engine.retries", d.Engine.Retries)
	set("engine.format", d.Engine.Format)
	set("refine.contractions", d.Refine.Contractions)
	set("refine.jargon_file", d.Refine.JargonFile)
	set("refine.jargon", d.Refine.Jargon)
	set("history.backend", d.History.Backend)
	set("history.path", d.History.Path)
	set("paste.auto", d.Paste.Auto)
	set("paste.delay", d.Paste.Delay)
	set("cues.enabled", d.Cues.Enabled)
}

// Validate reports every problem at once, each wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000 {
		bad("audio.sample_rate %d outside 8000..48000", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 {
		bad("audio.channels must be 1, got %d", c.Audio.Channels)
	}
	if c.Audio.MinDuration < 0 {
		bad("audio.min_duration is negative")
	}
	switch c.Engine.Provider {
	case "whisper", "groq", "openai", "fake":
	default:
		bad("unknown engine.provider %q", c.Engine.Provider)
	}
	switch c.Engine.Format {
	case "flac", "wav":
	default:
		bad("unknown engine.format %q", c.Engine.Format)
	}
	if c.Engine.Timeout < 0 {
		bad("engine.timeout is negative")
	}
	if c.Engine.Retries < 0 {
		bad("engine.retries is negative")
	}
	switch c.History.Backend {
	case "json", "sqlite":
	default:
		bad("unknown history.backend %q", c.History.Backend)
	}
	if c.History.Path == "" {
		bad("history.path is empty")
	}
	if c.Paste.Delay < 0 {
		bad("paste.delay is negative")
	}
	return errors.Join(errs...)
}

// MaskedAPIKey shows only the last four characters of the engine key.
func (c *Config) MaskedAPIKey() string {
	k := c.Engine.APIKey
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", len(k)-4) + k[len(k)-4:]
}

// YAML renders c with the API key masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	out.Engine.APIKey = c.MaskedAPIKey()
	return yaml.Marshal(out)
}

// WriteDefault writes the default configuration to path. An existing
// file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Package config loads proxange.toml, .env files and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/scheduler"
)

// DefaultPath is the config file read when -config is not given
const DefaultPath = "proxange.toml"

// Probe kinds
const (
	ProbeMock = "mock"
	ProbeHTTP = "http"
)

// Config is the decoded configuration, every section optional
type Config struct {
	Rotation  Rotation  `toml:"rotation"`
	Animation Animation `toml:"animation"`
	Probe     Probe     `toml:"probe"`
	History   History   `toml:"history"`
	Events    Events    `toml:"events"`
	Audio     Audio     `toml:"audio"`
	Proxies   Proxies   `toml:"proxies"`
}

type Rotation struct {
	// Interval is the auto-rotation period in seconds, clamped to [10, 300]
	Interval int `toml:"interval"`
}

type Animation struct {
	Entities     int      `toml:"entities"`
	Tick         duration `toml:"tick"`
	LinkDistance float64  `toml:"link-distance"`
}

type Probe struct {
	// Kind selects the identity source: "mock" or "http"
	Kind     string   `toml:"kind"`
	ProxyURL string   `toml:"proxy-url"`
	Endpoint string   `toml:"endpoint"`
	Timeout  duration `toml:"timeout"`
	Retries  int      `toml:"retries"`
	Limiter  Limiter  `toml:"limiter"`
}

type History struct {
	// Path of the SQLite file; empty disables history
	Path string `toml:"path"`
}

type Events struct {
	// NATSURL enables event export when set
	NATSURL string `toml:"nats-url"`
	Subject string `toml:"subject"`
	// Embedded starts an in-process NATS server and exports to it
	Embedded bool `toml:"embedded"`
}

type Audio struct {
	Enabled bool `toml:"enabled"`
}

type Proxies struct {
	// File is a YAML proxy list; empty or missing uses the built-in list
	File string `toml:"file"`
}

// Limiter bounds how often the identity probe may run
type Limiter struct {
	Every duration `toml:"every"`
	N     int      `toml:"n"`
}

// Limiter builds the rate limiter, nil when throttling is disabled
func (l *Limiter) Limiter() *rate.Limiter {
	if l.Every.Duration <= 0 || l.N <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(l.Every.Duration), l.N)
}

// duration wraps time.Duration for "5s"-style values
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Rotation: Rotation{Interval: constants.DefaultIntervalSeconds},
		Animation: Animation{
			Entities:     constants.NetworkEntityCount,
			Tick:         duration{constants.AnimationTickInterval},
			LinkDistance: constants.LinkDistance,
		},
		Probe: Probe{
			Kind:     ProbeMock,
			ProxyURL: "socks5h://127.0.0.1:9050",
			Endpoint: "https://httpbin.org/ip",
			Timeout:  duration{10 * time.Second},
			Retries:  3,
			Limiter:  Limiter{Every: duration{2 * time.Second}, N: 3},
		},
		History: History{Path: "proxange.db"},
		Events:  Events{Subject: "proxange.events"},
		Audio:   Audio{Enabled: true},
		Proxies: Proxies{File: "proxies.yaml"},
	}
}

// errUnknownConfig lists keys present in the file but not in Config
type errUnknownConfig []string

func (e errUnknownConfig) Error() string {
	return "unknown config keys: [" + strings.Join(e, ", ") + "]"
}

// Load decodes path over the defaults
// A missing file is not an error; unknown keys are
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	meta, err := toml.DecodeFile(path, &c)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		var err errUnknownConfig
		for _, key := range undecoded {
			err = append(err, key.String())
		}
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate normalizes ranges and rejects unusable values
func (c *Config) Validate() error {
	c.Rotation.Interval = scheduler.ClampInterval(c.Rotation.Interval)

	switch c.Probe.Kind {
	case ProbeMock, ProbeHTTP:
	default:
		return fmt.Errorf("invalid probe kind %q (want %q or %q)", c.Probe.Kind, ProbeMock, ProbeHTTP)
	}
	if c.Animation.Entities < 0 {
		return fmt.Errorf("invalid entity count %d", c.Animation.Entities)
	}
	if c.Animation.Tick.Duration <= 0 {
		c.Animation.Tick.Duration = constants.AnimationTickInterval
	}
	if c.Animation.LinkDistance <= 0 {
		c.Animation.LinkDistance = constants.LinkDistance
	}
	if c.Probe.Timeout.Duration <= 0 {
		return fmt.Errorf("invalid probe timeout %s", c.Probe.Timeout.Duration)
	}
	if c.Probe.Retries < 1 {
		c.Probe.Retries = 1
	}
	return nil
}

// LoadEnv loads .env style files into the process environment
// Missing files are skipped; existing variables are not overwritten
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides c from environment variables read through getenv
// INTERVALO_TEMPO is the variable read by the legacy changer script; PROXANGE_INTERVAL wins over it
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	for _, key := range []string{"INTERVALO_TEMPO", "PROXANGE_INTERVAL"} {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		c.Rotation.Interval = n
	}
	if v := getenv("PROXANGE_PROBE"); v != "" {
		c.Probe.Kind = strings.ToLower(strings.TrimSpace(v))
	}
	if v := getenv("PROXANGE_PROXY_URL"); v != "" {
		c.Probe.ProxyURL = v
	}
	if v := getenv("PROXANGE_NATS_URL"); v != "" {
		c.Events.NATSURL = v
	}
	if v, ok := lookup(getenv, "PROXANGE_DB"); ok {
		c.History.Path = v
	}
	return c.Validate()
}

// lookup treats "-" as an explicit empty value so PROXANGE_DB=- disables history
func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	switch v {
	case "":
		return "", false
	case "-":
		return "", true
	}
	return v, true
}

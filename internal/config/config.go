// Package config resolves the effective server settings from defaults,
// an optional sewa.yaml in the working directory, and command-line flags.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is where the server starts looking for a free port.
	DefaultPort = 8000

	defaultMaxPortAttempts = 100
	defaultDebounce        = 300 * time.Millisecond
	defaultShutdownTimeout = 5 * time.Second
)

// Config holds every knob the server reads. Zero values are not meaningful;
// build instances through Default or Load.
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Root string `yaml:"root"`

	// EntryPoints are the pages linked in the startup banner.
	EntryPoints []string `yaml:"entryPoints"`

	LiveReload bool `yaml:"liveReload"`
	Compress   bool `yaml:"compress"`
	Quiet      bool `yaml:"quiet"`
	Stats      bool `yaml:"stats"`

	// MimeTypes maps file extensions to the content type forced onto the
	// response, bypassing the delegate's inference for those extensions.
	MimeTypes map[string]string `yaml:"mimeTypes"`

	// Headers are extra fixed headers attached to every response.
	Headers map[string]string `yaml:"headers"`

	MaxPortAttempts  int           `yaml:"maxPortAttempts"`
	DebounceDuration time.Duration `yaml:"debounceDuration"`
	ShutdownTimeout  time.Duration `yaml:"shutdownTimeout"`
}

// DefaultMimeTypes returns the content types served regardless of what the
// delegate would infer. Browsers refuse to instantiate WebAssembly, and some
// refuse module scripts, when the type is sniffed or generic.
func DefaultMimeTypes() map[string]string {
	return map[string]string{
		".js":   "application/javascript",
		".wasm": "application/wasm",
	}
}

// Default returns the built-in configuration. Root is left empty here; Load
// resolves it to the executable's directory when nothing else sets it.
func Default() *Config {
	return &Config{
		Port:             DefaultPort,
		Host:             "",
		Root:             "",
		EntryPoints:      []string{"native-player.html", "simple.html"},
		LiveReload:       true,
		Compress:         true,
		Quiet:            false,
		Stats:            true,
		MimeTypes:        DefaultMimeTypes(),
		Headers:          map[string]string{},
		MaxPortAttempts:  defaultMaxPortAttempts,
		DebounceDuration: defaultDebounce,
		ShutdownTimeout:  defaultShutdownTimeout,
	}
}

// Load builds the effective configuration. Precedence, lowest to highest:
// built-in defaults, sewa.yaml from the working directory, flags.
func Load(args []string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile("sewa.yaml"); err == nil {
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			fmt.Printf("⚠️  Ignoring sewa.yaml: %v\n", uerr)
			cfg = Default()
		}
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	port := fs.Int("port", cfg.Port, "Port to listen on")
	host := fs.String("host", cfg.Host, "Host or IP to bind, empty for all interfaces")
	root := fs.String("root", cfg.Root, "Directory to serve")
	live := fs.Bool("live", cfg.LiveReload, "Enable live reload via /events")
	compress := fs.Bool("compress", cfg.Compress, "Enable gzip responses")
	quiet := fs.Bool("quiet", cfg.Quiet, "Silence per-request logs")
	stats := fs.Bool("stats", cfg.Stats, "Record request statistics")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Port = *port
	cfg.Host = *host
	cfg.Root = *root
	cfg.LiveReload = *live
	cfg.Compress = *compress
	cfg.Quiet = *quiet
	cfg.Stats = *stats

	if cfg.Root == "" {
		cfg.Root = DefaultRoot()
	}
	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", cfg.Root, err)
	}
	cfg.Root = absRoot

	cfg.validate()
	return cfg, nil
}

// ParsePort interprets the positional port argument.
func ParsePort(arg string) (int, error) {
	port, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("port must be a number, got %q", arg)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d is outside 1-65535", port)
	}
	return port, nil
}

// DefaultRoot is the directory containing the running executable, so a sewa
// binary dropped next to its content serves that content no matter where it
// is launched from.
func DefaultRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// validate clamps out-of-range values back to something usable instead of
// failing the run.
func (c *Config) validate() {
	if c.Port < 1 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	if c.MaxPortAttempts < 1 {
		c.MaxPortAttempts = 1
	}
	if c.MaxPortAttempts > 1000 {
		c.MaxPortAttempts = 1000
	}
	if c.DebounceDuration < 10*time.Millisecond {
		c.DebounceDuration = 10 * time.Millisecond
	}
	if c.DebounceDuration > 5*time.Second {
		c.DebounceDuration = 5 * time.Second
	}
	if c.ShutdownTimeout < time.Second {
		c.ShutdownTimeout = time.Second
	}
	if c.ShutdownTimeout > 60*time.Second {
		c.ShutdownTimeout = 60 * time.Second
	}
	if c.MimeTypes == nil {
		c.MimeTypes = map[string]string{}
	}
	for ext, ctype := range DefaultMimeTypes() {
		if _, ok := c.MimeTypes[ext]; !ok {
			c.MimeTypes[ext] = ctype
		}
	}
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
}

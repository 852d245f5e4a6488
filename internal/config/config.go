// Package config handles command-line argument parsing and the persisted
// settings file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/joe/lndp/internal/copyengine"
)

// Default timeouts.
const (
	DefaultDiscoveryTimeout = 5 * time.Second
	DefaultBrowseDuration   = 3 * time.Second
)

// ErrNoCommand is returned when no subcommand is given.
var ErrNoCommand = errors.New("no command given (try lndp --help)")

// Selection names accepted by copy --select.
const (
	SelectAll    = "all"
	SelectImages = "images"
	SelectRaw    = "raw"
)

// Config holds the parsed command line.
type Config struct {
	LogLevel     string `arg:"--log-level,env:LNDP_LOG_LEVEL" default:"info" help:"debug|info|warn|error" validate:"oneof=debug info warn error"`
	LogFormat    string `arg:"--log-format" default:"console" help:"console|json" validate:"oneof=console json"`
	LogFile      string `arg:"--log-file" help:"write logs to this file (default: lndp.log in the user cache dir while the progress view is shown)"`
	SettingsPath string `arg:"--settings,env:LNDP_SETTINGS" help:"settings file (default: lndp/settings.toml in the user config dir)"`

	Serve    *ServeCmd    `arg:"subcommand:serve" help:"share a folder on the local network"`
	List     *ListCmd     `arg:"subcommand:ls" help:"list a folder"`
	Get      *GetCmd      `arg:"subcommand:get" help:"download one remote document"`
	Copy     *CopyCmd     `arg:"subcommand:copy" help:"copy a folder's contents into another folder"`
	Discover *DiscoverCmd `arg:"subcommand:discover" help:"list servers on the local network"`
	Settings *SettingsCmd `arg:"subcommand:settings" help:"show or change persisted settings"`
}

// ServeCmd shares a folder.
type ServeCmd struct {
	Folder      string `arg:"positional" help:"folder or sftp:// location to share (default: publicFolderRootUri setting)"`
	Name        string `arg:"-n,--name" help:"server name (default: serverName setting)"`
	Host        string `arg:"--host" help:"address to bind (default: the private IPv4 address)"`
	Port        int    `arg:"-p,--port" default:"1234" validate:"min=0,max=65535"`
	Writable    bool   `arg:"-w,--writable" help:"accept create, append and rename requests"`
	TLSCert     string `arg:"--tls-cert" help:"serve HTTPS with this certificate" validate:"required_with=TLSKey"`
	TLSKey      string `arg:"--tls-key" help:"private key for --tls-cert" validate:"required_with=TLSCert"`
	NoAuth      bool   `arg:"--no-auth" help:"accept requests without a bearer token"`
	NoAdvertise bool   `arg:"--no-advertise" help:"do not announce the server over mDNS"`
	MetricsAddr string `arg:"--metrics-addr" help:"also serve Prometheus metrics on this address" validate:"omitempty,hostname_port"`
}

// ListCmd lists a folder.
type ListCmd struct {
	Location    string        `arg:"positional,required" help:"local path, sftp://, lndp://service/path or http(s):// location" validate:"required"`
	Summary     bool          `arg:"-s,--summary" help:"print file, folder and byte totals of the whole tree"`
	Timeout     time.Duration `arg:"--timeout" default:"5s" help:"how long to wait for a service to resolve" validate:"gt=0"`
	HTTPTimeout time.Duration `arg:"--http-timeout" default:"20s" help:"bound on each request to a remote server" validate:"gt=0"`
	Insecure    bool          `arg:"--insecure" help:"accept self-signed certificates"`
}

// GetCmd downloads one document.
type GetCmd struct {
	Location    string        `arg:"positional,required" help:"lndp://service/path or http(s):// location of a file" validate:"required"`
	Output      string        `arg:"-o,--output" help:"output file (default: the document name)"`
	Timeout     time.Duration `arg:"--timeout" default:"5s" help:"how long to wait for a service to resolve" validate:"gt=0"`
	HTTPTimeout time.Duration `arg:"--http-timeout" default:"20s" help:"bound on each request to a remote server" validate:"gt=0"`
	Insecure    bool          `arg:"--insecure" help:"accept self-signed certificates"`
}

// CopyCmd copies the contents of one folder into another.
type CopyCmd struct {
	Source      string              `arg:"positional,required" help:"source folder location" validate:"required"`
	Dest        string              `arg:"positional,required" help:"destination folder location" validate:"required"`
	Mode        copyengine.CopyMode `arg:"-m,--mode" default:"full" help:"full|small|update"`
	Select      string              `arg:"--select" default:"all" help:"entries of the source folder to copy: all|images|raw" validate:"oneof=all images raw"`
	Include     []string            `arg:"--include,separate" help:"only copy files matching this glob (repeatable)"`
	Exclude     []string            `arg:"--exclude,separate" help:"skip files matching this glob (repeatable)"`
	NoTUI       bool                `arg:"--no-tui" help:"log progress instead of showing the progress view"`
	Timeout     time.Duration       `arg:"--timeout" default:"5s" help:"how long to wait for a service to resolve" validate:"gt=0"`
	HTTPTimeout time.Duration       `arg:"--http-timeout" default:"20s" help:"bound on each request to a remote server" validate:"gt=0"`
	Insecure    bool                `arg:"--insecure" help:"accept self-signed certificates"`
}

// DiscoverCmd browses for servers.
type DiscoverCmd struct {
	Duration time.Duration `arg:"-d,--duration" default:"3s" help:"how long to browse" validate:"gt=0"`
}

// SettingsCmd shows or changes settings: no arguments prints every key, a
// key prints its value, a key and value stores it.
type SettingsCmd struct {
	Key   string `arg:"positional" help:"setting key"`
	Value string `arg:"positional" help:"new value"`
	Clear bool   `arg:"--clear" help:"reset the key to an empty value"`
}

// Description returns the program description for go-arg.
func (Config) Description() string {
	return "Share, browse and copy folders between devices on the local network"
}

// Version returns the version string for go-arg.
func (Config) Version() string {
	return "lndp 1.0.0"
}

// ParseFlags parses os.Args and exits on --help, --version or a usage error.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	parser := arg.MustParse(cfg)
	if parser.Subcommand() == nil {
		parser.WriteHelp(os.Stderr)
		return nil, ErrNoCommand
	}

	return PostProcessConfig(cfg)
}

// Parse parses args without exiting. Help and version requests are returned
// as arg.ErrHelp and arg.ErrVersion after the text is written to w.
func Parse(args []string, w io.Writer) (*Config, error) {
	cfg := &Config{}

	parser, err := arg.NewParser(arg.Config{Program: "lndp"}, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build argument parser: %w", err)
	}

	err = parser.Parse(args)

	switch {
	case errors.Is(err, arg.ErrHelp):
		parser.WriteHelpForSubcommand(w, parser.SubcommandNames()...) //nolint:errcheck // Best-effort output
		return nil, err //nolint:wrapcheck // Sentinel for the caller
	case errors.Is(err, arg.ErrVersion):
		_, _ = fmt.Fprintln(w, cfg.Version())
		return nil, err //nolint:wrapcheck // Sentinel for the caller
	case err != nil:
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	if parser.Subcommand() == nil {
		return nil, ErrNoCommand
	}

	return PostProcessConfig(cfg)
}

// PostProcessConfig validates a parsed config and fills in defaults that
// depend on the environment.
func PostProcessConfig(cfg *Config) (*Config, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.SettingsPath == "" {
		path, err := DefaultSettingsPath()
		if err != nil {
			return nil, err
		}

		cfg.SettingsPath = path
	}

	return cfg, nil
}

// DefaultSettingsPath returns lndp/settings.toml in the user config dir.
func DefaultSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}

	return filepath.Join(dir, "lndp", "settings.toml"), nil
}

// DefaultLogPath returns lndp/lndp.log in the user cache dir.
func DefaultLogPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate cache dir: %w", err)
	}

	return filepath.Join(dir, "lndp", "lndp.log"), nil
}

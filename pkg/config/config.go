// Package config loads the service configuration from an optional TOML file.
//
//	[gallery]
//	package_host = "https://www.nuget.org"
//	package_ttl = "365d"
//	search_ttl = "15m"
//	framework_assemblies = ["mscorlib", "netstandard"]
//
//	[server]
//	addr = ":8080"
//	sweep_interval = "10m"
//
// Missing keys keep their defaults.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/nugallery/pkg/errors"
	"github.com/matzehuels/nugallery/pkg/gallery"
	"github.com/matzehuels/nugallery/pkg/integrations"
	nugetapi "github.com/matzehuels/nugallery/pkg/integrations/nuget"
	"github.com/matzehuels/nugallery/pkg/nuget"
)

// EnvPath names the environment variable consulted when no config path is
// given explicitly.
const EnvPath = "NUGALLERY_CONFIG"

// Config is the root of the configuration file.
type Config struct {
	Gallery Gallery `toml:"gallery"`
	Server  Server  `toml:"server"`
}

// Gallery configures registry endpoints and cache lifetimes.
type Gallery struct {
	PackageHost         string   `toml:"package_host"`
	SearchHost          string   `toml:"search_host"`
	IndexHost           string   `toml:"index_host"`
	PackageTTL          Duration `toml:"package_ttl"`
	SearchTTL           Duration `toml:"search_ttl"`
	VersionsTTL         Duration `toml:"versions_ttl"`
	HTTPTimeout         Duration `toml:"http_timeout"`
	FrameworkAssemblies []string `toml:"framework_assemblies"`
}

// Server configures the HTTP API.
type Server struct {
	Addr          string   `toml:"addr"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Gallery: Gallery{
			PackageHost:         nugetapi.DefaultPackageHost,
			SearchHost:          nugetapi.DefaultSearchHost,
			IndexHost:           nugetapi.DefaultIndexHost,
			PackageTTL:          Duration(gallery.DefaultPackageTTL),
			SearchTTL:           Duration(gallery.DefaultSearchTTL),
			VersionsTTL:         Duration(gallery.DefaultVersionsTTL),
			HTTPTimeout:         Duration(integrations.DefaultTimeout),
			FrameworkAssemblies: slices.Clone(nuget.DefaultFrameworkAssemblies),
		},
		Server: Server{
			Addr:          ":8080",
			SweepInterval: Duration(10 * time.Minute),
		},
	}
}

// Load reads the file at path over the defaults. An empty path falls back
// to $NUGALLERY_CONFIG, and to the defaults alone when that is unset too.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes TOML into cfg, rejecting unknown keys and invalid values.
func Parse(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	for name, d := range map[string]Duration{
		"gallery.package_ttl":   c.Gallery.PackageTTL,
		"gallery.search_ttl":    c.Gallery.SearchTTL,
		"gallery.versions_ttl":  c.Gallery.VersionsTTL,
		"gallery.http_timeout":  c.Gallery.HTTPTimeout,
		"server.sweep_interval": c.Server.SweepInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}

// GalleryOptions converts the gallery section into gallery options. The
// registry client is built from the configured hosts and timeout.
func (c Config) GalleryOptions() gallery.Options {
	g := c.Gallery
	return gallery.Options{
		Registry: nugetapi.NewClient(nugetapi.Options{
			PackageHost: g.PackageHost,
			SearchHost:  g.SearchHost,
			IndexHost:   g.IndexHost,
			HTTPClient:  integrations.NewHTTPClient(g.HTTPTimeout.Std()),
		}),
		PackageTTL:          g.PackageTTL.Std(),
		SearchTTL:           g.SearchTTL.Std(),
		VersionsTTL:         g.VersionsTTL.Std(),
		FrameworkAssemblies: g.FrameworkAssemblies,
	}
}

// Duration is a time.Duration that accepts a trailing "d" for days in
// addition to the units of time.ParseDuration.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) String() string {
	v := time.Duration(d)
	if v > 0 && v%(24*time.Hour) == 0 {
		return strconv.FormatInt(int64(v/(24*time.Hour)), 10) + "d"
	}
	return v.String()
}

// ParseDuration parses "365d", "1.5d" or any time.ParseDuration string.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(s)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/nugallery/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 365*24*time.Hour, cfg.Gallery.PackageTTL.Std())
	assert.Equal(t, 15*time.Minute, cfg.Gallery.SearchTTL.Std())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Contains(t, cfg.Gallery.FrameworkAssemblies, "netstandard")
}

func TestParse(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
[gallery]
package_host = "http://localhost:5555"
package_ttl = "7d"
search_ttl = "30s"
framework_assemblies = ["mscorlib"]

[server]
addr = "127.0.0.1:9000"
`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5555", cfg.Gallery.PackageHost)
	assert.Equal(t, 7*24*time.Hour, cfg.Gallery.PackageTTL.Std())
	assert.Equal(t, 30*time.Second, cfg.Gallery.SearchTTL.Std())
	assert.Equal(t, 15*time.Minute, cfg.Gallery.VersionsTTL.Std(), "unset keys keep defaults")
	assert.Equal(t, []string{"mscorlib"}, cfg.Gallery.FrameworkAssemblies)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	opts := cfg.GalleryOptions()
	assert.NotNil(t, opts.Registry)
	assert.Equal(t, 7*24*time.Hour, opts.PackageTTL)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Syntax", `[gallery`},
		{"UnknownKey", "[gallery]\ncolour = \"blue\""},
		{"BadDuration", "[gallery]\nsearch_ttl = \"soon\""},
		{"NonPositive", "[server]\nsweep_interval = \"0s\""},
		{"EmptyAddr", "[server]\naddr = \" \""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, Parse([]byte(tt.input), &cfg))
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvPath, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)

	path := filepath.Join(t.TempDir(), "nugallery.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9999\"\n"), 0o644))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)

	t.Setenv(EnvPath, path)
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"365d", 365 * 24 * time.Hour, false},
		{"1.5d", 36 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{" 10s ", 10 * time.Second, false},
		{"xd", 0, true},
		{"later", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.Equal(t, "365d", Duration(365*24*time.Hour).String())
	assert.Equal(t, "15m0s", Duration(15*time.Minute).String())
}

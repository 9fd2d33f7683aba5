// Package cli implements the nugallery command-line interface.
//
// The commands share one gallery built from the configuration file, so a
// single invocation never downloads a package twice:
//   - serve: run the HTTP API
//   - package, versions: inspect a package and its version index
//   - resolve: find the package file that provides an assembly
//   - search: query the registry
//   - graph: crawl and render a dependency graph
//
// All commands support --verbose (-v) for debug logging, which also logs
// every registry request and cache population.
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nugallery/pkg/buildinfo"
	"github.com/matzehuels/nugallery/pkg/config"
	"github.com/matzehuels/nugallery/pkg/gallery"
	"github.com/matzehuels/nugallery/pkg/observability"
)

const appName = "nugallery"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	out        io.Writer // command output
	errOut     io.Writer // logs and spinners
	configPath string
	verbose    bool

	// gallery is built lazily by galleryFor and reused across calls.
	gallery *gallery.Gallery
	config  config.Config
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), out: os.Stdout, errOut: w}
}

// SetOutput redirects command output (not logs) to w.
func (c *CLI) SetOutput(w io.Writer) { c.out = w }

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "nugallery inspects NuGet packages and their assemblies",
		Long:         `nugallery downloads, parses and caches NuGet packages, resolves the assemblies they reference across their dependency closure, and serves the results as a JSON API.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
				hooks := observability.NewLogHooks(c.Logger)
				observability.SetGalleryHooks(hooks)
				observability.SetHTTPHooks(hooks)
			}
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $"+config.EnvPath+")")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.packageCommand())
	root.AddCommand(c.versionsCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// galleryFor loads the configuration and builds the gallery on first use.
func (c *CLI) galleryFor() (*gallery.Gallery, config.Config, error) {
	if c.gallery != nil {
		return c.gallery, c.config, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, cfg, err
	}
	opts := cfg.GalleryOptions()
	opts.Logger = c.Logger.WithPrefix("gallery")
	c.gallery, c.config = gallery.New(opts), cfg
	return c.gallery, cfg, nil
}

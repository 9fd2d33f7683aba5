package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nugallery/pkg/gallery"
	"github.com/matzehuels/nugallery/pkg/nuget"
)

type packageOpts struct {
	framework string
	pick      bool
}

func (c *CLI) packageCommand() *cobra.Command {
	var opts packageOpts

	cmd := &cobra.Command{
		Use:   "package <id> [version]",
		Short: "Show a package and its target frameworks",
		Long: `Show a package and its target frameworks.

The version may be omitted for the latest release, or given as an exact
version or a NuGet range such as "[1.0, 2.0)". With --framework, the
assemblies and dependencies of the closest framework are listed instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, spec := args[0], ""
			if len(args) == 2 {
				spec = args[1]
			}
			return c.runPackage(cmd.Context(), id, spec, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.framework, "framework", "f", "", "show the framework closest to this moniker")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "choose the framework interactively")
	return cmd
}

func (c *CLI) runPackage(ctx context.Context, id, spec string, opts packageOpts) error {
	g, _, err := c.galleryFor()
	if err != nil {
		return err
	}

	pkg, err := c.fetchPackage(ctx, g, id, spec)
	if err != nil {
		return err
	}

	switch {
	case opts.pick:
		tf, err := pickFramework(pkg)
		if err != nil || tf == nil {
			return err
		}
		printFramework(c.out, tf)
	case opts.framework != "":
		tf := pkg.FindClosestTargetFramework(opts.framework)
		if tf == nil {
			return fmt.Errorf("%s %s has no target frameworks", pkg.ID, pkg.Version)
		}
		printFramework(c.out, tf)
	default:
		printPackage(c.out, pkg)
	}
	return nil
}

// fetchPackage loads a package behind a spinner and surfaces its fetch or
// parse failure as an error.
func (c *CLI) fetchPackage(ctx context.Context, g *gallery.Gallery, id, spec string) (*nuget.Package, error) {
	prog := newProgress(c.Logger)
	spin := newSpinner(ctx, c.errOut, "Fetching "+id+"...")
	spin.Start()
	pkg, err := g.Package(ctx, id, spec)
	spin.Stop()
	if err == nil {
		err = pkg.Err
	}
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Fetched %s %s", pkg.ID, pkg.Version))
	return pkg, nil
}

// pickFramework runs the interactive framework picker. A nil framework
// means the user quit without choosing.
func pickFramework(pkg *nuget.Package) (*nuget.TargetFramework, error) {
	if len(pkg.TargetFrameworks) == 0 {
		return nil, fmt.Errorf("%s %s has no target frameworks", pkg.ID, pkg.Version)
	}
	final, err := tea.NewProgram(newFrameworkListModel(pkg)).Run()
	if err != nil {
		return nil, err
	}
	return final.(FrameworkListModel).Selected, nil
}

func (c *CLI) versionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List the published versions of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := c.galleryFor()
			if err != nil {
				return err
			}
			pv, err := g.Versions(cmd.Context(), args[0])
			if err == nil {
				err = pv.Err
			}
			if err != nil {
				return err
			}
			latest, _ := pv.Latest()
			for _, v := range pv.Versions {
				if v == latest {
					fmt.Fprintln(c.out, StyleSuccess.Render(v)+" "+StyleDim.Render("(latest)"))
					continue
				}
				fmt.Fprintln(c.out, v)
			}
			return nil
		},
	}
}

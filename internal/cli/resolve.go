package cli

import (
	"github.com/spf13/cobra"
)

func (c *CLI) resolveCommand() *cobra.Command {
	var framework string

	cmd := &cobra.Command{
		Use:   "resolve <id> <version> <assembly>",
		Short: "Find the package file that provides an assembly",
		Long: `Find the package file that provides an assembly.

The search starts at the framework of the package closest to --framework
and continues through its dependency closure. Framework assemblies such as
mscorlib never resolve.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := c.galleryFor()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, spec, name := args[0], args[1], args[2]

			spin := newSpinner(ctx, c.errOut, "Resolving "+name+"...")
			spin.Start()
			a, err := g.Resolve(ctx, id, spec, framework, name)
			spin.Stop()
			if err != nil {
				printError(c.out, "%s not resolved from %s %s", name, id, spec)
				return err
			}

			tf := a.Framework()
			printSuccess(c.out, "%s", name)
			printKeyValue(c.out, "Package", tf.Package().ID+" "+tf.Package().Version)
			printKeyValue(c.out, "Framework", tf.Moniker)
			printKeyValue(c.out, "File", a.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "target framework moniker (default: the last netstandard2* framework, else the last netstandard*, else the first)")
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"
)

func (c *CLI) searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the registry for packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := c.galleryFor()
			if err != nil {
				return err
			}
			res, err := g.Search(cmd.Context(), args[0])
			if err == nil {
				err = res.Err
			}
			if err != nil {
				return err
			}
			if len(res.Results) == 0 {
				printWarning(c.out, "no packages match %q", res.Query)
				return nil
			}
			printSearch(c.out, res.Results)
			return nil
		},
	}
}

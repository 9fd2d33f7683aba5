package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/nugallery/internal/server"
)

func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gallery as a JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, cfg, err := c.galleryFor()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := server.New(g, server.Options{
				Logger:        c.Logger.WithPrefix("http"),
				SweepInterval: cfg.Server.SweepInterval.Std(),
			})
			return srv.Run(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

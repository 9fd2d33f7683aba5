package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nugallery/pkg/dag"
	"github.com/matzehuels/nugallery/pkg/gallery"
	"github.com/matzehuels/nugallery/pkg/graph"
	"github.com/matzehuels/nugallery/pkg/render/nodelink"
)

const formatJSON = "json"

// graphOpts holds the command-line flags of the graph command.
type graphOpts struct {
	framework string
	maxDepth  int
	format    string // json, dot, svg or png
	output    string // file path, stdout when empty
	from      string // render a saved JSON graph instead of crawling
	detailed  bool
}

func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: formatJSON}

	cmd := &cobra.Command{
		Use:   "graph <id> [version]",
		Short: "Crawl and render the dependency graph of a package",
		Long: `Crawl and render the dependency graph of a package.

Declared dependencies are followed for one target framework. The graph is
written as JSON by default; dot, svg and png render a node-link diagram
with Graphviz. A JSON graph saved earlier can be rendered again with
--from, without contacting the registry.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.from != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateGraphFormat(opts.format); err != nil {
				return err
			}
			return c.runGraph(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.framework, "framework", "f", "", "target framework moniker (default: the root's last netstandard2* framework, else the last netstandard*, else the first)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "maximum dependency depth (0 = unlimited)")
	cmd.Flags().StringVar(&opts.format, "format", opts.format, "output format: json (default), dot, svg, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.from, "from", "", "render a saved JSON graph file")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show frameworks, errors and version ranges (dot, svg, png)")
	return cmd
}

func validateGraphFormat(format string) error {
	if strings.EqualFold(format, formatJSON) {
		return nil
	}
	_, err := nodelink.ParseFormat(format)
	return err
}

func (c *CLI) runGraph(ctx context.Context, args []string, opts graphOpts) error {
	var (
		d   *dag.DAG
		err error
	)
	if opts.from != "" {
		d, err = readGraphFile(opts.from)
	} else {
		d, err = c.crawl(ctx, args, opts)
	}
	if err != nil {
		return err
	}

	out, err := renderGraph(ctx, d, opts)
	if err != nil {
		return err
	}
	if opts.output == "" {
		_, err = c.out.Write(out)
		return err
	}
	if err := os.WriteFile(opts.output, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printFile(c.errOut, opts.output)
	return nil
}

func (c *CLI) crawl(ctx context.Context, args []string, opts graphOpts) (*dag.DAG, error) {
	g, _, err := c.galleryFor()
	if err != nil {
		return nil, err
	}
	id, spec := args[0], ""
	if len(args) == 2 {
		spec = args[1]
	}

	prog := newProgress(c.Logger)
	spin := newSpinner(ctx, c.errOut, "Crawling dependencies of "+id+"...")
	spin.Start()
	d, err := g.Graph(ctx, id, spec, gallery.GraphOptions{Framework: opts.framework, MaxDepth: opts.maxDepth})
	spin.Stop()
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Crawled %d packages", d.NodeCount()))

	failed := 0
	for _, n := range d.Nodes() {
		if n.Meta.String(graph.MetaError) != "" {
			failed++
		}
	}
	printStats(c.errOut, d.NodeCount(), d.EdgeCount(), failed)
	if cycle := d.Cycle(); cycle != nil {
		printWarning(c.errOut, "dependency cycle: %s", strings.Join(cycle, " → "))
	}
	return d, nil
}

func readGraphFile(path string) (*dag.DAG, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := graph.ReadGraph(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return d, nil
}

func renderGraph(ctx context.Context, d *dag.DAG, opts graphOpts) ([]byte, error) {
	if strings.EqualFold(opts.format, formatJSON) {
		return graph.MarshalGraph(d)
	}
	f, err := nodelink.ParseFormat(opts.format)
	if err != nil {
		return nil, err
	}
	return nodelink.Render(ctx, nodelink.ToDOT(d, nodelink.Options{Detailed: opts.detailed}), f)
}

package gallery

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/nugallery/pkg/dag"
	"github.com/matzehuels/nugallery/pkg/errors"
	"github.com/matzehuels/nugallery/pkg/graph"
	"github.com/matzehuels/nugallery/pkg/nuget"
)

// graphFetchLimit bounds concurrent package fetches within one crawl level.
const graphFetchLimit = 8

// GraphOptions configures [Gallery.Graph].
type GraphOptions struct {
	// Framework is the moniker followed through the closure. Empty selects
	// the root package's closest framework.
	Framework string

	// MaxDepth limits how many dependency levels are crawled. Zero or
	// negative means unlimited.
	MaxDepth int
}

type crawlItem struct {
	id string
	tf *nuget.TargetFramework
}

// Graph crawls the declared dependencies of a package for one target
// framework, level by level. Every package id appears once, at the depth
// where it was first reached, so cycles terminate. Packages that fail to
// load stay in the graph with their error recorded in node metadata.
func (g *Gallery) Graph(ctx context.Context, id, versionSpec string, opts GraphOptions) (*dag.DAG, error) {
	root, err := g.Framework(ctx, id, versionSpec, opts.Framework)
	if err != nil {
		return nil, err
	}

	moniker := strings.ToLower(strings.TrimSpace(opts.Framework))
	if moniker == "" {
		moniker = root.Moniker
	}
	rootID := strings.ToLower(root.Package().IndexID)

	d := dag.New(dag.Metadata{graph.MetaRoot: rootID, graph.MetaMoniker: moniker})
	if err := d.AddNode(packageNode(rootID, 0, root.Package(), root, nil)); err != nil {
		return nil, err
	}

	level := []crawlItem{{id: rootID, tf: root}}
	for depth := 1; len(level) > 0 && (opts.MaxDepth <= 0 || depth <= opts.MaxDepth); depth++ {
		var (
			mu   sync.Mutex
			next []crawlItem
		)
		eg, ectx := errgroup.WithContext(ctx)
		eg.SetLimit(graphFetchLimit)

		for _, parent := range level {
			for _, dep := range parent.tf.Dependencies {
				eg.Go(func() error {
					childID := strings.ToLower(dep.ID)
					pkg, err := g.Package(ectx, dep.ID, dep.VersionSpec)
					if err != nil && ectx.Err() != nil {
						return ectx.Err()
					}

					var tf *nuget.TargetFramework
					if err == nil && pkg.Err == nil {
						tf = pkg.FindClosestTargetFramework(moniker)
					}

					mu.Lock()
					defer mu.Unlock()
					if !d.HasNode(childID) {
						if err := d.AddNode(packageNode(childID, depth, pkg, tf, err)); err != nil {
							return err
						}
						if tf != nil {
							next = append(next, crawlItem{id: childID, tf: tf})
						}
					}
					edge := dag.Edge{From: parent.id, To: childID, Meta: dag.Metadata{}}
					if dep.VersionSpec != "" {
						edge.Meta[graph.MetaVersionSpec] = dep.VersionSpec
					}
					if err := d.AddEdge(edge); err != nil && err != dag.ErrDuplicateEdge {
						return err
					}
					return nil
				})
			}
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		level = next
	}

	g.logger.Debug("dependency graph built", "root", rootID, "moniker", moniker,
		"nodes", d.NodeCount(), "edges", d.EdgeCount())
	return d, nil
}

func packageNode(id string, row int, pkg *nuget.Package, tf *nuget.TargetFramework, err error) dag.Node {
	n := dag.Node{ID: id, Row: row, Meta: dag.Metadata{}}
	if pkg != nil {
		n.Label = pkg.ID
		n.Meta[graph.MetaVersion] = pkg.Version
		if err == nil {
			err = pkg.Err
		}
	}
	if tf != nil {
		n.Meta[graph.MetaFramework] = tf.Moniker
	}
	if err != nil {
		n.Meta[graph.MetaError] = errors.UserMessage(err)
	}
	return n
}

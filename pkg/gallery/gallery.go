package gallery

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nugallery/pkg/cache"
	"github.com/matzehuels/nugallery/pkg/errors"
	nugetapi "github.com/matzehuels/nugallery/pkg/integrations/nuget"
	"github.com/matzehuels/nugallery/pkg/nuget"
	"github.com/matzehuels/nugallery/pkg/observability"
)

// Default cache lifetimes. Published package versions are immutable, so
// packages are kept for a year; search results and version indexes change.
const (
	DefaultPackageTTL  = 365 * 24 * time.Hour
	DefaultSearchTTL   = 15 * time.Minute
	DefaultVersionsTTL = 15 * time.Minute
)

// Registry is the remote package registry. *nuget.Client from
// pkg/integrations/nuget implements it.
type Registry interface {
	PackageURL(id, version string) string
	Download(ctx context.Context, id, version string) ([]byte, error)
	Search(ctx context.Context, query string) ([]nugetapi.SearchHit, error)
	Versions(ctx context.Context, id string) ([]string, error)
}

var _ Registry = (*nugetapi.Client)(nil)

// Options configures a Gallery. Zero values select the defaults.
type Options struct {
	Registry    Registry
	PackageTTL  time.Duration
	SearchTTL   time.Duration
	VersionsTTL time.Duration

	// FrameworkAssemblies resolve as builtin in every package read by the
	// gallery. Nil selects nuget.DefaultFrameworkAssemblies.
	FrameworkAssemblies []string

	Logger *log.Logger
}

// PackageKey identifies one package version in the package cache. Both
// fields are lowercase.
type PackageKey struct {
	ID      string
	Version string
}

func (k PackageKey) String() string { return k.ID + "@" + k.Version }

// Gallery fetches, parses and caches packages, search results and version
// indexes. It implements [nuget.Source] for the resolvers of the packages
// it reads, so dependency lookups share its caches.
//
// All methods are safe for concurrent use.
type Gallery struct {
	registry Registry
	builtins []string
	logger   *log.Logger

	packages *cache.TTL[PackageKey, *nuget.Package]
	search   *cache.TTL[string, *SearchResults]
	versions *cache.TTL[string, *PackageVersions]
}

var _ nuget.Source = (*Gallery)(nil)

// New creates a Gallery.
func New(opts Options) *Gallery {
	g := &Gallery{
		registry: opts.Registry,
		builtins: opts.FrameworkAssemblies,
		logger:   opts.Logger,
	}
	if g.registry == nil {
		g.registry = nugetapi.NewClient(nugetapi.Options{})
	}
	if g.builtins == nil {
		g.builtins = nuget.DefaultFrameworkAssemblies
	}
	if g.logger == nil {
		g.logger = log.Default()
	}

	cacheOpts := []cache.Option{
		cache.WithPanicHandler(func(key, recovered any) {
			g.logger.Error("cache loader panicked", "key", key, "panic", recovered)
		}),
	}

	g.packages = cache.New(orDefault(opts.PackageTTL, DefaultPackageTTL), g.loadPackage, cacheOpts...)
	g.search = cache.New(orDefault(opts.SearchTTL, DefaultSearchTTL), g.loadSearch, cacheOpts...)
	g.versions = cache.New(orDefault(opts.VersionsTTL, DefaultVersionsTTL), g.loadVersions, cacheOpts...)
	return g
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Package resolves versionSpec against the version index of id and returns
// the cached package for the concrete version, fetching it on first use.
//
// The returned error covers invalid input, unresolvable versions and
// cancellation of ctx. Download and parse failures are recorded on the
// package's Err instead and cached like any other result.
func (g *Gallery) Package(ctx context.Context, id, versionSpec string) (*nuget.Package, error) {
	if err := errors.ValidatePackageID(id); err != nil {
		return nil, err
	}
	if err := errors.ValidateVersionSpec(versionSpec); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id = strings.ToLower(id)
	pv, err := g.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := pv.Resolve(versionSpec)
	if err != nil {
		return nil, err
	}
	return g.packages.Get(ctx, PackageKey{ID: id, Version: strings.ToLower(v)})
}

func (g *Gallery) loadPackage(ctx context.Context, key PackageKey) (pkg *nuget.Package) {
	start := time.Now()
	hooks := observability.Gallery()
	hooks.OnFetchStart(ctx, observability.FetchPackage, key.String())
	defer func() {
		var err error
		if pkg != nil {
			err = pkg.Err
		}
		hooks.OnFetchComplete(ctx, observability.FetchPackage, key.String(), time.Since(start), err)
	}()

	pkg = nuget.NewPackage(key.ID, key.Version)
	pkg.DownloadURL = g.registry.PackageURL(key.ID, key.Version)

	data, err := g.registry.Download(ctx, key.ID, key.Version)
	if err != nil {
		pkg.Err = fetchError(err, "download %s %s", key.ID, key.Version)
		g.logger.Warn("package download failed", "id", key.ID, "version", key.Version, "error", err)
		return pkg
	}

	if err := pkg.Read(data, nuget.ReadOptions{
		Source:              g,
		FrameworkAssemblies: g.builtins,
		Logger:              g.logger,
	}); err != nil {
		pkg.Err = err
		g.logger.Warn("package parse failed", "id", key.ID, "version", key.Version, "error", err)
		return pkg
	}

	g.logger.Debug("package loaded",
		"id", pkg.ID, "version", key.Version,
		"frameworks", len(pkg.TargetFrameworks), "bytes", pkg.SizeInBytes,
		"duration", time.Since(start).Round(time.Millisecond))
	return pkg
}

// Search returns the cached results of a search query. The query is
// trimmed and lowercased before use.
func (g *Gallery) Search(ctx context.Context, query string) (*SearchResults, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "search query cannot be empty")
	}
	return g.search.Get(ctx, q)
}

func (g *Gallery) loadSearch(ctx context.Context, query string) *SearchResults {
	res := &SearchResults{Query: query}
	start := time.Now()
	hooks := observability.Gallery()
	hooks.OnFetchStart(ctx, observability.FetchSearch, query)
	hits, err := g.registry.Search(ctx, query)
	hooks.OnFetchComplete(ctx, observability.FetchSearch, query, time.Since(start), err)
	if err != nil {
		res.Err = fetchError(err, "search %q", query)
		g.logger.Warn("search failed", "query", query, "error", err)
		return res
	}
	res.Results = hits
	g.logger.Debug("search loaded", "query", query, "hits", len(hits))
	return res
}

// Versions returns the cached version index of a package id.
func (g *Gallery) Versions(ctx context.Context, id string) (*PackageVersions, error) {
	if err := errors.ValidatePackageID(id); err != nil {
		return nil, err
	}
	return g.versions.Get(ctx, strings.ToLower(id))
}

func (g *Gallery) loadVersions(ctx context.Context, id string) *PackageVersions {
	pv := &PackageVersions{ID: id}
	start := time.Now()
	hooks := observability.Gallery()
	hooks.OnFetchStart(ctx, observability.FetchVersions, id)
	list, err := g.registry.Versions(ctx, id)
	hooks.OnFetchComplete(ctx, observability.FetchVersions, id, time.Since(start), err)
	if err != nil {
		pv.Err = fetchError(err, "version index of %s", id)
		g.logger.Debug("version index unavailable", "id", id, "error", err)
		return pv
	}
	pv.Versions = list
	return pv
}

// Framework returns the target framework of a package closest to moniker.
// Package failures are returned as errors here.
func (g *Gallery) Framework(ctx context.Context, id, versionSpec, moniker string) (*nuget.TargetFramework, error) {
	pkg, err := g.Package(ctx, id, versionSpec)
	if err != nil {
		return nil, err
	}
	if pkg.Err != nil {
		return nil, pkg.Err
	}
	tf := pkg.FindClosestTargetFramework(moniker)
	if tf == nil {
		return nil, errors.New(errors.ErrCodeFrameworkNotFound, "%s %s has no target frameworks", pkg.ID, pkg.Version)
	}
	return tf, nil
}

// Assembly returns a runtime assembly of the framework closest to moniker
// by file name. An empty name selects the largest assembly.
func (g *Gallery) Assembly(ctx context.Context, id, versionSpec, moniker, fileName string) (*nuget.Assembly, error) {
	tf, err := g.Framework(ctx, id, versionSpec, moniker)
	if err != nil {
		return nil, err
	}
	a := tf.GetAssembly("", fileName)
	if a == nil {
		return nil, errors.New(errors.ErrCodeAssemblyNotFound, "assembly %q not found in %s/%s", fileName, tf.Package().ID, tf.Moniker)
	}
	return a, nil
}

// Resolve finds the assembly named name for the framework closest to
// moniker, searching the package and its dependency closure.
func (g *Gallery) Resolve(ctx context.Context, id, versionSpec, moniker, name string) (*nuget.Assembly, error) {
	tf, err := g.Framework(ctx, id, versionSpec, moniker)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	a := tf.Resolver().Resolve(ctx, name)
	observability.Gallery().OnResolve(ctx, name, tf.Moniker, a != nil, time.Since(start))
	if err := ctx.Err(); err != nil && a == nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.New(errors.ErrCodeAssemblyNotFound, "assembly %q not found from %s/%s", name, tf.Package().ID, tf.Moniker)
	}
	return a, nil
}

// Stats reports counters of the gallery caches.
type Stats struct {
	Packages cache.Stats `json:"packages"`
	Search   cache.Stats `json:"search"`
	Versions cache.Stats `json:"versions"`
}

// Stats returns a snapshot of the cache counters.
func (g *Gallery) Stats() Stats {
	return Stats{
		Packages: g.packages.Stats(),
		Search:   g.search.Stats(),
		Versions: g.versions.Stats(),
	}
}

// Sweep drops expired entries from every cache and reports how many were
// removed.
func (g *Gallery) Sweep() int {
	n := g.packages.Sweep() + g.search.Sweep() + g.versions.Sweep()
	if n > 0 {
		g.logger.Debug("cache sweep", "removed", n)
	}
	return n
}

func fetchError(err error, format string, args ...any) error {
	if errors.IsNotFound(err) {
		return errors.Wrap(errors.ErrCodePackageNotFound, err, format, args...)
	}
	return errors.Wrap(errors.ErrCodeFetch, err, format, args...)
}

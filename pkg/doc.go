// Package pkg provides the core libraries of nugallery, a NuGet package
// gallery backend.
//
// # Overview
//
// nugallery downloads package containers from a NuGet registry, parses
// their manifests, target frameworks and assemblies, and resolves the
// assemblies a package references across its dependency closure. Results
// are cached with a time-to-live and shared between concurrent callers.
//
// The packages are layered bottom up:
//
//  1. [clrmeta] - CLI metadata reader for .NET assemblies (PE + ECMA-335 tables)
//  2. [nuget] - Package containers, target frameworks and assembly resolution
//  3. [cache] - TTL cache with single-flight population
//  4. [integrations] - HTTP clients for the registry endpoints
//  5. [gallery] - The cached gallery tying the layers together
//  6. [dag], [graph], [render/nodelink] - Dependency graphs and their rendering
//
// # Data Flow
//
//	Registry (download, search, version index)
//	         ↓
//	    [integrations/nuget] client
//	         ↓
//	    [gallery] (version resolution + TTL caches)
//	         ↓
//	    [nuget] package (frameworks, assemblies, resolver)
//	         ↓
//	    [clrmeta] assembly definitions
//
// # Quick Start
//
//	g := gallery.New(gallery.Options{})
//	a, err := g.Resolve(ctx, "Newtonsoft.Json", "13.0.1", "net45", "Newtonsoft.Json")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(a.Path) // lib/net45/Newtonsoft.Json.dll
//
// Supporting packages: [config] loads TOML configuration, [errors] defines
// coded errors, [observability] exposes instrumentation hooks and
// [buildinfo] carries version information.
package pkg

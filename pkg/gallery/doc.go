// Package gallery is the package fetch pipeline of the service.
//
// A [Gallery] resolves version specs against a package's version index,
// downloads and parses package containers, and keeps the results in TTL
// single-flight caches so that concurrent requests for the same package,
// search query or version index share one fetch. It also serves as the
// [nuget.Source] of every package it reads, which is how assembly
// resolution walks the dependency closure through the same caches.
//
// [Gallery.Graph] crawls the declared dependencies of a package for one
// target framework into a [dag.DAG].
//
// [nuget.Source]: github.com/matzehuels/nugallery/pkg/nuget#Source
// [dag.DAG]: github.com/matzehuels/nugallery/pkg/dag#DAG
package gallery

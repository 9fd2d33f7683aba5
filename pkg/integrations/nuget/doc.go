// Package nuget provides a client for the NuGet gallery endpoints used by
// nugallery.
//
// Three endpoints are used:
//
//   - V2 package download: {PackageHost}/api/v2/package/{id}/{version}
//   - Search query: {SearchHost}/query?q={query}
//   - V3 flat container index: {IndexHost}/{lowercase id}/index.json
//
// The client returns raw results. Caching, version selection and parsing
// happen in package gallery and package pkg/nuget.
package nuget

// Package integrations provides the HTTP transport shared by registry API
// clients.
//
// # Overview
//
// Registry-specific clients live in subpackages:
//
//   - [nuget]: package downloads, search and the flat-container version index
//
// # Client Pattern
//
// Registry clients embed [Client] and add typed endpoints:
//
//	client := nuget.NewClient(nuget.Options{})
//	data, err := client.Download(ctx, "Newtonsoft.Json", "13.0.3")
//
// The shared client sets default headers, applies the request timeout and
// maps HTTP status codes onto coded errors:
//
//   - 404 becomes [ErrNotFound] (code NOT_FOUND)
//   - transport failures and 5xx become [ErrNetwork] (code NETWORK_ERROR)
//
// There is no caching or retrying at this layer. Callers that want either
// put it in front of the client; the gallery does so with in-memory TTL
// caches.
//
// [nuget]: github.com/matzehuels/nugallery/pkg/integrations/nuget
package integrations

package nuget

import "context"

// Source fetches parsed packages for dependency lookups.
//
// Fetch and parse failures are reported on [Package.Err]; the returned
// error is reserved for the caller's context being done.
type Source interface {
	Package(ctx context.Context, id, versionSpec string) (*Package, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, id, versionSpec string) (*Package, error)

// Package calls f.
func (f SourceFunc) Package(ctx context.Context, id, versionSpec string) (*Package, error) {
	return f(ctx, id, versionSpec)
}

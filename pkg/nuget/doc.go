// Package nuget models a parsed NuGet package and resolves assembly
// references across package dependencies.
//
// # Model
//
// A [Package] is read once from its container bytes and is immutable
// afterwards. It holds one [TargetFramework] per framework folder found
// under lib/ or build/, sorted by moniker. Each framework lists its runtime
// and build-time [Assembly] entries, XML documentation companions and the
// [Dependency] edges declared in the package manifest.
//
// Assemblies are lazy: the structured definition (see package clrmeta) is
// decoded on first access and memoized.
//
// # Resolution
//
// Every TargetFramework owns a [Resolver]. Given an assembly name it first
// looks in the framework itself, then searches the declared dependencies
// concurrently through a [Source], visiting each package id at most once
// and returning as soon as any branch finds the assembly:
//
//	asm := fw.Resolver().Resolve(ctx, "Newtonsoft.Json")
//	if asm == nil {
//	    // unresolved references are a valid outcome
//	}
package nuget

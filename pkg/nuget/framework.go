package nuget

import (
	"strings"

	"github.com/samber/lo"
)

// Dependency is a package dependency declared in a manifest. Group is the
// raw targetFramework of the manifest group that declared it, empty for
// dependencies that apply to every framework.
type Dependency struct {
	ID          string `json:"id"`
	VersionSpec string `json:"version,omitempty"`
	Group       string `json:"group,omitempty"`
}

// TargetFramework is the content of one framework folder of a package.
type TargetFramework struct {
	Moniker         string
	Dependencies    []Dependency
	Assemblies      []*Assembly
	BuildAssemblies []*Assembly
	XMLDocs         map[string]*XMLDocs

	pkg      *Package
	resolver *Resolver
}

func newTargetFramework(pkg *Package, moniker string, env *readEnv) *TargetFramework {
	tf := &TargetFramework{
		Moniker: moniker,
		XMLDocs: make(map[string]*XMLDocs),
		pkg:     pkg,
	}
	tf.resolver = newResolver(tf, env)
	return tf
}

// Package returns the package owning the framework.
func (tf *TargetFramework) Package() *Package { return tf.pkg }

// Resolver returns the framework's cross-package assembly resolver.
func (tf *TargetFramework) Resolver() *Resolver { return tf.resolver }

// AddDependency adds d unless a dependency with the same package id is
// already present. It reports whether d was added.
func (tf *TargetFramework) AddDependency(d Dependency) bool {
	if lo.ContainsBy(tf.Dependencies, func(x Dependency) bool { return x.ID == d.ID }) {
		return false
	}
	tf.Dependencies = append(tf.Dependencies, d)
	return true
}

// SizeInBytes is the uncompressed size of the runtime assemblies.
func (tf *TargetFramework) SizeInBytes() int64 {
	return lo.SumBy(tf.Assemblies, func(a *Assembly) int64 { return a.Size })
}

// GetAssembly selects an assembly by file name. dir "build" selects from
// the build-time assemblies. An empty name selects the largest assembly.
func (tf *TargetFramework) GetAssembly(dir, name string) *Assembly {
	asms := tf.Assemblies
	if dir == "build" {
		asms = tf.BuildAssemblies
	}
	if len(asms) == 0 {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return lo.MaxBy(asms, func(a, b *Assembly) bool { return a.Size > b.Size })
	}
	a, _ := lo.Find(asms, func(a *Assembly) bool { return a.FileName == name })
	return a
}

// FindAssembly returns the runtime assembly with the given assembly name.
// Names compare exactly, as assembly identities do.
func (tf *TargetFramework) FindAssembly(name string) *Assembly {
	a, _ := lo.Find(tf.Assemblies, func(a *Assembly) bool { return a.Name() == name })
	return a
}

// Docs returns the XML documentation for an assembly name, if any.
func (tf *TargetFramework) Docs(assemblyName string) *XMLDocs {
	return tf.XMLDocs[assemblyName]
}

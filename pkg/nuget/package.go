package nuget

import (
	"bytes"
	"net/url"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"
	"github.com/samber/lo"

	"github.com/matzehuels/nugallery/pkg/errors"
)

// Package is one fetched package version. A package with a non-nil Err is
// unusable; its other fields are not guaranteed to be consistent.
type Package struct {
	ID          string
	IndexID     string
	Version     string
	Authors     string
	Owners      string
	Description string
	ProjectURL  string
	IconURL     string
	DownloadURL string
	SizeInBytes int64

	TargetFrameworks []*TargetFramework

	// Err is the terminal fetch or parse failure, if any.
	Err error
}

// NewPackage returns an empty package for the given index id and version.
func NewPackage(id, version string) *Package {
	return &Package{ID: id, IndexID: id, Version: version}
}

// DefaultFrameworkAssemblies are the platform assemblies every target
// framework can reference without a package dependency.
var DefaultFrameworkAssemblies = []string{
	"mscorlib",
	"netstandard",
	"System",
	"System.Core",
	"System.Runtime",
	"System.Private.CoreLib",
	"System.Xml",
	"System.Xml.Linq",
	"System.Data",
	"System.Drawing",
	"System.Net.Http",
	"System.Numerics",
	"System.ObjectModel",
	"System.Collections",
	"Microsoft.CSharp",
	"Windows",
}

// ReadOptions configures how a package container is read.
type ReadOptions struct {
	// Source fetches dependency packages for the frameworks' resolvers.
	// A nil Source limits resolution to local lookups.
	Source Source

	// FrameworkAssemblies are assembly names that resolve as builtin.
	FrameworkAssemblies []string

	Logger *log.Logger
}

// readEnv is shared by every framework and resolver of one package.
type readEnv struct {
	source   Source
	builtins map[string]struct{}
	logger   *log.Logger
}

func newReadEnv(opts ReadOptions) *readEnv {
	env := &readEnv{
		source:   opts.Source,
		builtins: make(map[string]struct{}, len(opts.FrameworkAssemblies)),
		logger:   opts.Logger,
	}
	if env.logger == nil {
		env.logger = log.Default()
	}
	for _, n := range opts.FrameworkAssemblies {
		env.builtins[n] = struct{}{}
	}
	return env
}

var assemblySuffixes = []string{".dll", ".exe", ".xml", ".targets"}

// Read parses package container bytes into p. Entries are visited in path
// order. Failures are returned as PARSE_FAILED errors; the caller decides
// whether to record them on Err.
func (p *Package) Read(data []byte, opts ReadOptions) error {
	env := newReadEnv(opts)
	p.SizeInBytes = int64(len(data))
	p.TargetFrameworks = nil

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "open package container")
	}

	files := slices.Clone(zr.File)
	slices.SortFunc(files, func(a, b *zip.File) int { return strings.Compare(a.Name, b.Name) })

	var manifest *zip.File
	for _, f := range files {
		n := f.Name
		lower := strings.ToLower(n)
		isBuild := strings.HasPrefix(n, "build/")
		isLib := strings.HasPrefix(n, "lib/")

		if (isBuild || isLib) && lo.SomeBy(assemblySuffixes, func(s string) bool { return strings.HasSuffix(lower, s) }) {
			parts := lo.Compact(strings.Split(n, "/"))
			if len(parts) < 3 {
				continue
			}
			tf := p.framework(unescapeMoniker(parts[1]), env)
			switch {
			case strings.HasSuffix(lower, ".targets"):
			case strings.HasSuffix(lower, ".xml"):
				docs, err := readXMLDocs(f)
				if err != nil {
					env.logger.Debug("skipping xml docs", "package", p.ID, "entry", n, "error", err)
					continue
				}
				tf.XMLDocs[docs.AssemblyName] = docs
			case isBuild:
				tf.BuildAssemblies = append(tf.BuildAssemblies, newAssembly(f, tf))
			default:
				tf.Assemblies = append(tf.Assemblies, newAssembly(f, tf))
			}
		} else if strings.HasSuffix(lower, ".nuspec") {
			manifest = f
		}
	}

	var merr error
	if manifest != nil {
		merr = p.readManifest(manifest)
	}
	slices.SortStableFunc(p.TargetFrameworks, func(a, b *TargetFramework) int {
		return strings.Compare(a.Moniker, b.Moniker)
	})
	return merr
}

func unescapeMoniker(segment string) string {
	s := strings.ToLower(strings.TrimSpace(segment))
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func readXMLDocs(f *zip.File) (*XMLDocs, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ParseXMLDocs(rc)
}

// framework returns the framework with the given moniker, creating it on
// first use.
func (p *Package) framework(moniker string, env *readEnv) *TargetFramework {
	if tf := p.FindExactTargetFramework(moniker); tf != nil {
		return tf
	}
	tf := newTargetFramework(p, moniker, env)
	p.TargetFrameworks = append(p.TargetFrameworks, tf)
	return tf
}

// AuthorsOrOwners returns the authors, or the owners when no authors are
// listed.
func (p *Package) AuthorsOrOwners() string {
	if p.Authors == "" {
		return p.Owners
	}
	return p.Authors
}

// Monikers lists the framework monikers in order.
func (p *Package) Monikers() []string {
	return lo.Map(p.TargetFrameworks, func(tf *TargetFramework, _ int) string { return tf.Moniker })
}

// FindExactTargetFramework returns the framework with exactly this moniker.
func (p *Package) FindExactTargetFramework(moniker string) *TargetFramework {
	tf, _ := lo.Find(p.TargetFrameworks, func(tf *TargetFramework) bool { return tf.Moniker == moniker })
	return tf
}

// FindClosestTargetFramework picks the framework best matching moniker:
// an exact match, else the last netstandard2* framework, else the last
// netstandard* framework, else the first framework. It returns nil only
// for packages without frameworks.
func (p *Package) FindClosestTargetFramework(moniker string) *TargetFramework {
	moniker = strings.ToLower(strings.TrimSpace(moniker))
	if tf := p.FindExactTargetFramework(moniker); tf != nil {
		return tf
	}
	for _, prefix := range []string{"netstandard2", "netstandard"} {
		if tf, _, ok := lo.FindLastIndexOf(p.TargetFrameworks, func(tf *TargetFramework) bool {
			return strings.HasPrefix(tf.Moniker, prefix)
		}); ok {
			return tf
		}
	}
	if len(p.TargetFrameworks) > 0 {
		return p.TargetFrameworks[0]
	}
	return nil
}

package nuget

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/nugallery/pkg/clrmeta"
	"github.com/matzehuels/nugallery/pkg/errors"
)

// maxAssemblySize bounds how much of an entry is read to decode it.
const maxAssemblySize = 512 << 20

// resolveAllLimit bounds concurrent reference resolutions per definition.
const resolveAllLimit = 8

// Assembly is one binary entry of a package container. Its definition is
// decoded on first use and cached.
type Assembly struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`

	fw         *TargetFramework
	definition func() (*clrmeta.Assembly, error)
}

func newAssembly(f *zip.File, fw *TargetFramework) *Assembly {
	a := &Assembly{
		Path:     f.Name,
		FileName: path.Base(f.Name),
		Size:     int64(f.UncompressedSize64),
		fw:       fw,
	}
	a.definition = sync.OnceValues(func() (*clrmeta.Assembly, error) {
		return readDefinition(f)
	})
	return a
}

func readDefinition(f *zip.File) (*clrmeta.Assembly, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "open %s", f.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxAssemblySize))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read %s", f.Name)
	}
	def, err := clrmeta.ReadBytes(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode %s", f.Name)
	}
	return def, nil
}

// Framework returns the owning target framework.
func (a *Assembly) Framework() *TargetFramework { return a.fw }

// IsBuild reports whether the assembly lives under build/.
func (a *Assembly) IsBuild() bool { return strings.HasPrefix(a.Path, "build/") }

// Name returns the assembly name from its definition, falling back to the
// file name without extension when the definition cannot be read.
func (a *Assembly) Name() string {
	if def, err := a.definition(); err == nil && def.Name != "" {
		return def.Name
	}
	return strings.TrimSuffix(a.FileName, path.Ext(a.FileName))
}

// Definition returns the decoded definition, bound to the owning
// framework's resolver.
func (a *Assembly) Definition() (*Definition, error) {
	def, err := a.definition()
	if err != nil {
		return nil, err
	}
	return &Definition{Assembly: def, owner: a}, nil
}

// Definition is a decoded assembly whose references can be resolved
// through the owning framework.
type Definition struct {
	*clrmeta.Assembly
	owner *Assembly
}

// ReferenceResolution is the outcome of resolving one assembly reference.
// A reference that is neither builtin nor resolved is a valid, partial
// result.
type ReferenceResolution struct {
	Reference clrmeta.Reference `json:"reference"`
	Builtin   bool              `json:"builtin,omitempty"`
	Resolved  bool              `json:"resolved"`
	Package   string            `json:"package,omitempty"`
	Version   string            `json:"version,omitempty"`
	Framework string            `json:"framework,omitempty"`
	File      string            `json:"file,omitempty"`

	Assembly *Assembly `json:"-"`
}

// Resolve resolves ref. Framework assemblies resolve as builtin without a
// search; anything else goes through the owning framework's resolver.
func (d *Definition) Resolve(ctx context.Context, ref clrmeta.Reference) ReferenceResolution {
	res := ReferenceResolution{Reference: ref}
	r := d.owner.fw.Resolver()
	if r.IsBuiltin(ref.Name) {
		res.Builtin = true
		res.Resolved = true
		return res
	}
	if a := r.Resolve(ctx, ref.Name); a != nil {
		res.Resolved = true
		res.Assembly = a
		res.File = a.Path
		res.Framework = a.fw.Moniker
		res.Package = a.fw.pkg.ID
		res.Version = a.fw.pkg.Version
	}
	return res
}

// ResolveAll resolves every reference of the definition, in table order.
func (d *Definition) ResolveAll(ctx context.Context) []ReferenceResolution {
	out := make([]ReferenceResolution, len(d.References))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveAllLimit)
	for i, ref := range d.References {
		g.Go(func() error {
			out[i] = d.Resolve(gctx, ref)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

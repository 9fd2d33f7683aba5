package gallery

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/nugallery/pkg/clrmeta/clrmetatest"
	"github.com/matzehuels/nugallery/pkg/errors"
	"github.com/matzehuels/nugallery/pkg/integrations"
	nugetapi "github.com/matzehuels/nugallery/pkg/integrations/nuget"
)

// fakeRegistry serves in-memory package containers.
type fakeRegistry struct {
	mu         sync.Mutex
	containers map[string][]byte // "id/version"
	versions   map[string][]string
	hits       map[string][]nugetapi.SearchHit
	searchErr  error
	calls      map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		containers: map[string][]byte{},
		versions:   map[string][]string{},
		hits:       map[string][]nugetapi.SearchHit{},
		calls:      map[string]int{},
	}
}

func (r *fakeRegistry) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func (r *fakeRegistry) record(key string) {
	r.mu.Lock()
	r.calls[key]++
	r.mu.Unlock()
}

func (r *fakeRegistry) PackageURL(id, version string) string {
	return "https://packages.test/" + id + "/" + version
}

func (r *fakeRegistry) Download(_ context.Context, id, version string) ([]byte, error) {
	key := strings.ToLower(id) + "/" + version
	r.record("download:" + key)
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.containers[key]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return data, nil
}

func (r *fakeRegistry) Search(_ context.Context, query string) ([]nugetapi.SearchHit, error) {
	r.record("search:" + query)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	return r.hits[query], nil
}

func (r *fakeRegistry) Versions(_ context.Context, id string) ([]string, error) {
	r.record("versions:" + id)
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := r.versions[id]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return list, nil
}

// dep is a declared dependency: id and version range.
type dep [2]string

// publish builds a netstandard2.0 package whose single assembly is named
// after the package and references the given assemblies.
func (r *fakeRegistry) publish(t *testing.T, id, version string, refs []string, deps ...dep) {
	t.Helper()
	var xml strings.Builder
	for _, d := range deps {
		fmt.Fprintf(&xml, `<dependency id=%q version=%q />`, d[0], d[1])
	}
	nuspec := `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd">
  <metadata>
    <id>` + id + `</id>
    <version>` + version + `</version>
    <authors>Acme</authors>
    <dependencies>` + xml.String() + `</dependencies>
  </metadata>
</package>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range map[string][]byte{
		id + ".nuspec": []byte(nuspec),
		"lib/netstandard2.0/" + id + ".dll": clrmetatest.Simple(id, append([]string{"netstandard"}, refs...)...),
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	lower := strings.ToLower(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[lower+"/"+version] = buf.Bytes()
	r.versions[lower] = append(r.versions[lower], version)
}

func newTestGallery(reg *fakeRegistry, opts ...func(*Options)) *Gallery {
	o := Options{Registry: reg, Logger: log.New(&bytes.Buffer{})}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func TestPackageFetchAndCache(t *testing.T) {
	reg := newFakeRegistry()
	reg.publish(t, "Acme.Core", "1.0.0", nil)
	reg.publish(t, "Acme.Core", "1.1.0", nil)
	g := newTestGallery(reg)
	ctx := context.Background()

	pkg, err := g.Package(ctx, "Acme.Core", "")
	require.NoError(t, err)
	require.NoError(t, pkg.Err)
	assert.Equal(t, "Acme.Core", pkg.ID)
	assert.Equal(t, "acme.core", pkg.IndexID)
	assert.Equal(t, "1.1.0", pkg.Version)
	assert.Equal(t, "https://packages.test/acme.core/1.1.0", pkg.DownloadURL)
	assert.Equal(t, []string{"netstandard2.0"}, pkg.Monikers())

	again, err := g.Package(ctx, "ACME.CORE", "latest")
	require.NoError(t, err)
	assert.Same(t, pkg, again)
	assert.Equal(t, 1, reg.count("download:acme.core/1.1.0"))
	assert.Equal(t, 1, reg.count("versions:acme.core"))

	stats := g.Stats()
	assert.Equal(t, 1, stats.Packages.Entries)
	assert.Equal(t, int64(1), stats.Packages.Hits)
	assert.Equal(t, int64(1), stats.Packages.Populations)
}

func TestPackageConcurrentFirstAccess(t *testing.T) {
	reg := newFakeRegistry()
	reg.publish(t, "Acme.Core", "1.0.0", nil)
	g := newTestGallery(reg)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pkg, err := g.Package(context.Background(), "acme.core", "1.0.0")
			assert.NoError(t, err)
			assert.NoError(t, pkg.Err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, reg.count("download:acme.core/1.0.0"))
}

func TestPackageVersionSpecs(t *testing.T) {
	reg := newFakeRegistry()
	for _, v := range []string{"1.0.0", "1.1.0", "2.0.0-beta"} {
		reg.publish(t, "Acme.Core", v, nil)
	}
	g := newTestGallery(reg)

	tests := []struct {
		spec     string
		want     string
		wantCode errors.Code
	}{
		{"", "1.1.0", ""},
		{"1.0.0", "1.0.0", ""},
		{"1.0", "1.0.0", ""},
		{"2.0.0-BETA", "2.0.0-beta", ""},
		{"[1.0.0, 1.1.0)", "1.0.0", ""},
		{"1.0.5", "1.1.0", ""},
		{"(,1.0]", "1.0.0", ""},
		{"[1.1.0]", "1.1.0", ""},
		{"3.0", "", errors.ErrCodeVersionNotFound},
		{"[1.0", "", errors.ErrCodeInvalidVersion},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			pkg, err := g.Package(context.Background(), "Acme.Core", tt.spec)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pkg.Version)
		})
	}
}

func TestPackageNotFound(t *testing.T) {
	reg := newFakeRegistry()
	g := newTestGallery(reg)
	ctx := context.Background()

	_, err := g.Package(ctx, "Ghost", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePackageNotFound, errors.GetCode(err))

	// A plain version bypasses the missing index and fails on download.
	pkg, err := g.Package(ctx, "Ghost", "1.0.0")
	require.NoError(t, err)
	require.Error(t, pkg.Err)
	assert.Equal(t, errors.ErrCodePackageNotFound, errors.GetCode(pkg.Err))

	_, err = g.Package(ctx, "Ghost", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 1, reg.count("download:ghost/1.0.0"), "failures are cached")

	_, err = g.Framework(ctx, "Ghost", "1.0.0", "")
	assert.Equal(t, errors.ErrCodePackageNotFound, errors.GetCode(err))
}

func TestPackageParseFailure(t *testing.T) {
	reg := newFakeRegistry()
	reg.containers["broken/1.0.0"] = []byte("not a zip")
	reg.versions["broken"] = []string{"1.0.0"}
	g := newTestGallery(reg)

	pkg, err := g.Package(context.Background(), "Broken", "")
	require.NoError(t, err)
	assert.Equal(t, errors.ErrCodeParse, errors.GetCode(pkg.Err))
}

func TestPackageInvalidInput(t *testing.T) {
	g := newTestGallery(newFakeRegistry())

	_, err := g.Package(context.Background(), "../etc", "")
	assert.Equal(t, errors.ErrCodeInvalidPackage, errors.GetCode(err))

	_, err = g.Package(context.Background(), "Acme", "1.0/../../x")
	require.Error(t, err)
}

func TestPackageCancelledCaller(t *testing.T) {
	reg := newFakeRegistry()
	reg.publish(t, "Acme.Core", "1.0.0", nil)
	g := newTestGallery(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Package(ctx, "Acme.Core", "1.0.0")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch(t *testing.T) {
	reg := newFakeRegistry()
	reg.hits["acme"] = []nugetapi.SearchHit{{ID: "Acme.Core", Version: "1.1.0", TotalDownloads: 42}}
	g := newTestGallery(reg)
	ctx := context.Background()

	res, err := g.Search(ctx, "  Acme ")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "acme", res.Query)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Acme.Core", res.Results[0].ID)

	_, err = g.Search(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 1, reg.count("search:acme"))

	_, err = g.Search(ctx, "   ")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestSearchFailureIsCached(t *testing.T) {
	reg := newFakeRegistry()
	reg.searchErr = integrations.ErrNetwork
	g := newTestGallery(reg)

	res, err := g.Search(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, errors.ErrCodeFetch, errors.GetCode(res.Err))

	_, _ = g.Search(context.Background(), "acme")
	assert.Equal(t, 1, reg.count("search:acme"))
}

func TestSearchExpiryAndSweep(t *testing.T) {
	reg := newFakeRegistry()
	g := newTestGallery(reg, func(o *Options) {
		o.SearchTTL = 200 * time.Millisecond
	})
	ctx := context.Background()

	_, err := g.Search(ctx, "acme")
	require.NoError(t, err)
	_, _ = g.Search(ctx, "acme")
	assert.Equal(t, 1, reg.count("search:acme"))

	time.Sleep(300 * time.Millisecond)
	g.Sweep()
	assert.Equal(t, 0, g.Stats().Search.Entries)

	_, _ = g.Search(ctx, "acme")
	assert.Equal(t, 2, reg.count("search:acme"))
}

func TestFrameworkAndAssembly(t *testing.T) {
	reg := newFakeRegistry()
	reg.publish(t, "Acme.Core", "1.0.0", nil)
	g := newTestGallery(reg)
	ctx := context.Background()

	tf, err := g.Framework(ctx, "Acme.Core", "", "net8.0")
	require.NoError(t, err)
	assert.Equal(t, "netstandard2.0", tf.Moniker)

	a, err := g.Assembly(ctx, "Acme.Core", "", "netstandard2.0", "")
	require.NoError(t, err)
	assert.Equal(t, "Acme.Core.dll", a.FileName)

	def, err := a.Definition()
	require.NoError(t, err)
	assert.Equal(t, "Acme.Core", def.Name)

	_, err = g.Assembly(ctx, "Acme.Core", "", "netstandard2.0", "Other.dll")
	assert.Equal(t, errors.ErrCodeAssemblyNotFound, errors.GetCode(err))
}

// publishClosure publishes
//
//	App -> Acme.Core, Acme.Logging [1.0,), Missing
//	Acme.Logging -> Acme.Core
//	Acme.Core -> App
func publishClosure(t *testing.T, reg *fakeRegistry) {
	reg.publish(t, "App", "1.0.0", []string{"Acme.Core", "Acme.Logging"},
		dep{"Acme.Core", "1.0.0"}, dep{"Acme.Logging", "[1.0, )"}, dep{"Missing", "1.0.0"})
	reg.publish(t, "Acme.Core", "1.0.0", nil, dep{"App", "1.0.0"})
	reg.publish(t, "Acme.Logging", "1.0.0", []string{"Acme.Core"}, dep{"Acme.Core", "1.0.0"})
	reg.publish(t, "Acme.Logging", "1.2.0", []string{"Acme.Core"}, dep{"Acme.Core", "1.0.0"})
}

func TestResolveAcrossPackages(t *testing.T) {
	reg := newFakeRegistry()
	publishClosure(t, reg)
	g := newTestGallery(reg)
	ctx := context.Background()

	a, err := g.Resolve(ctx, "App", "", "netstandard2.0", "Acme.Logging")
	require.NoError(t, err)
	assert.Equal(t, "acme.logging", a.Framework().Package().IndexID)
	assert.Equal(t, "1.0.0", a.Framework().Package().Version)

	_, err = g.Resolve(ctx, "App", "", "netstandard2.0", "Nope")
	assert.Equal(t, errors.ErrCodeAssemblyNotFound, errors.GetCode(err))

	tf, err := g.Framework(ctx, "App", "", "netstandard2.0")
	require.NoError(t, err)
	def, err := tf.GetAssembly("", "").Definition()
	require.NoError(t, err)

	byName := map[string]bool{}
	for _, res := range def.ResolveAll(ctx) {
		byName[res.Reference.Name] = res.Resolved || res.Builtin
	}
	assert.Equal(t, map[string]bool{"netstandard": true, "Acme.Core": true, "Acme.Logging": true}, byName)
}

package nuget

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/nugallery/pkg/clrmeta/clrmetatest"
	"github.com/matzehuels/nugallery/pkg/errors"
)

// fakeSource serves pre-read packages and records fetches.
type fakeSource struct {
	mu      sync.Mutex
	pkgs    map[string]*Package
	calls   map[string]int
	blocked map[string]chan struct{}
	panics  map[string]bool
	opts    ReadOptions
}

func newFakeSource() *fakeSource {
	s := &fakeSource{
		pkgs:    map[string]*Package{},
		calls:   map[string]int{},
		blocked: map[string]chan struct{}{},
		panics:  map[string]bool{},
	}
	s.opts = ReadOptions{Source: s, FrameworkAssemblies: []string{"mscorlib", "netstandard"}}
	return s
}

// add reads a package whose frameworks each contain the given assembly
// files and depend on deps.
func (s *fakeSource) add(t *testing.T, id string, monikers []string, files []string, deps ...string) *Package {
	t.Helper()
	var entries []entry
	for _, m := range monikers {
		for _, f := range files {
			entries = append(entries, entry{"lib/" + m + "/" + f, []byte("fake " + f)})
		}
	}
	var xml strings.Builder
	for _, d := range deps {
		xml.WriteString(`<dependency id="` + d + `" version="1.0.0" />`)
	}
	entries = append(entries, nuspecEntry(id, xml.String()))
	return s.addEntries(t, id, entries...)
}

func (s *fakeSource) addEntries(t *testing.T, id string, entries ...entry) *Package {
	t.Helper()
	p := NewPackage(strings.ToLower(id), "1.0.0")
	require.NoError(t, p.Read(buildContainer(t, entries...), s.opts))
	s.mu.Lock()
	s.pkgs[strings.ToLower(id)] = p
	s.mu.Unlock()
	return p
}

func (s *fakeSource) Package(ctx context.Context, id, versionSpec string) (*Package, error) {
	lid := strings.ToLower(id)
	s.mu.Lock()
	s.calls[lid]++
	block := s.blocked[lid]
	panics := s.panics[lid]
	p := s.pkgs[lid]
	s.mu.Unlock()

	if panics {
		panic("source exploded for " + id)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p == nil {
		p = NewPackage(lid, versionSpec)
		p.Err = errors.New(errors.ErrCodePackageNotFound, "package %s not found", id)
	}
	return p, nil
}

func (s *fakeSource) callCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[strings.ToLower(id)]
}

func (s *fakeSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func homeOf(t *testing.T, p *Package, moniker string) *TargetFramework {
	t.Helper()
	tf := p.FindExactTargetFramework(moniker)
	require.NotNil(t, tf)
	return tf
}

func TestResolveLocal(t *testing.T) {
	src := newFakeSource()
	app := src.add(t, "App", []string{"netstandard2.0"}, []string{"App.dll", "App.Core.dll"}, "Dep")

	a := homeOf(t, app, "netstandard2.0").Resolver().Resolve(context.Background(), "App.Core")
	require.NotNil(t, a)
	assert.Equal(t, "App.Core.dll", a.FileName)
	assert.Zero(t, src.totalCalls(), "local hits never touch the network")
}

func TestResolveTransitive(t *testing.T) {
	src := newFakeSource()
	app := src.add(t, "App", []string{"netstandard2.0"}, []string{"App.dll"}, "A")
	src.add(t, "A", []string{"netstandard2.0"}, []string{"A.dll"}, "B")
	src.add(t, "B", []string{"net45", "netstandard2.0"}, []string{"Target.dll"})

	a := homeOf(t, app, "netstandard2.0").Resolver().Resolve(context.Background(), "Target")
	require.NotNil(t, a)
	assert.Equal(t, "b", a.Framework().Package().IndexID)
	assert.Equal(t, "netstandard2.0", a.Framework().Moniker, "closest framework to the home moniker")
}

func TestResolveCycleTerminates(t *testing.T) {
	src := newFakeSource()
	app := src.add(t, "App", []string{"netstandard2.0"}, []string{"App.dll"}, "A")
	src.add(t, "A", []string{"netstandard2.0"}, []string{"A.dll"}, "B", "App")
	src.add(t, "B", []string{"netstandard2.0"}, []string{"B.dll"}, "A")

	done := make(chan *Assembly, 1)
	go func() {
		done <- homeOf(t, app, "netstandard2.0").Resolver().Resolve(context.Background(), "Missing")
	}()

	select {
	case a := <-done:
		assert.Nil(t, a)
	case <-time.After(5 * time.Second):
		t.Fatal("resolve did not terminate on a dependency cycle")
	}
	assert.Equal(t, 1, src.callCount("A"))
	assert.Equal(t, 1, src.callCount("B"))
	assert.Equal(t, 0, src.callCount("App"), "the home package is visited from the start")
}

func TestResolveVisitsEachPackageOnce(t *testing.T) {
	src := newFakeSource()
	app := src.add(t, "App", []string{"netstandard2.0"}, []string{"App.dll"}, "A", "B", "C")
	src.add(t, "A", []string{"netstandard2.0"}, []string{"A.dll"}, "Shared")
	src.add(t, "B", []string{"netstandard2.0"}, []string{"B.dll"}, "Shared")
	src.add(t, "C", []string{"netstandard2.0"}, []string{"C.dll"}, "Shared")
	src.add(t, "Shared", []string{"netstandard2.0"}, []string{"Shared.dll"})

	a := homeOf(t, app, "netstandard2.0").Resolver().Resolve(context.Background(), "Nowhere")
	assert.Nil(t, a)
	assert.Equal(t, 1, src.callCount("Shared"))
}

func TestResolveFirstSuccessWins(t *testing.T) {
	src := newFakeSource()
	app := src.add(t, "App", []string{"netstandard2.0"}, []string{"App.dll"}, "Slow", "Fast")
	src.add(t, "Slow", []string{"netstandard2.0"}, []string{"Slow.dll"})
	src.add(t, "Fast", []string{"netstandard2.0"}, []string{"Target.dll"})

	release := make(chan struct{})
	defer close(release)
	src.blocked["slow"] = release

	start := time.Now()
	a := homeOf(t, app, "netstandard2.0").Resolver().Resolve(context.Background(), "Target")
	require.NotNil(t, a)
	assert.Equal(t, "fast", a.Framework().Package().IndexID)
	assert.Less(t, time.Since(start), 2*time.Second, "did not wait for the slow branch")
}

func TestResolveFailingBranches(t *testing.T) {
	src := newFakeSource()
	app := src.add(t, "App", []string{"netstandard2.0"}, []string{"App.dll"}, "Missing.Pkg", "Exploding", "Empty", "Good")
	src.add(t, "Empty", nil, nil)
	src.add(t, "Good", []string{"net45"}, []string{"Target.dll"})
	src.panics["exploding"] = true

	a := homeOf(t, app, "netstandard2.0").Resolver().Resolve(context.Background(), "Target")
	require.NotNil(t, a)
	assert.Equal(t, "good", a.Framework().Package().IndexID)
	assert.Equal(t, "net45", a.Framework().Moniker, "falls back to the first framework")
}

func TestResolveCancelled(t *testing.T) {
	src := newFakeSource()
	app := src.add(t, "App", []string{"netstandard2.0"}, []string{"App.dll"}, "Slow")
	src.add(t, "Slow", []string{"netstandard2.0"}, []string{"Target.dll"})
	release := make(chan struct{})
	defer close(release)
	src.blocked["slow"] = release

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Nil(t, homeOf(t, app, "netstandard2.0").Resolver().Resolve(ctx, "Target"))
}

func TestResolveWithoutSource(t *testing.T) {
	p := NewPackage("app", "1.0.0")
	data := buildContainer(t,
		entry{"lib/net45/App.dll", []byte("x")},
		nuspecEntry("App", `<dependency id="A" version="1.0.0" />`),
	)
	require.NoError(t, p.Read(data, ReadOptions{}))
	assert.Nil(t, homeOf(t, p, "net45").Resolver().Resolve(context.Background(), "A"))
}

func TestOrderDependencies(t *testing.T) {
	deps := []Dependency{
		{ID: "System.Memory"},
		{ID: "Newtonsoft.Json"},
		{ID: "System.Buffers"},
		{ID: "Systemic"},
		{ID: "Contoso.Common"},
	}
	got := orderDependencies(deps)
	var ids []string
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"Newtonsoft.Json", "Systemic", "Contoso.Common", "System.Memory", "System.Buffers"}, ids)
	assert.Equal(t, "System.Memory", deps[0].ID, "input is not reordered")
}

func TestDefinitionResolveAll(t *testing.T) {
	src := newFakeSource()
	app := src.addEntries(t, "App",
		entry{"lib/netstandard2.0/App.dll", clrmetatest.Simple("App", "netstandard", "Acme.Core", "Ghost")},
		nuspecEntry("App", `<dependency id="Acme" version="1.0.0" />`),
	)
	src.addEntries(t, "Acme",
		entry{"lib/netstandard2.0/Acme.Core.dll", clrmetatest.Simple("Acme.Core", "netstandard")},
		nuspecEntry("Acme", ""),
	)

	asm := homeOf(t, app, "netstandard2.0").GetAssembly("", "")
	def, err := asm.Definition()
	require.NoError(t, err)

	res := def.ResolveAll(context.Background())
	require.Len(t, res, 3)

	assert.True(t, res[0].Builtin)
	assert.True(t, res[0].Resolved)
	assert.Equal(t, "netstandard", res[0].Reference.Name)

	assert.True(t, res[1].Resolved)
	assert.False(t, res[1].Builtin)
	assert.Equal(t, "Acme", res[1].Package)
	assert.Equal(t, "1.0.0", res[1].Version)
	assert.Equal(t, "netstandard2.0", res[1].Framework)
	assert.Equal(t, "lib/netstandard2.0/Acme.Core.dll", res[1].File)

	assert.False(t, res[2].Resolved, "unresolved references are a valid outcome")
	assert.Equal(t, "Ghost", res[2].Reference.Name)
}

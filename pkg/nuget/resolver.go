package nuget

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Resolver finds assemblies for one target framework, first locally and
// then across the framework's dependencies.
type Resolver struct {
	home *TargetFramework
	env  *readEnv
}

func newResolver(home *TargetFramework, env *readEnv) *Resolver {
	return &Resolver{home: home, env: env}
}

// IsBuiltin reports whether name is a framework assembly that resolves
// without searching packages.
func (r *Resolver) IsBuiltin(name string) bool {
	_, ok := r.env.builtins[name]
	return ok
}

// Resolve returns the assembly named name, or nil if neither the home
// framework nor any package reachable through its dependencies provides
// it. A miss is not an error. Resolve blocks until the search completes,
// is exhausted or ctx is done.
func (r *Resolver) Resolve(ctx context.Context, name string) *Assembly {
	if a := r.home.FindAssembly(name); a != nil {
		return a
	}
	if r.env.source == nil {
		return nil
	}

	s := newSearch(ctx, name, r.home.Moniker, r.env)
	defer s.cancel()
	s.claim(r.home.pkg.IndexID)

	start := time.Now()
	s.logger.Debug("resolving", "assembly", name, "package", r.home.pkg.IndexID, "framework", r.home.Moniker)
	s.searchFramework(r.home)

	found := s.found.Load()
	if found != nil {
		s.logger.Debug("resolved", "assembly", name, "package", found.fw.pkg.IndexID,
			"framework", found.fw.Moniker, "elapsed", time.Since(start))
	} else {
		s.logger.Debug("unresolved", "assembly", name, "elapsed", time.Since(start))
	}
	return found
}

// search is the state shared by every branch of one Resolve call. claim
// and signalFound are its only mutators.
type search struct {
	id      uuid.UUID
	name    string
	moniker string
	source  Source
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	visited sync.Map
	found   atomic.Pointer[Assembly]
}

func newSearch(ctx context.Context, name, moniker string, env *readEnv) *search {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.New()
	return &search{
		id:      id,
		name:    name,
		moniker: moniker,
		source:  env.source,
		logger:  env.logger.With("search", id.String()),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// claim marks a package id as visited. It reports false if another branch
// already claimed it.
func (s *search) claim(id string) bool {
	_, loaded := s.visited.LoadOrStore(strings.ToLower(id), struct{}{})
	return !loaded
}

// signalFound records the winning assembly and cancels the remaining
// branches. Only the first call wins.
func (s *search) signalFound(a *Assembly) {
	if s.found.CompareAndSwap(nil, a) {
		s.cancel()
	}
}

// searchFramework looks for the assembly in tf, then races one branch per
// dependency and returns the first hit.
func (s *search) searchFramework(tf *TargetFramework) *Assembly {
	if a := tf.FindAssembly(s.name); a != nil {
		s.signalFound(a)
		return a
	}
	deps := orderDependencies(tf.Dependencies)
	if len(deps) == 0 {
		return nil
	}

	results := make(chan *Assembly, len(deps))
	for _, d := range deps {
		go func() {
			results <- s.searchDependency(d)
		}()
	}
	for range deps {
		select {
		case a := <-results:
			if a != nil {
				s.signalFound(a)
				return a
			}
		case <-s.ctx.Done():
			return nil
		}
	}
	return nil
}

// searchDependency is one branch. Failures of any kind end the branch
// without a result.
func (s *search) searchDependency(d Dependency) (found *Assembly) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("resolver branch panicked", "dependency", d.ID, "panic", r)
			found = nil
		}
	}()

	if s.ctx.Err() != nil || !s.claim(d.ID) {
		return nil
	}
	pkg, err := s.source.Package(s.ctx, d.ID, d.VersionSpec)
	if err != nil || pkg == nil {
		return nil
	}
	if pkg.Err != nil {
		s.logger.Debug("dependency unavailable", "dependency", d.ID, "version", d.VersionSpec, "error", pkg.Err)
		return nil
	}
	if s.ctx.Err() != nil {
		return nil
	}
	fw := pkg.FindClosestTargetFramework(s.moniker)
	if fw == nil {
		return nil
	}
	return s.searchFramework(fw)
}

// orderDependencies puts "System." packages after everything else,
// keeping declaration order within each group.
func orderDependencies(deps []Dependency) []Dependency {
	out := slices.Clone(deps)
	slices.SortStableFunc(out, func(a, b Dependency) int {
		return cmp.Compare(systemRank(a), systemRank(b))
	})
	return out
}

func systemRank(d Dependency) int {
	if strings.HasPrefix(d.ID, "System.") {
		return 1
	}
	return 0
}

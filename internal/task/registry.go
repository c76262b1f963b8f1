package task

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/sourceplane/khiopsctl/internal/errs"
)

// Registry groups specs by task name into version chains sorted by minimum
// version. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	chains map[string][]*Spec
}

// NewRegistry creates a registry holding specs.
func NewRegistry(specs ...*Spec) (*Registry, error) {
	r := &Registry{chains: make(map[string][]*Spec)}
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// compareVersions orders versions numerically, segment by segment.
func compareVersions(a, b *semver.Version) int {
	return a.Compare(b)
}

// Register adds s to the chain of its name. Two specs of one task cannot share a
// minimum version.
func (r *Registry) Register(s *Spec) error {
	if s == nil {
		return fmt.Errorf("cannot register a nil task spec")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.chains[s.Name()]
	for _, existing := range chain {
		if compareVersions(existing.MinVersion(), s.MinVersion()) == 0 {
			return &errs.VersionError{
				Kind:      errs.ErrAmbiguousTaskSpec,
				Task:      s.Name(),
				Installed: s.MinVersion().Original(),
				Detail:    "a spec with this minimum version is already registered",
			}
		}
	}
	// readers keep the slice they loaded, so the chain is replaced, never mutated
	chain = append(append(make([]*Spec, 0, len(chain)+1), chain...), s)
	sort.SliceStable(chain, func(i, j int) bool {
		return compareVersions(chain[i].MinVersion(), chain[j].MinVersion()) < 0
	})
	r.chains[s.Name()] = chain
	return nil
}

// Resolve returns the spec of name with the greatest minimum version that the
// installed engine version satisfies.
func (r *Registry) Resolve(name, installed string) (*Spec, error) {
	version, err := semver.NewVersion(installed)
	if err != nil {
		return nil, fmt.Errorf("invalid engine version %q: %w", installed, err)
	}
	return r.ResolveVersion(name, version)
}

// ResolveVersion is Resolve with a parsed version.
func (r *Registry) ResolveVersion(name string, installed *semver.Version) (*Spec, error) {
	r.mu.RLock()
	chain := r.chains[name]
	r.mu.RUnlock()

	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownTask, name)
	}

	// Release candidates of the installed version still use its specs.
	core, _ := installed.SetPrerelease("")

	var picked *Spec
	for i := len(chain) - 1; i >= 0; i-- {
		if compareVersions(chain[i].MinVersion(), &core) > 0 {
			continue
		}
		if i > 0 && compareVersions(chain[i-1].MinVersion(), chain[i].MinVersion()) == 0 {
			return nil, &errs.VersionError{
				Kind:      errs.ErrAmbiguousTaskSpec,
				Task:      name,
				Installed: installed.Original(),
				Detail:    fmt.Sprintf("two specs declare minimum version %s", chain[i].MinVersion().Original()),
			}
		}
		picked = chain[i]
		break
	}
	if picked == nil {
		return nil, &errs.VersionError{
			Kind:      errs.ErrUnsupportedVersion,
			Task:      name,
			Installed: installed.Original(),
			Detail:    fmt.Sprintf("oldest supported version is %s", chain[0].MinVersion().Original()),
		}
	}
	return picked, nil
}

// Names returns the registered task names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain returns the specs of name ordered by minimum version.
func (r *Registry) Chain(name string) []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Spec(nil), r.chains[name]...)
}

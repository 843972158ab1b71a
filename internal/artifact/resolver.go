// Package artifact implements the artifact resolver:
// Maven-coordinate resolution against a repository list, with a local
// disk cache guarded by a per-artifact reader-writer lock and a FAIL
// checksum policy.
package artifact

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"

	"forgecore/internal/engineerr"
	"forgecore/pkg/logging"
)

// Resolver holds the repository working set and local cache root
// against the configured repository set.
type Resolver struct {
	mu        sync.RWMutex
	defaults  []Repository
	repos     []Repository
	cacheRoot string

	locks  *cacheLocks
	client *retryablehttp.Client
}

// NewResolver returns a resolver rooted at cacheRoot, seeded with the
// default repository list.
func NewResolver(cacheRoot string) *Resolver {
	defaults := DefaultRepositories()
	repos := make([]Repository, len(defaults))
	copy(repos, defaults)
	return &Resolver{
		defaults:  defaults,
		repos:     repos,
		cacheRoot: cacheRoot,
		locks:     newCacheLocks(),
		client:    newHTTPClient(),
	}
}

// AddRepository adds url to the working set, idempotent on URL.
func (r *Resolver) AddRepository(url string) {
	norm := normalizeRepoURL(url)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.repos {
		if existing.URL == norm {
			return
		}
	}
	r.repos = append(r.repos, Repository{URL: norm})
}

// Cleanup drops every non-default repository from the working set, per
// coordinate resolution.
func (r *Resolver) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	repos := make([]Repository, len(r.defaults))
	copy(repos, r.defaults)
	r.repos = repos
}

func (r *Resolver) repositories() []Repository {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Repository, len(r.repos))
	copy(out, r.repos)
	return out
}

// Resolve expands each coordinate into its transitive dependency set and
// returns the deduplicated union of resolved jar-urls.
// Resolution of distinct top-level coordinates proceeds in parallel; a
// failure (unresolvable coordinate, checksum mismatch) is attributed to
// that one coordinate and returned alongside the union of whatever else
// resolved successfully, rather than aborting the whole batch.
func (r *Resolver) Resolve(ctx context.Context, coords []Coordinate) ([]string, []error) {
	var mu sync.Mutex
	union := make(map[string]struct{})
	var errs []error

	eg, egCtx := errgroup.WithContext(ctx)
	for _, coord := range coords {
		coord := coord
		eg.Go(func() error {
			urls, err := r.resolveTransitive(egCtx, coord)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", coord, err))
				return nil
			}
			for _, u := range urls {
				union[u] = struct{}{}
			}
			return nil
		})
	}
	_ = eg.Wait() // per-coordinate errors are collected above, never propagated as a group failure

	out := make([]string, 0, len(union))
	for u := range union {
		out = append(out, u)
	}
	return out, errs
}

// resolveTransitive resolves coord and, recursively, every in-scope
// dependency declared by its POM, honouring the scope/optional exclusion
// scope-exclusion rules.
func (r *Resolver) resolveTransitive(ctx context.Context, coord Coordinate) ([]string, error) {
	visited := make(map[string]struct{})
	var out []string
	if err := r.resolveOne(ctx, coord, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, coord Coordinate, visited map[string]struct{}, out *[]string) error {
	key := coord.String()
	if _, ok := visited[key]; ok {
		return nil
	}
	visited[key] = struct{}{}

	jarURL, _, err := r.downloadJar(ctx, coord)
	if err != nil {
		return err
	}
	*out = append(*out, jarURL)

	pom, err := r.fetchPOM(ctx, coord)
	if err != nil {
		// A coordinate without a readable POM has no declared
		// dependencies to walk; the jar itself still resolved.
		logging.Debug("artifact", "no POM for %s: %v", coord, err)
		return nil
	}
	for _, dep := range pom.Dependencies {
		if dep.excluded() {
			continue
		}
		if err := r.resolveOne(ctx, dep.coordinate(), visited, out); err != nil {
			logging.Debug("artifact", "transitive dependency %s of %s unresolved: %v", dep.coordinate(), coord, err)
		}
	}
	return nil
}

// downloadJar returns the local cache jar-url for coord, fetching and
// checksum-verifying it from the first repository that serves it if not
// already cached.
func (r *Resolver) downloadJar(ctx context.Context, coord Coordinate) (string, []byte, error) {
	lock := r.locks.lockFor(coord.String())

	lock.RLock()
	if data, ok := readCached(r.cacheRoot, coord); ok {
		lock.RUnlock()
		return "file://" + cachePath(r.cacheRoot, coord), data, nil
	}
	lock.RUnlock()

	lock.Lock()
	defer lock.Unlock()

	if data, ok := readCached(r.cacheRoot, coord); ok {
		return "file://" + cachePath(r.cacheRoot, coord), data, nil
	}

	for _, repo := range r.repositories() {
		url := repo.URL + "/" + coord.repoPath() + "/" + coord.jarFileName()
		data, err := r.fetch(ctx, url)
		if err != nil {
			continue
		}
		if err := r.verifySHA1(ctx, url, data); err != nil {
			return "", nil, engineerr.New(engineerr.KindArtifactMismatch, coord.String(), err)
		}
		if err := writeCached(r.cacheRoot, coord, data); err != nil {
			return "", nil, err
		}
		return "file://" + cachePath(r.cacheRoot, coord), data, nil
	}
	return "", nil, engineerr.New(engineerr.KindArtifactUnresolved, coord.String(), nil)
}

func (r *Resolver) fetchPOM(ctx context.Context, coord Coordinate) (*pomModel, error) {
	var lastErr error
	for _, repo := range r.repositories() {
		url := repo.URL + "/" + coord.repoPath() + "/" + coord.pomFileName()
		data, err := r.fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		return parsePOM(data)
	}
	if lastErr == nil {
		lastErr = engineerr.New(engineerr.KindArtifactUnresolved, coord.String(), nil)
	}
	return nil, lastErr
}

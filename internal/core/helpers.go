package core

import (
	"context"
	"sync"

	"github.com/git-pkgs/requirements/internal/version"
)

const defaultConcurrency = 15

// LatestVersion returns the highest non-yanked release by PEP 440 order.
// Pre-releases are only considered when no final release exists.
// Returns nil if no valid versions exist.
func LatestVersion(versions []Version) *Version {
	var best, bestPre *Version
	var bestV, bestPreV version.Version

	for i := range versions {
		v := &versions[i]
		if v.Status != StatusNone {
			continue
		}
		parsed, err := version.Parse(v.Number)
		if err != nil {
			continue
		}
		if parsed.IsPrerelease() {
			if bestPre == nil || version.Compare(parsed, bestPreV) > 0 {
				bestPre, bestPreV = v, parsed
			}
			continue
		}
		if best == nil || version.Compare(parsed, bestV) > 0 {
			best, bestV = v, parsed
		}
	}

	if best != nil {
		return best
	}
	return bestPre
}

// FetchLatestVersion returns the latest non-yanked release of a package.
// Returns nil if no valid versions exist.
func FetchLatestVersion(ctx context.Context, idx Index, name string) (*Version, error) {
	versions, err := idx.FetchVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	return LatestVersion(versions), nil
}

// BulkFetchPackages fetches package metadata for multiple names in parallel.
// Individual fetch errors are silently ignored - those names are omitted from results.
func BulkFetchPackages(ctx context.Context, idx Index, names []string) map[string]*Package {
	return BulkFetchPackagesWithConcurrency(ctx, idx, names, defaultConcurrency)
}

// BulkFetchPackagesWithConcurrency fetches packages with a custom concurrency limit.
func BulkFetchPackagesWithConcurrency(ctx context.Context, idx Index, names []string, concurrency int) map[string]*Package {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make(map[string]*Package)
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			pkg, err := idx.FetchPackage(ctx, n)
			if err == nil && pkg != nil {
				mu.Lock()
				results[n] = pkg
				mu.Unlock()
			}
		}(name)
	}

	wg.Wait()
	return results
}

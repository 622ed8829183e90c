package verifier

import (
	"context"
	"net/url"
	"sync"

	"github.com/moorhq/moor/manifest"
	"github.com/moorhq/moor/trust"
	"golang.org/x/sync/errgroup"
)

// fetchResources retrieves every resource listed in the manifest, in
// parallel. Each entry's delivery URL hints are tried in order; the
// origin-relative path is the final fallback. The hints are unauthenticated,
// so a fetch from any of them is acceptable: the hash check that follows is
// the only trust input. Resources not listed in the manifest are never
// fetched.
//
// The size declared in the entry is enforced during fetch as a cheap
// pre-check; full digest comparison happens in verifyResources.
func (m *Machine) fetchResources(ctx context.Context, man *manifest.Manifest) (map[string][]byte, error) {
	base, err := url.Parse(m.manifestURL)
	if err != nil {
		return nil, err
	}

	fetched := make(map[string][]byte, len(man.Resources))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for path, entry := range man.Resources {
		g.Go(func() error {
			data, err := m.fetchOne(ctx, base, path, entry)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched[path] = data
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fetched, nil
}

// fetchOne tries each candidate location for a single resource. Delivery
// failures fall through to the next candidate; only total exhaustion is an
// error. A size mismatch is not a delivery failure: the bytes arrived and
// are wrong, so it fails closed immediately rather than hunting for a mirror
// that serves different content.
func (m *Machine) fetchOne(ctx context.Context, base *url.URL, path string, entry manifest.ResourceEntry) ([]byte, error) {
	candidates := make([]string, 0, len(entry.URLs)+1)
	candidates = append(candidates, entry.URLs...)
	if ref, err := url.Parse(path); err == nil {
		candidates = append(candidates, base.ResolveReference(ref).String())
	}

	for _, candidate := range candidates {
		data, err := m.fetcher.Fetch(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Debug("delivery location failed", "path", path, "url", candidate, "err", err)
			continue
		}
		if uint64(len(data)) != entry.Size {
			return nil, &HashMismatchError{
				Path:     path,
				Expected: entry.Hash,
				Got:      trust.ComputeDigest(data).String(),
			}
		}
		return data, nil
	}

	return nil, &MissingResourceError{Path: path}
}

// verifyResources digest-checks every fetched resource against the verified
// manifest, in parallel. All listed resources must pass; a partial set is a
// failure, not a degraded success.
func (m *Machine) verifyResources(ctx context.Context, man *manifest.Manifest, fetched map[string][]byte) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for path, entry := range man.Resources {
		data, ok := fetched[path]
		if !ok {
			return &MissingResourceError{Path: path}
		}
		g.Go(func() error {
			ok, err := trust.VerifyDigest(data, entry.Hash)
			if err != nil {
				return err
			}
			if !ok {
				return &HashMismatchError{
					Path:     path,
					Expected: entry.Hash,
					Got:      trust.ComputeDigest(data).String(),
				}
			}
			return nil
		})
	}

	return g.Wait()
}

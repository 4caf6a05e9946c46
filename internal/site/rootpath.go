package site

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"site-service/pkg/cache"
)

// RootPath maps a site to its content root and public base URL for one
// language.
type RootPath struct {
	SiteID       uint   `json:"site_id"`
	RootPath     string `json:"root_path"`
	RootURL      string `json:"root_url"`
	LanguageCode string `json:"language_code"`
}

// rootPathsCacheKey is shared process-wide, not per site. Bump the version
// whenever the RootPath shape changes so stale-shaped entries written by an
// older deployment are never read back.
var rootPathsCacheKey = cache.Key{Name: "site_root_paths", Version: 2}

// RootPaths returns the root paths of every site, most specific path first.
// The result is cache-backed; a hit is authoritative until
// ClearRootPathsCache is called.
func (r *Resolver) RootPaths(ctx context.Context) ([]RootPath, error) {
	var paths []RootPath
	err := r.cache.Get(ctx, rootPathsCacheKey, &paths)
	if err == nil {
		return paths, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return nil, fmt.Errorf("root paths cache: %w", err)
	}

	sites, err := r.store.AllSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sites for root paths: %w", err)
	}

	paths = make([]RootPath, 0, len(sites))
	for i := range sites {
		s := &sites[i]
		if r.i18nEnabled {
			for _, lang := range r.languages {
				paths = append(paths, RootPath{
					SiteID:       s.ID,
					RootPath:     localizedRootPath(s.RootPath, lang),
					RootURL:      s.RootURL(),
					LanguageCode: lang,
				})
			}
		} else {
			lang := "en"
			if len(r.languages) > 0 {
				lang = r.languages[0]
			}
			paths = append(paths, RootPath{
				SiteID:       s.ID,
				RootPath:     s.RootPath,
				RootURL:      s.RootURL(),
				LanguageCode: lang,
			})
		}
	}

	// Most specific path first so longest-prefix lookups can stop at the
	// first match.
	sort.SliceStable(paths, func(i, j int) bool {
		if len(paths[i].RootPath) != len(paths[j].RootPath) {
			return len(paths[i].RootPath) > len(paths[j].RootPath)
		}
		return paths[i].SiteID < paths[j].SiteID
	})

	if err := r.cache.Set(ctx, rootPathsCacheKey, paths, 0); err != nil {
		return nil, fmt.Errorf("store root paths cache: %w", err)
	}

	return paths, nil
}

// ClearRootPathsCache drops the cached root paths. Callers must invoke it on
// every structural site change; this is a correctness requirement, since
// stale root paths produce wrong public URLs.
func (r *Resolver) ClearRootPathsCache(ctx context.Context) error {
	return r.cache.Delete(ctx, rootPathsCacheKey)
}

// localizedRootPath prefixes the content root with the language segment,
// keeping the trailing slash convention of the stored path.
func localizedRootPath(rootPath, lang string) string {
	p := path.Join("/", lang, rootPath)
	if p != "/" {
		p += "/"
	}
	return p
}

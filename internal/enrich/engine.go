package enrich

import (
	"context"

	"github.com/samvad-hq/metalpal/internal/domain"
	"github.com/samvad-hq/metalpal/internal/logger"
	"github.com/samvad-hq/metalpal/pkg/providers"
	"golang.org/x/sync/errgroup"
)

// SkipNoArchiveData is recorded when no archive candidate yields a usable
// detail page.
const SkipNoArchiveData = "no archive data available"

// Options tunes the engine.
type Options struct {
	// Concurrency bounds the number of releases looked up at once.
	Concurrency int
}

// Engine attaches provider metadata to releases.
type Engine struct {
	popularity providers.PopularityProvider
	archive    providers.ArchiveProvider
	opts       Options
	log        logger.Logger
}

// NewEngine wires an engine. Either provider may be nil, in which case the
// corresponding pass leaves releases untouched.
func NewEngine(popularity providers.PopularityProvider, archive providers.ArchiveProvider, opts Options, log logger.Logger) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Engine{
		popularity: popularity,
		archive:    archive,
		opts:       opts,
		log:        logger.Ensure(log),
	}
}

// EnrichPopularity returns copies of releases with popularity metadata
// attached where a matching artist was found. Releases that are skipped or
// already carry popularity metadata are returned unchanged. The only error
// is context cancellation; releases not reached by then are returned as is.
func (e *Engine) EnrichPopularity(ctx context.Context, releases []domain.Release) ([]domain.Release, error) {
	if e.popularity == nil {
		return cloneAll(releases), nil
	}
	return e.forEach(ctx, releases, e.enrichPopularity)
}

// EnrichArchive returns copies of releases with archive metadata attached.
// A release for which no candidate produced a usable page is marked skipped.
func (e *Engine) EnrichArchive(ctx context.Context, releases []domain.Release) ([]domain.Release, error) {
	if e.archive == nil {
		return cloneAll(releases), nil
	}
	return e.forEach(ctx, releases, e.enrichArchive)
}

// forEach runs fn over copies of releases with bounded parallelism. Each
// goroutine owns exactly one slice index.
func (e *Engine) forEach(ctx context.Context, releases []domain.Release, fn func(context.Context, *domain.Release)) ([]domain.Release, error) {
	out := cloneAll(releases)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i := range out {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(gctx, &out[i])
			return nil
		})
	}
	_ = g.Wait()

	return out, ctx.Err()
}

func (e *Engine) enrichPopularity(ctx context.Context, r *domain.Release) {
	if r.Skip || r.Popularity != nil {
		return
	}

	candidates, err := e.popularity.SearchArtists(ctx, r.Artist)
	if err != nil {
		e.log.WarnObj("popularity lookup failed", "popularity_error", map[string]any{
			"provider_id": e.popularity.ID(),
			"artist":      r.Artist,
			"error":       err.Error(),
		})
		return
	}

	accepted := Disambiguate(r.Artist, candidates)
	if len(accepted) == 0 {
		e.log.DebugObj("no popularity match", "popularity_miss", map[string]any{
			"artist":     r.Artist,
			"candidates": len(candidates),
		})
		return
	}

	best := accepted[0]
	r.Popularity = domain.NewPopularityMetadata(best.ID, best.URL, best.Genres, best.Popularity, best.Followers)
}

func (e *Engine) enrichArchive(ctx context.Context, r *domain.Release) {
	if r.Skip || r.Archive != nil {
		return
	}

	bands, err := e.archive.SearchBands(ctx, r.Artist)
	if err != nil {
		e.log.WarnObj("archive search failed", "archive_error", map[string]any{
			"provider_id": e.archive.ID(),
			"artist":      r.Artist,
			"error":       err.Error(),
		})
		return
	}

	for _, band := range bands {
		if ctx.Err() != nil {
			return
		}

		url, ok := band.DetailURL()
		if !ok {
			e.log.DebugObj("archive candidate without link", "archive_candidate", map[string]any{
				"artist": r.Artist,
				"markup": band.NameHTML,
			})
			continue
		}

		doc, err := e.archive.FetchDetail(ctx, url)
		if err != nil {
			e.log.WarnObj("archive detail fetch failed", "archive_error", map[string]any{
				"artist": r.Artist,
				"url":    url,
				"error":  err.Error(),
			})
			continue
		}

		meta, err := ParseArchiveDetail(doc, url)
		if err != nil {
			e.log.WarnObj("archive detail rejected", "archive_error", map[string]any{
				"artist": r.Artist,
				"url":    url,
				"error":  err.Error(),
			})
			continue
		}

		r.Archive = meta
		return
	}

	r.MarkSkip(SkipNoArchiveData)
}

func cloneAll(releases []domain.Release) []domain.Release {
	out := make([]domain.Release, len(releases))
	for i, r := range releases {
		out[i] = r.Clone()
	}
	return out
}

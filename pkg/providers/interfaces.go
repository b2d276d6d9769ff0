package providers

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/metalpal/pkg/httpclient"
)

// MetadataProvider is the common surface of every external metadata source.
type MetadataProvider interface {
	ID() string
}

// PopularityProvider looks artists up in a streaming catalogue and reports
// their popularity, followers and genre tags.
type PopularityProvider interface {
	MetadataProvider
	SearchArtists(ctx context.Context, name string) ([]ArtistCandidate, error)
}

// ArchiveProvider searches a band encyclopedia and fetches band detail pages.
type ArchiveProvider interface {
	MetadataProvider
	SearchBands(ctx context.Context, name string) ([]BandCandidate, error)
	FetchDetail(ctx context.Context, url string) (*goquery.Document, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client

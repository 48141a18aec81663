package feeds

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/services"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

// FeedResult is the scraped content of one feed, in scrape order. Used for
// playlist fan-out after the merge.
type FeedResult struct {
	Source string
	Feed   services.FeedSpec
	Songs  []models.ScrapedSong
}

// AggregateResult is the output of one reader run.
type AggregateResult struct {
	// Songs is the deduplicated set, keyed by content hash. On hash
	// collisions across sources the earlier declared source wins.
	Songs map[string]models.ScrapedSong

	// Feeds holds the per-feed results in source declaration order.
	Feeds []FeedResult
}

// Aggregator reads every enabled feed of every enabled source and merges the
// results by content hash.
type Aggregator struct {
	sources  []services.SourceClient
	resolver services.HashResolver
	gate     *shared.Gate
	logger   *log.Logger
}

// NewAggregator creates an aggregator over the given sources, in merge
// priority order. resolver fills in hashes for songs scraped with only a
// Beat Saver key; it may be nil, in which case keyless songs are dropped.
func NewAggregator(sources []services.SourceClient, resolver services.HashResolver, gate *shared.Gate, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Aggregator{
		sources:  sources,
		resolver: resolver,
		gate:     gate,
		logger:   logger,
	}
}

type sourceResult struct {
	songs map[string]models.ScrapedSong
	feeds []FeedResult
	err   error
}

// RunReaders queries all sources concurrently and merges their results.
// A failing source contributes zero items and a warning; the run fails only
// when every source fails or the context is cancelled.
func (a *Aggregator) RunReaders(ctx context.Context) (*AggregateResult, error) {
	results := make([]sourceResult, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src services.SourceClient) {
			defer wg.Done()
			results[i] = a.readSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered := make([]map[string]models.ScrapedSong, 0, len(results))
	out := &AggregateResult{}
	failed := 0
	for i, res := range results {
		if res.err != nil {
			failed++
			a.logger.Warn("source failed, continuing without it",
				"source", a.sources[i].Name(), "error", res.err)
			continue
		}
		ordered = append(ordered, res.songs)
		out.Feeds = append(out.Feeds, res.feeds...)
	}
	if len(a.sources) > 0 && failed == len(a.sources) {
		return nil, fmt.Errorf("%w: all %d sources failed", shared.ErrSourceUnavailable, failed)
	}

	out.Songs = Merge(ordered)
	a.logger.Info("feed readers finished",
		"sources", len(a.sources)-failed, "failed", failed, "songs", len(out.Songs))
	return out, nil
}

// readSource reads every enabled feed of one source. Feeds within a source
// merge first-feed-wins; a feed error is logged and skipped, and the source
// fails only when all of its feeds fail.
func (a *Aggregator) readSource(ctx context.Context, src services.SourceClient) sourceResult {
	enabled := src.EnabledFeeds()
	res := sourceResult{songs: make(map[string]models.ScrapedSong)}

	failed := 0
	for _, feed := range enabled {
		if err := a.gate.Wait(ctx); err != nil {
			res.err = err
			return res
		}

		songs, err := a.readFeed(ctx, src, feed)
		if err != nil {
			if ctx.Err() != nil {
				res.err = ctx.Err()
				return res
			}
			failed++
			a.logger.Warn("feed read failed",
				"source", src.Name(), "feed", feed.DisplayName, "error", err)
			continue
		}

		a.logger.Info("feed read finished",
			"source", src.Name(), "feed", feed.DisplayName, "songs", len(songs))
		res.feeds = append(res.feeds, FeedResult{Source: src.Name(), Feed: feed, Songs: songs})
		for _, song := range songs {
			if _, exists := res.songs[song.Hash]; exists {
				continue
			}
			res.songs[song.Hash] = song
		}
	}

	if len(enabled) > 0 && failed == len(enabled) {
		res.err = fmt.Errorf("%w: all %d feeds failed", shared.ErrSourceUnavailable, failed)
	}
	return res
}

// readFeed pages through one feed until the source reports the last page or
// the feed's MaxSongs cap is reached. Pages are fetched in batches bounded
// by the source's page-check concurrency; songs keep page order regardless
// of which fetch returns first.
func (a *Aggregator) readFeed(ctx context.Context, src services.SourceClient, feed services.FeedSpec) ([]models.ScrapedSong, error) {
	concurrency := src.MaxConcurrentPageChecks()
	if concurrency < 1 {
		concurrency = 1
	}

	var songs []models.ScrapedSong
	page := 0
	for {
		if err := a.gate.Wait(ctx); err != nil {
			return nil, err
		}

		pages := make([]*services.FeedPage, concurrency)
		errs := make([]error, concurrency)
		var wg sync.WaitGroup
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pages[i], errs[i] = src.FetchPage(ctx, feed, page+i)
			}(i)
		}
		wg.Wait()

		last := false
		for i := 0; i < concurrency; i++ {
			if errs[i] != nil {
				return nil, errs[i]
			}
			resolved, err := a.resolveSongs(ctx, src.Name(), pages[i].Songs)
			if err != nil {
				return nil, err
			}
			songs = append(songs, resolved...)
			if pages[i].LastPage {
				last = true
				break
			}
		}

		if feed.MaxSongs > 0 && len(songs) >= feed.MaxSongs {
			return songs[:feed.MaxSongs], nil
		}
		if last {
			return songs, nil
		}
		page += concurrency
	}
}

// resolveSongs fills in missing content hashes via the key resolver. A song
// whose hash cannot be resolved is dropped with a warning.
func (a *Aggregator) resolveSongs(ctx context.Context, source string, scraped []models.ScrapedSong) ([]models.ScrapedSong, error) {
	out := make([]models.ScrapedSong, 0, len(scraped))
	for _, song := range scraped {
		if song.Hash == "" {
			if song.Key == "" || a.resolver == nil {
				a.logger.Warn("dropping song without hash or key",
					"source", source, "song", song.String())
				continue
			}
			hash, err := a.resolver.ResolveHash(ctx, song.Key)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				a.logger.Warn("dropping song, hash lookup failed",
					"source", source, "key", song.Key, "error", err)
				continue
			}
			song.Hash = hash
		}
		song.Hash = strings.ToUpper(song.Hash)
		out = append(out, song)
	}
	return out, nil
}

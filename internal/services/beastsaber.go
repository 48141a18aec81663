// BeastSaber curation site implementation of [SourceClient]
//
// Bookmark and follow feeds are scoped to the configured username. Scraped
// entries sometimes omit the content hash, carrying only a Beat Saver key;
// the aggregator resolves those before merging.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

const defaultBeastSaberBaseURL = "https://bsaber.com"

const beastSaberRequestsPerSecond = 5

type beastSaberSong struct {
	Title           string `json:"title"`
	SongKey         string `json:"song_key"`
	Hash            string `json:"hash"`
	LevelAuthorName string `json:"level_author_name"`
}

type beastSaberPage struct {
	Songs    []beastSaberSong `json:"songs"`
	NextPage *int             `json:"next_page"`
}

// BeastSaberService implements SourceClient against the BeastSaber API.
type BeastSaberService struct {
	baseURL    string
	cfg        shared.BeastSaberConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewBeastSaberService creates a BeastSaber client. baseURL is overridable
// for tests and defaults to the public site.
func NewBeastSaberService(baseURL string, cfg shared.BeastSaberConfig, httpClient *http.Client) *BeastSaberService {
	if baseURL == "" {
		baseURL = defaultBeastSaberBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BeastSaberService{
		baseURL:    baseURL,
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(beastSaberRequestsPerSecond), 1),
	}
}

func (s *BeastSaberService) Name() string { return "BeastSaber" }

func (s *BeastSaberService) MaxConcurrentPageChecks() int {
	return s.cfg.MaxConcurrentPageChecks
}

// EnabledFeeds returns the configured BeastSaber feeds. Bookmarks and follows
// require a username and are skipped without one.
func (s *BeastSaberService) EnabledFeeds() []FeedSpec {
	var feeds []FeedSpec
	if s.cfg.Bookmarks.Enabled && s.cfg.Username != "" {
		feeds = append(feeds, FeedSpec{
			Name:           "bookmarks",
			DisplayName:    "BeastSaber Bookmarks",
			Param:          s.cfg.Username,
			MaxSongs:       s.cfg.Bookmarks.MaxSongs,
			CreatePlaylist: s.cfg.Bookmarks.CreatePlaylist,
			PlaylistName:   "BeatSyncBookmarks",
		})
	}
	if s.cfg.Follows.Enabled && s.cfg.Username != "" {
		feeds = append(feeds, FeedSpec{
			Name:           "follows",
			DisplayName:    "BeastSaber Follows",
			Param:          s.cfg.Username,
			MaxSongs:       s.cfg.Follows.MaxSongs,
			CreatePlaylist: s.cfg.Follows.CreatePlaylist,
			PlaylistName:   "BeatSyncFollows",
		})
	}
	if s.cfg.CuratorRecommended.Enabled {
		feeds = append(feeds, FeedSpec{
			Name:           "curator_recommended",
			DisplayName:    "BeastSaber Curator Recommended",
			Param:          "curatorrecommended",
			MaxSongs:       s.cfg.CuratorRecommended.MaxSongs,
			CreatePlaylist: s.cfg.CuratorRecommended.CreatePlaylist,
			PlaylistName:   "BeatSyncCuratorRecommended",
		})
	}
	return feeds
}

// FetchPage retrieves one page of a BeastSaber feed. Songs without a hash are
// returned as-is; identity resolution is the caller's concern.
func (s *BeastSaberService) FetchPage(ctx context.Context, feed FeedSpec, page int) (*FeedPage, error) {
	var filter string
	switch feed.Name {
	case "bookmarks", "curator_recommended":
		filter = "bookmarked_by=" + url.QueryEscape(feed.Param)
	case "follows":
		filter = "followed_by=" + url.QueryEscape(feed.Param)
	default:
		return nil, fmt.Errorf("%w: unknown BeastSaber feed %q", shared.ErrInvalidInput, feed.Name)
	}

	// The BeastSaber API numbers pages from 1.
	endpoint := fmt.Sprintf("/wp-json/bsaber-api/songs/?%s&page=%d", filter, page+1)

	var resp beastSaberPage
	if err := s.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	songs := make([]models.ScrapedSong, 0, len(resp.Songs))
	for _, song := range resp.Songs {
		songs = append(songs, models.ScrapedSong{
			Hash:            strings.ToUpper(song.Hash),
			Key:             song.SongKey,
			Name:            song.Title,
			LevelAuthorName: song.LevelAuthorName,
			SourceURI:       s.baseURL + endpoint,
			DiscoveredAt:    time.Now().UTC(),
		})
	}
	return &FeedPage{
		Songs:    songs,
		LastPage: resp.NextPage == nil || len(resp.Songs) == 0,
	}, nil
}

func (s *BeastSaberService) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: beastsaber API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

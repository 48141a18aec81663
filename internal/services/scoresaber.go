// ScoreSaber leaderboard implementation of [SourceClient]
//
// ScoreSaber reports song hashes but no Beat Saver keys; jobs resolve keys
// separately before downloading.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

const defaultScoreSaberBaseURL = "https://scoresaber.com"

const scoreSaberRequestsPerSecond = 5
const scoreSaberPageSize = 50

// ScoreSaber leaderboard categories as the API numbers them.
const (
	scoreSaberCatTrending     = 0
	scoreSaberCatLatestRanked = 1
	scoreSaberCatTopPlayed    = 2
	scoreSaberCatTopRanked    = 3
)

type scoreSaberSong struct {
	UID             int    `json:"uid"`
	ID              string `json:"id"` // content hash
	Name            string `json:"name"`
	LevelAuthorName string `json:"levelAuthorName"`
}

type scoreSaberPage struct {
	Songs []scoreSaberSong `json:"songs"`
}

// ScoreSaberService implements SourceClient against the ScoreSaber API.
type ScoreSaberService struct {
	baseURL    string
	cfg        shared.ScoreSaberConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewScoreSaberService creates a ScoreSaber client. baseURL is overridable
// for tests and defaults to the public API.
func NewScoreSaberService(baseURL string, cfg shared.ScoreSaberConfig, httpClient *http.Client) *ScoreSaberService {
	if baseURL == "" {
		baseURL = defaultScoreSaberBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ScoreSaberService{
		baseURL:    baseURL,
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(scoreSaberRequestsPerSecond), 1),
	}
}

func (s *ScoreSaberService) Name() string { return "ScoreSaber" }

func (s *ScoreSaberService) MaxConcurrentPageChecks() int {
	return s.cfg.MaxConcurrentPageChecks
}

// EnabledFeeds returns the configured ScoreSaber feeds in declared order.
func (s *ScoreSaberService) EnabledFeeds() []FeedSpec {
	type candidate struct {
		cfg          shared.FeedConfig
		name         string
		display      string
		playlistName string
		forceRanked  bool
	}
	candidates := []candidate{
		{s.cfg.TopRanked, "top_ranked", "ScoreSaber Top Ranked", "BeatSyncScoreSaberTopRanked", true},
		{s.cfg.Trending, "trending", "ScoreSaber Trending", "BeatSyncScoreSaberTrending", false},
		{s.cfg.TopPlayed, "top_played", "ScoreSaber Top Played", "BeatSyncScoreSaberTopPlayed", false},
		{s.cfg.LatestRanked, "latest_ranked", "ScoreSaber Latest Ranked", "BeatSyncScoreSaberLatestRanked", true},
	}

	var feeds []FeedSpec
	for _, c := range candidates {
		if !c.cfg.Enabled {
			continue
		}
		feeds = append(feeds, FeedSpec{
			Name:           c.name,
			DisplayName:    c.display,
			MaxSongs:       c.cfg.MaxSongs,
			CreatePlaylist: c.cfg.CreatePlaylist,
			PlaylistName:   c.playlistName,
			RankedOnly:     c.forceRanked || c.cfg.RankedOnly,
		})
	}
	return feeds
}

// FetchPage retrieves one page of a ScoreSaber leaderboard feed.
func (s *ScoreSaberService) FetchPage(ctx context.Context, feed FeedSpec, page int) (*FeedPage, error) {
	var cat int
	switch feed.Name {
	case "trending":
		cat = scoreSaberCatTrending
	case "latest_ranked":
		cat = scoreSaberCatLatestRanked
	case "top_played":
		cat = scoreSaberCatTopPlayed
	case "top_ranked":
		cat = scoreSaberCatTopRanked
	default:
		return nil, fmt.Errorf("%w: unknown ScoreSaber feed %q", shared.ErrInvalidInput, feed.Name)
	}

	ranked := 0
	if feed.RankedOnly {
		ranked = 1
	}
	// The ScoreSaber API numbers pages from 1.
	endpoint := fmt.Sprintf("/api.php?function=get-leaderboards&cat=%d&limit=%d&page=%d&ranked=%d",
		cat, scoreSaberPageSize, page+1, ranked)

	var resp scoreSaberPage
	if err := s.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	songs := make([]models.ScrapedSong, 0, len(resp.Songs))
	for _, song := range resp.Songs {
		songs = append(songs, models.ScrapedSong{
			Hash:            strings.ToUpper(song.ID),
			Name:            song.Name,
			LevelAuthorName: song.LevelAuthorName,
			SourceURI:       s.baseURL + endpoint,
			DiscoveredAt:    time.Now().UTC(),
		})
	}
	return &FeedPage{
		Songs:    songs,
		LastPage: len(resp.Songs) < scoreSaberPageSize,
	}, nil
}

func (s *ScoreSaberService) doRequest(ctx context.Context, endpoint string, result any) error {
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
		return fmt.Errorf("%w: scoresaber API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

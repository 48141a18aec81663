// Beat Saver catalog implementation of [SourceClient]
//
// Beat Saver is also the download and key/hash resolution endpoint for songs
// scraped from the other sources.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/C0rn3j/BeatSync/internal/models"
	"github.com/C0rn3j/BeatSync/internal/shared"
)

const defaultBeatSaverBaseURL = "https://beatsaver.com"

// Beat Saver allows roughly ten API calls per second before throttling.
const beatSaverRequestsPerSecond = 10

type beatSaverSong struct {
	Key      string `json:"key"`
	Hash     string `json:"hash"`
	Name     string `json:"name"`
	Uploader struct {
		Username string `json:"username"`
	} `json:"uploader"`
	Metadata struct {
		LevelAuthorName string `json:"levelAuthorName"`
	} `json:"metadata"`
}

type beatSaverPage struct {
	Docs     []beatSaverSong `json:"docs"`
	LastPage int             `json:"lastPage"`
}

// BeatSaverService implements SourceClient plus hash/key resolution and
// payload downloads against the Beat Saver API.
type BeatSaverService struct {
	baseURL         string
	cfg             shared.BeatSaverConfig
	httpClient      *http.Client
	limiter         *rate.Limiter
	downloadTimeout time.Duration
}

// NewBeatSaverService creates a Beat Saver client. baseURL is overridable for
// tests and defaults to the public API.
func NewBeatSaverService(baseURL string, cfg shared.BeatSaverConfig, httpClient *http.Client) *BeatSaverService {
	if baseURL == "" {
		baseURL = defaultBeatSaverBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BeatSaverService{
		baseURL:    baseURL,
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(beatSaverRequestsPerSecond), 1),
	}
}

// SetDownloadTimeout bounds each payload download with a per-request
// deadline. The shared http.Client is left untouched so its own timeout,
// sized for small API calls, never cuts off a large zip on a slow link.
func (s *BeatSaverService) SetDownloadTimeout(d time.Duration) {
	s.downloadTimeout = d
}

func (s *BeatSaverService) Name() string { return "BeatSaver" }

func (s *BeatSaverService) MaxConcurrentPageChecks() int {
	return s.cfg.MaxConcurrentPageChecks
}

// EnabledFeeds returns the configured Beat Saver feeds. The favorite-mappers
// feed expands to one feed per mapper, all sharing a single playlist.
func (s *BeatSaverService) EnabledFeeds() []FeedSpec {
	var feeds []FeedSpec
	if s.cfg.Mappers.Enabled {
		for _, mapper := range s.cfg.FavoriteMappers {
			feeds = append(feeds, FeedSpec{
				Name:           "mapper",
				DisplayName:    "BeatSaver Mapper " + mapper,
				Param:          mapper,
				MaxSongs:       s.cfg.Mappers.MaxSongs,
				CreatePlaylist: s.cfg.Mappers.CreatePlaylist,
				PlaylistName:   "BeatSyncFavoriteMappers",
			})
		}
	}
	if s.cfg.Hot.Enabled {
		feeds = append(feeds, FeedSpec{
			Name:           "hot",
			DisplayName:    "BeatSaver Hot",
			MaxSongs:       s.cfg.Hot.MaxSongs,
			CreatePlaylist: s.cfg.Hot.CreatePlaylist,
			PlaylistName:   "BeatSyncBeatSaverHot",
		})
	}
	if s.cfg.Downloads.Enabled {
		feeds = append(feeds, FeedSpec{
			Name:           "downloads",
			DisplayName:    "BeatSaver Downloads",
			MaxSongs:       s.cfg.Downloads.MaxSongs,
			CreatePlaylist: s.cfg.Downloads.CreatePlaylist,
			PlaylistName:   "BeatSyncBeatSaverDownloads",
		})
	}
	return feeds
}

// FetchPage retrieves one page of a Beat Saver feed.
func (s *BeatSaverService) FetchPage(ctx context.Context, feed FeedSpec, page int) (*FeedPage, error) {
	var endpoint string
	switch feed.Name {
	case "hot":
		endpoint = fmt.Sprintf("/api/maps/hot/%d", page)
	case "downloads":
		endpoint = fmt.Sprintf("/api/maps/downloads/%d", page)
	case "mapper":
		endpoint = fmt.Sprintf("/api/maps/uploader/%s/%d", url.PathEscape(feed.Param), page)
	default:
		return nil, fmt.Errorf("%w: unknown BeatSaver feed %q", shared.ErrInvalidInput, feed.Name)
	}

	var resp beatSaverPage
	if err := s.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	songs := make([]models.ScrapedSong, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		songs = append(songs, s.toScrapedSong(doc, endpoint))
	}
	return &FeedPage{
		Songs:    songs,
		LastPage: page >= resp.LastPage || len(resp.Docs) == 0,
	}, nil
}

// ResolveHash looks up the content hash for a Beat Saver key.
func (s *BeatSaverService) ResolveHash(ctx context.Context, key string) (string, error) {
	var doc beatSaverSong
	endpoint := fmt.Sprintf("/api/maps/detail/%s", url.PathEscape(strings.ToLower(key)))
	if err := s.doRequest(ctx, endpoint, &doc); err != nil {
		return "", err
	}
	if doc.Hash == "" {
		return "", fmt.Errorf("%w: no hash for key %s", shared.ErrNotFound, key)
	}
	return strings.ToUpper(doc.Hash), nil
}

// ResolveKey looks up the Beat Saver key for a content hash.
func (s *BeatSaverService) ResolveKey(ctx context.Context, hash string) (string, error) {
	var doc beatSaverSong
	endpoint := fmt.Sprintf("/api/maps/by-hash/%s", url.PathEscape(strings.ToLower(hash)))
	if err := s.doRequest(ctx, endpoint, &doc); err != nil {
		return "", err
	}
	if doc.Key == "" {
		return "", fmt.Errorf("%w: no key for hash %s", shared.ErrNotFound, hash)
	}
	return doc.Key, nil
}

// DownloadSong streams the zip payload for hash to destPath, overwriting any
// leftover file from a previous run.
func (s *BeatSaverService) DownloadSong(ctx context.Context, hash, destPath string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if s.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.downloadTimeout)
		defer cancel()
	}

	downloadURL := fmt.Sprintf("%s/api/download/hash/%s", s.baseURL, url.PathEscape(strings.ToLower(hash)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: no download for hash %s", shared.ErrNotFound, hash)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: beatsaver download status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create download target: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	return nil
}

func (s *BeatSaverService) toScrapedSong(doc beatSaverSong, endpoint string) models.ScrapedSong {
	author := doc.Metadata.LevelAuthorName
	if author == "" {
		author = doc.Uploader.Username
	}
	return models.ScrapedSong{
		Hash:            strings.ToUpper(doc.Hash),
		Key:             doc.Key,
		Name:            doc.Name,
		LevelAuthorName: author,
		SourceURI:       s.baseURL + endpoint,
		DiscoveredAt:    time.Now().UTC(),
	}
}

// doRequest performs a rate-limited GET against the Beat Saver API and
// decodes the JSON response into result.
func (s *BeatSaverService) doRequest(ctx context.Context, endpoint string, result any) error {
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

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: beatsaver API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

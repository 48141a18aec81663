package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/C0rn3j/BeatSync/internal/shared"
)

func TestBeastSaberEnabledFeedsRequireUsername(t *testing.T) {
	cfg := shared.BeastSaberConfig{
		Enabled:            true,
		Bookmarks:          shared.FeedConfig{Enabled: true},
		Follows:            shared.FeedConfig{Enabled: true},
		CuratorRecommended: shared.FeedConfig{Enabled: true},
	}

	svc := NewBeastSaberService("", cfg, nil)
	feeds := svc.EnabledFeeds()
	if len(feeds) != 1 || feeds[0].Name != "curator_recommended" {
		t.Fatalf("feeds without username = %+v, want curator_recommended only", feeds)
	}

	cfg.Username = "someone"
	feeds = NewBeastSaberService("", cfg, nil).EnabledFeeds()
	if len(feeds) != 3 {
		t.Fatalf("got %d feeds with username, want 3", len(feeds))
	}
}

func TestBeastSaberFetchPage(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{
			"songs": [
				{"title": "With Hash", "song_key": "abc1", "hash": "aabbcc", "level_author_name": "Mapper"},
				{"title": "Key Only", "song_key": "abc2", "hash": "", "level_author_name": "Mapper2"}
			],
			"next_page": 2
		}`)
	}))
	defer server.Close()

	svc := NewBeastSaberService(server.URL, shared.BeastSaberConfig{Username: "someone"}, server.Client())
	page, err := svc.FetchPage(context.Background(), FeedSpec{Name: "bookmarks", Param: "someone"}, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if got := gotQuery["bookmarked_by"]; len(got) != 1 || got[0] != "someone" {
		t.Errorf("bookmarked_by = %v", got)
	}
	if got := gotQuery["page"]; len(got) != 1 || got[0] != "1" {
		t.Errorf("page query = %v, want 1 (API pages are one-based)", got)
	}

	if len(page.Songs) != 2 {
		t.Fatalf("got %d songs, want 2", len(page.Songs))
	}
	if page.Songs[0].Hash != "AABBCC" {
		t.Errorf("hash = %q, want uppercased", page.Songs[0].Hash)
	}
	if page.Songs[1].Hash != "" || page.Songs[1].Key != "abc2" {
		t.Errorf("key-only song = %+v, want empty hash with key kept", page.Songs[1])
	}
	if page.LastPage {
		t.Error("LastPage = true with next_page set")
	}
}

func TestBeastSaberFetchPageLastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"songs": [{"title": "Last", "song_key": "k", "hash": "aa"}], "next_page": null}`)
	}))
	defer server.Close()

	svc := NewBeastSaberService(server.URL, shared.BeastSaberConfig{}, server.Client())
	page, err := svc.FetchPage(context.Background(), FeedSpec{Name: "curator_recommended", Param: "curatorrecommended"}, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if !page.LastPage {
		t.Error("LastPage = false with next_page null")
	}
}

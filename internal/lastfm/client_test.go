package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justestif/moodlens/internal/logging"
)

func tagsResponse(tags ...Tag) topTagsResponse {
	var resp topTagsResponse
	resp.TopTags.Tag = tags
	return resp
}

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		apiKey:     "test-api-key",
		httpClient: server.Client(),
		baseURL:    server.URL + "/",
		retries:    3,
		retryDelay: time.Millisecond,
		logger:     logging.Named("lastfm-test"),
		cache:      make(map[string][]Tag),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestGetTags(t *testing.T) {
	tests := []struct {
		name           string
		trackResponse  any
		artistResponse any
		wantTags       []string
		wantErr        error
	}{
		{
			name: "track has tags",
			trackResponse: tagsResponse(
				Tag{Name: "alternative", Count: 100},
				Tag{Name: "rock", Count: 80},
			),
			wantTags: []string{"alternative", "rock"},
		},
		{
			name:           "track empty falls back to artist",
			trackResponse:  tagsResponse(),
			artistResponse: tagsResponse(Tag{Name: "pop"}, Tag{Name: "dance"}),
			wantTags:       []string{"pop", "dance"},
		},
		{
			name:           "both empty returns empty slice",
			trackResponse:  tagsResponse(),
			artistResponse: tagsResponse(),
			wantTags:       []string{},
		},
		{
			name:          "invalid API key",
			trackResponse: apiError{Error: 10, Message: "Invalid API key"},
			wantErr:       ErrInvalidAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch method := r.URL.Query().Get("method"); method {
				case "track.getTopTags":
					writeJSON(w, tt.trackResponse)
				case "artist.getTopTags":
					writeJSON(w, tt.artistResponse)
				default:
					t.Errorf("unexpected method: %s", method)
				}
			}))
			defer server.Close()

			tags, err := newTestClient(server).GetTags(context.Background(), "Artist", "Track")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetTags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if tags == nil {
				t.Fatal("GetTags() returned nil slice")
			}
			if len(tags) != len(tt.wantTags) {
				t.Fatalf("GetTags() got %d tags, want %d", len(tags), len(tt.wantTags))
			}
			for i, tag := range tags {
				if tag.Name != tt.wantTags[i] {
					t.Errorf("tag[%d].Name = %s, want %s", i, tag.Name, tt.wantTags[i])
				}
			}
		})
	}
}

func TestGetTags_Caching(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		writeJSON(w, tagsResponse(Tag{Name: "rock", Count: 100}))
	}))
	defer server.Close()

	client := newTestClient(server)
	for i := 0; i < 2; i++ {
		tags, err := client.GetTags(context.Background(), "Artist", "Track")
		if err != nil {
			t.Fatalf("GetTags() call %d error = %v", i+1, err)
		}
		if len(tags) != 1 {
			t.Fatalf("GetTags() call %d got %d tags, want 1", i+1, len(tags))
		}
	}

	if count := requestCount.Load(); count != 1 {
		t.Errorf("Expected 1 request, got %d", count)
	}
}

func TestGetTags_RateLimitRetry(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount.Add(1) < 3 {
			writeJSON(w, apiError{Error: 29, Message: "Rate limit exceeded"})
			return
		}
		writeJSON(w, tagsResponse(Tag{Name: "rock", Count: 100}))
	}))
	defer server.Close()

	tags, err := newTestClient(server).GetTags(context.Background(), "Artist", "Track")
	if err != nil {
		t.Fatalf("GetTags() error = %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "rock" {
		t.Errorf("GetTags() got unexpected tags: %v", tags)
	}
	if count := requestCount.Load(); count != 3 {
		t.Errorf("Expected 3 requests, got %d", count)
	}
}

func TestGetTags_RateLimitExhausted(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		writeJSON(w, apiError{Error: 29, Message: "Rate limit exceeded"})
	}))
	defer server.Close()

	_, err := newTestClient(server).GetTags(context.Background(), "Artist", "Track")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("GetTags() error = %v, want ErrRateLimited", err)
	}
	// 1 initial + 3 retries
	if count := requestCount.Load(); count != 4 {
		t.Errorf("Expected 4 requests, got %d", count)
	}
}

func TestTopTagNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, tagsResponse(
			Tag{Name: "Sad", Count: 100},
			Tag{Name: "sad ", Count: 90},
			Tag{Name: "Indie", Count: 50},
			Tag{Name: ""},
			Tag{Name: "folk", Count: 10},
		))
	}))
	defer server.Close()

	names, err := newTestClient(server).TopTagNames(context.Background(), "Artist", "Track", 2)
	if err != nil {
		t.Fatalf("TopTagNames() error = %v", err)
	}
	if len(names) != 2 || names[0] != "sad" || names[1] != "indie" {
		t.Errorf("TopTagNames() = %v, want [sad indie]", names)
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(&Config{APIKey: "test-key"})

	if client.apiKey != "test-key" {
		t.Errorf("NewClient() apiKey = %s, want test-key", client.apiKey)
	}
	if client.httpClient == nil {
		t.Error("NewClient() httpClient is nil")
	}
	if client.cache == nil {
		t.Error("NewClient() cache is nil")
	}
	if client.baseURL != baseURL {
		t.Errorf("NewClient() baseURL = %s, want %s", client.baseURL, baseURL)
	}
	if client.retries != 3 {
		t.Errorf("NewClient() retries = %d, want 3", client.retries)
	}
}

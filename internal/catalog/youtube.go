package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/dojo/internal/privacy"
)

// DefaultYouTubeBaseURL is the YouTube Data API v3 endpoint.
const DefaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

// MaxSearchResults is the largest page the search endpoint serves.
const MaxSearchResults = 50

// YouTubeClient implements Catalog against the YouTube Data API.
type YouTubeClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

var _ Catalog = (*YouTubeClient)(nil)

// Option configures a YouTubeClient.
type Option func(*YouTubeClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *YouTubeClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewYouTubeClient creates a YouTube Data API client.
func NewYouTubeClient(apiKey, baseURL string, opts ...Option) (*YouTubeClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("youtube api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultYouTubeBaseURL
	}
	c := &YouTubeClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			PublishedAt  string `json:"publishedAt"`
			ChannelID    string `json:"channelId"`
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type channelsResponse struct {
	Items []struct {
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
		Code int `json:"code"`
	} `json:"error"`
}

// Search returns up to maxResults video hits for query.
func (c *YouTubeClient) Search(ctx context.Context, query string, maxResults int) ([]Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	if maxResults <= 0 || maxResults > MaxSearchResults {
		maxResults = MaxSearchResults
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))

	var resp searchResponse
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(resp.Items))
	for _, it := range resp.Items {
		item := Item{
			ExternalID:  it.ID.VideoID,
			Title:       it.Snippet.Title,
			ChannelName: it.Snippet.ChannelTitle,
			ChannelRef:  it.Snippet.ChannelID,
		}
		if ts, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt); err == nil {
			item.PublishedAt = ts
		}
		items = append(items, item)
	}
	return items, nil
}

// Duration returns the playback length of a video.
func (c *YouTubeClient) Duration(ctx context.Context, externalID string) (time.Duration, error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", externalID)

	var resp videosResponse
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return 0, err
	}
	if len(resp.Items) == 0 {
		return 0, fmt.Errorf("video %s: %w", externalID, ErrNotFound)
	}
	return ParseISODuration(resp.Items[0].ContentDetails.Duration)
}

// ChannelStats returns subscriber and video counts of a channel.
// Hidden subscriber counts read as zero.
func (c *YouTubeClient) ChannelStats(ctx context.Context, channelRef string) (ChannelStats, error) {
	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", channelRef)

	var resp channelsResponse
	if err := c.get(ctx, "channels", params, &resp); err != nil {
		return ChannelStats{}, err
	}
	if len(resp.Items) == 0 {
		return ChannelStats{}, fmt.Errorf("channel %s: %w", channelRef, ErrNotFound)
	}

	stats := resp.Items[0].Statistics
	subs, _ := strconv.ParseInt(stats.SubscriberCount, 10, 64)
	videos, _ := strconv.Atoi(stats.VideoCount)
	return ChannelStats{Subscribers: subs, Videos: videos}, nil
}

func (c *YouTubeClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", c.apiKey)
	endpointURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the API key.
		return privacy.RedactError(fmt.Errorf("youtube %s: %w", endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read youtube %s response: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyError(endpoint, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode youtube %s response: %w", endpoint, err)
	}
	return nil
}

// quotaReasons are the error reasons YouTube uses when the daily budget is spent.
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
	"rateLimitExceeded":     false,
	"userRateLimitExceeded": false,
}

func classifyError(endpoint string, status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	for _, e := range apiErr.Error.Errors {
		if quotaReasons[e.Reason] {
			return fmt.Errorf("youtube %s: %s: %w", endpoint, e.Reason, ErrQuotaExhausted)
		}
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("youtube %s: %w", endpoint, ErrNotFound)
	}

	msg := apiErr.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("youtube %s: status %d: %s", endpoint, status, msg)
}

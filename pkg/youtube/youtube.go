package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ytscribe/ytscribe/pkg/utils"
)

const (
	defaultBaseURL     = "https://www.youtube.com"
	defaultHTTPTimeout = 30 * time.Second
)

var (
	// ErrTooManyRequests means the provider is throttling us, either with an
	// explicit 429 or a captcha interstitial.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrNoCaptions means the video has no caption tracks.
	ErrNoCaptions = errors.New("no caption tracks")
	// ErrUnavailable means the video cannot be fetched at all.
	ErrUnavailable = errors.New("video unavailable")
)

// Entry is one caption unit in temporal order. Entries are immutable once
// fetched; a transcript is either fully fetched or the fetch failed.
type Entry struct {
	Text       string
	OffsetMs   int64
	DurationMs int64
}

// statusError carries the HTTP status of a failed provider request so the
// throttle gate can classify it without parsing messages.
type statusError struct {
	status  int
	context string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.context, e.status)
}

func (e *statusError) StatusCode() int {
	return e.status
}

// Client fetches transcripts from YouTube's public watch pages, the same
// way a browser does. No credentials are involved.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    defaultBaseURL,
	}
}

// FetchTranscript retrieves the full ordered caption sequence for a video.
// The sequence is all-or-nothing: any failure means no entries.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) ([]Entry, error) {
	page, err := c.fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	tracks, err := extractCaptionTracks(videoID, page)
	if err != nil {
		return nil, err
	}

	track := bestTrack(tracks)
	if track == nil {
		return nil, fmt.Errorf("video %q: %w", videoID, ErrNoCaptions)
	}

	entries, err := c.fetchTrack(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) fetchWatchPage(ctx context.Context, videoID string) (string, error) {
	watchURL := fmt.Sprintf("%s/watch?v=%s", c.baseURL, url.QueryEscape(videoID))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", utils.WrapIfNotNil(err, "requesting watch page")
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", utils.WrapIfNotNil(err, "reading watch page")
	}
	page := string(body)

	if response.StatusCode != http.StatusOK {
		return "", &statusError{status: response.StatusCode, context: "watch page for " + videoID}
	}
	if strings.Contains(page, `class="g-recaptcha"`) {
		return "", fmt.Errorf("video %q got captcha page: %w", videoID, ErrTooManyRequests)
	}
	return page, nil
}

func (c *Client) fetchTrack(ctx context.Context, trackURL string) ([]Entry, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, "requesting caption track")
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, "reading caption track")
	}
	if response.StatusCode != http.StatusOK {
		return nil, &statusError{status: response.StatusCode, context: "caption track"}
	}

	return parseTranscriptXML(body)
}

type captionsRenderer struct {
	PlayerCaptionsTracklistRenderer struct {
		CaptionTracks []captionTrack `json:"captionTracks"`
	} `json:"playerCaptionsTracklistRenderer"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// extractCaptionTracks pulls the caption track list out of the embedded
// player response JSON on the watch page.
func extractCaptionTracks(videoID, page string) ([]captionTrack, error) {
	split := strings.SplitN(page, `"captions":`, 2)
	if len(split) < 2 {
		if strings.Contains(page, `"playabilityStatus"`) && strings.Contains(page, `"ERROR"`) {
			return nil, fmt.Errorf("video %q is not playable: %w", videoID, ErrUnavailable)
		}
		return nil, fmt.Errorf("video %q has no captions JSON: %w", videoID, ErrNoCaptions)
	}

	rawCaptions := strings.ReplaceAll(strings.SplitN(split[1], `,"videoDetails`, 2)[0], "\n", "")
	renderer := captionsRenderer{}
	if err := json.Unmarshal([]byte(rawCaptions), &renderer); err != nil {
		return nil, utils.WrapIfNotNil(err, "unmarshalling caption tracks")
	}
	return renderer.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

// bestTrack prefers a manually written english track, then any english
// track, then any manual track, then whatever is first.
func bestTrack(tracks []captionTrack) *captionTrack {
	for i, t := range tracks {
		if t.LanguageCode == "en" && t.Kind != "asr" {
			return &tracks[i]
		}
	}
	for i, t := range tracks {
		if t.LanguageCode == "en" {
			return &tracks[i]
		}
	}
	for i, t := range tracks {
		if t.Kind != "asr" {
			return &tracks[i]
		}
	}
	if len(tracks) > 0 {
		return &tracks[0]
	}
	return nil
}

type transcriptXML struct {
	Entries []struct {
		Text  string  `xml:",chardata"`
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
	} `xml:"text"`
}

func parseTranscriptXML(body []byte) ([]Entry, error) {
	parsed := transcriptXML{}
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, utils.WrapIfNotNil(err, "parsing transcript xml")
	}

	entries := make([]Entry, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		entries = append(entries, Entry{
			Text:       e.Text,
			OffsetMs:   int64(e.Start * 1000),
			DurationMs: int64(e.Dur * 1000),
		})
	}
	return entries, nil
}

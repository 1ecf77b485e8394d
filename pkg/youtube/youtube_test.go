package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ytscribe/ytscribe/pkg/throttle"

	"github.com/stretchr/testify/suite"
)

const sampleTrackXML = `<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.12" dur="2.5">hello &amp; welcome</text>
  <text start="2.62" dur="1.9">to the show</text>
</transcript>`

func watchPage(captionsJSON string) string {
	if captionsJSON == "" {
		return `<html>{"playabilityStatus":{"status":"OK"}}</html>`
	}
	return fmt.Sprintf(`<html>{"captions":%s,"videoDetails":{"videoId":"x"}}</html>`, captionsJSON)
}

type ClientSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) newServerClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	s.T().Cleanup(server.Close)

	client := NewClient()
	client.baseURL = server.URL
	return client, server
}

func (s *ClientSuite) TestFetchTranscript() {
	client, _ := s.newServerClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			captions := fmt.Sprintf(
				`{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/track","languageCode":"en"}]}}`,
				"http://"+r.Host,
			)
			fmt.Fprint(w, watchPage(captions))
		case "/track":
			fmt.Fprint(w, sampleTrackXML)
		default:
			http.NotFound(w, r)
		}
	}))

	entries, err := client.FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("hello & welcome", entries[0].Text)
	s.Equal(int64(120), entries[0].OffsetMs)
	s.Equal(int64(2500), entries[0].DurationMs)
	s.Equal("to the show", entries[1].Text)
}

func (s *ClientSuite) TestFetchTranscriptNoCaptions() {
	client, _ := s.newServerClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, watchPage(""))
	}))

	_, err := client.FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	s.ErrorIs(err, ErrNoCaptions)
}

func (s *ClientSuite) TestFetchTranscriptCaptchaIsRateLimited() {
	client, _ := s.newServerClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><div class="g-recaptcha"></div></html>`)
	}))

	_, err := client.FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	s.ErrorIs(err, ErrTooManyRequests)
	s.True(throttle.IsRateLimited(err))
}

func (s *ClientSuite) TestFetchTranscript429IsRateLimited() {
	client, _ := s.newServerClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	s.Require().Error(err)
	s.True(throttle.IsRateLimited(err))

	var coder throttle.StatusCoder
	s.Require().True(errors.As(err, &coder))
	s.Equal(http.StatusTooManyRequests, coder.StatusCode())
}

func (s *ClientSuite) TestFetchTranscriptServerErrorIsNotRateLimited() {
	client, _ := s.newServerClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	s.Require().Error(err)
	s.False(throttle.IsRateLimited(err))
}

type ExtractSuite struct {
	suite.Suite
}

func TestExtractSuite(t *testing.T) {
	suite.Run(t, new(ExtractSuite))
}

func (s *ExtractSuite) TestExtractCaptionTracks() {
	page := watchPage(`{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"http://example.com/t","languageCode":"en","kind":"asr"}]}}`)
	tracks, err := extractCaptionTracks("abc", page)
	s.Require().NoError(err)
	s.Require().Len(tracks, 1)
	s.Equal("en", tracks[0].LanguageCode)
	s.Equal("asr", tracks[0].Kind)
}

func (s *ExtractSuite) TestExtractCaptionTracksUnplayable() {
	page := `<html>{"playabilityStatus":{"status":"ERROR","reason":"gone"}}</html>`
	_, err := extractCaptionTracks("abc", page)
	s.ErrorIs(err, ErrUnavailable)
}

func (s *ExtractSuite) TestExtractCaptionTracksMissing() {
	_, err := extractCaptionTracks("abc", watchPage(""))
	s.ErrorIs(err, ErrNoCaptions)
}

func (s *ExtractSuite) TestBestTrackPrefersManualEnglish() {
	tracks := []captionTrack{
		{BaseURL: "auto-en", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "manual-fr", LanguageCode: "fr"},
		{BaseURL: "manual-en", LanguageCode: "en"},
	}
	s.Equal("manual-en", bestTrack(tracks).BaseURL)
}

func (s *ExtractSuite) TestBestTrackFallsBackToAutoEnglish() {
	tracks := []captionTrack{
		{BaseURL: "manual-fr", LanguageCode: "fr"},
		{BaseURL: "auto-en", LanguageCode: "en", Kind: "asr"},
	}
	s.Equal("auto-en", bestTrack(tracks).BaseURL)
}

func (s *ExtractSuite) TestBestTrackFallsBackToFirst() {
	tracks := []captionTrack{
		{BaseURL: "auto-ja", LanguageCode: "ja", Kind: "asr"},
	}
	s.Equal("auto-ja", bestTrack(tracks).BaseURL)
}

func (s *ExtractSuite) TestBestTrackEmpty() {
	s.Nil(bestTrack(nil))
}

type VideoIDSuite struct {
	suite.Suite
}

func TestVideoIDSuite(t *testing.T) {
	suite.Run(t, new(VideoIDSuite))
}

func (s *VideoIDSuite) TestBareID() {
	id, err := ParseVideoID("dQw4w9WgXcQ")
	s.Require().NoError(err)
	s.Equal("dQw4w9WgXcQ", id)
}

func (s *VideoIDSuite) TestWatchURL() {
	id, err := ParseVideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s")
	s.Require().NoError(err)
	s.Equal("dQw4w9WgXcQ", id)
}

func (s *VideoIDSuite) TestShortURL() {
	id, err := ParseVideoID("https://youtu.be/dQw4w9WgXcQ")
	s.Require().NoError(err)
	s.Equal("dQw4w9WgXcQ", id)
}

func (s *VideoIDSuite) TestEmbedAndShortsURLs() {
	for _, input := range []string{
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
	} {
		id, err := ParseVideoID(input)
		s.Require().NoError(err, input)
		s.Equal("dQw4w9WgXcQ", id)
	}
}

func (s *VideoIDSuite) TestRejectsGarbage() {
	for _, input := range []string{"", "    ", "not-a-video", "https://example.com/watch?v=dQw4w9WgXcQ"} {
		_, err := ParseVideoID(input)
		s.Error(err, input)
	}
}

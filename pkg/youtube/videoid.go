package youtube

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video ID from a bare ID or any of
// the common YouTube URL shapes (watch, youtu.be, embed, shorts, live).
func ParseVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty video reference")
	}
	if videoIDPattern.MatchString(input) {
		return input, nil
	}

	parsed, err := url.Parse(input)
	if err != nil || parsed.Host == "" {
		return "", errors.New("not a video id or a youtube url: " + input)
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	switch host {
	case "youtu.be":
		if id := firstPathSegment(parsed.Path); videoIDPattern.MatchString(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := parsed.Query().Get("v"); videoIDPattern.MatchString(id) {
			return id, nil
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/", "/v/"} {
			if strings.HasPrefix(parsed.Path, prefix) {
				id := firstPathSegment(strings.TrimPrefix(parsed.Path, prefix))
				if videoIDPattern.MatchString(id) {
					return id, nil
				}
			}
		}
	}

	return "", errors.New("could not extract a video id from: " + input)
}

func firstPathSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

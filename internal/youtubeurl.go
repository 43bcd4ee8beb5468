package internal

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// path prefixes that carry the id as the next path element
var youtubeIDPaths = []string{"shorts", "embed", "live", "v"}

func isYouTubeHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com", "youtu.be":
		return true
	}
	return false
}

// youtubeID pulls the 11 character video id out of a YouTube URL.
func youtubeID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if !isYouTubeHost(u.Host) {
		return "", fmt.Errorf("%q is not a YouTube host", u.Host)
	}

	var id string
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case u.Query().Has("v"):
		id = u.Query().Get("v")
	case strings.EqualFold(u.Host, "youtu.be"):
		id = parts[0]
	case len(parts) == 2 && containsFold(youtubeIDPaths, parts[0]):
		id = parts[1]
	case u.Query().Has("list"):
		return "", fmt.Errorf("%q is a playlist, not a video", raw)
	}

	if !IsValidYouTubeID(id) {
		return "", fmt.Errorf("no video id in %q", raw)
	}
	return id, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// ParseArg accepts a bare video id or a URL and returns a URL to process
// together with the id when one can be read from it.
func ParseArg(arg string) (string, string) {
	arg = strings.TrimSpace(arg)
	if IsValidYouTubeID(arg) {
		return "https://www.youtube.com/watch?v=" + arg, arg
	}
	id, err := youtubeID(arg)
	if err != nil {
		return arg, ""
	}
	return arg, id
}

func IsValidYouTubeID(id string) bool {
	return youtubeIDPattern.MatchString(id)
}

// IsLikelyCommand reports whether a root argument looks like a mistyped
// subcommand rather than a video.
func IsLikelyCommand(arg string) bool {
	return len(arg) <= 10 && !IsValidYouTubeID(arg) && !strings.Contains(arg, "/")
}

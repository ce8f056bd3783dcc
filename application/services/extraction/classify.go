package extraction

import (
	"net/url"
	"strings"
)

// SourceKind is the detected class of an extraction input
type SourceKind string

const (
	KindYouTube   SourceKind = "youtube"
	KindInstagram SourceKind = "instagram"
	KindURL       SourceKind = "url"
	KindText      SourceKind = "text"
	KindFile      SourceKind = "file"
)

var (
	youtubePatterns   = []string{"youtube.com/watch?v=", "youtu.be/", "youtube.com/shorts/"}
	instagramPatterns = []string{"instagram.com/p/", "instagram.com/reel/", "instagram.com/reels/", "instagram.com/tv/"}
)

// Classify detects which extractor handles the input. YouTube is checked
// first, then Instagram, then any other http(s) URL. Everything else is text.
func Classify(input string) SourceKind {
	s := strings.ToLower(strings.TrimSpace(input))
	for _, p := range youtubePatterns {
		if strings.Contains(s, p) {
			return KindYouTube
		}
	}
	for _, p := range instagramPatterns {
		if strings.Contains(s, p) {
			return KindInstagram
		}
	}
	if isURL(s) {
		return KindURL
	}
	return KindText
}

// IsReel reports whether an Instagram URL points at a video post
func IsReel(input string) bool {
	s := strings.ToLower(input)
	return strings.Contains(s, "/reel/") || strings.Contains(s, "/reels/") || strings.Contains(s, "/tv/")
}

func isURL(s string) bool {
	if strings.ContainsAny(s, " \n\t") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

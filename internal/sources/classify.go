// Package sources classifies input URLs into the source kinds the
// pipeline knows how to ingest.
package sources

import (
	"net/url"
	"regexp"
	"strings"
)

type SourceType string

const (
	SourceYouTube     SourceType = "youtube"
	SourceRSS         SourceType = "rss"
	SourcePodcastPage SourceType = "podcast_page"
	SourceInvalid     SourceType = "invalid"
)

// Classification is the result of classifying one URL.
type Classification struct {
	Valid bool       `json:"valid"`
	Type  SourceType `json:"type"`
	Error string     `json:"error,omitempty"`
}

// Feed-looking paths and query strings. Checked against the lowercased
// URL as a whole.
var rssIndicators = regexp.MustCompile(`\.xml$|/feed|/rss|/podcast|feed=|format=rss|type=rss`)

// Classify validates a URL and detects its source type. Classification
// is pure: the same input always yields the same result.
func Classify(raw string) Classification {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Classification{Valid: false, Type: SourceInvalid, Error: "URL cannot be empty"}
	}

	parsed, err := url.Parse(raw)
	if err == nil && isYouTubeHost(parsed.Hostname()) {
		return Classification{Valid: true, Type: SourceYouTube}
	}

	if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Classification{Valid: false, Type: SourceInvalid, Error: "URL must start with http:// or https://"}
	}
	if parsed.Host == "" {
		return Classification{Valid: false, Type: SourceInvalid, Error: "Invalid URL format"}
	}

	if rssIndicators.MatchString(strings.ToLower(raw)) {
		return Classification{Valid: true, Type: SourceRSS}
	}

	// Anything else is assumed to be a podcast page the pipeline can
	// resolve a feed from.
	return Classification{Valid: true, Type: SourcePodcastPage}
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	if host == "youtu.be" || host == "youtube.com" {
		return true
	}
	return strings.HasSuffix(host, ".youtube.com")
}

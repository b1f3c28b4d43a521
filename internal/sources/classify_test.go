package sources

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		url   string
		valid bool
		typ   SourceType
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true, SourceYouTube},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", true, SourceYouTube},
		{"youtube mobile", "https://m.youtube.com/watch?v=abc", true, SourceYouTube},
		{"youtube music", "https://music.youtube.com/watch?v=abc", true, SourceYouTube},
		{"rss xml suffix", "https://example.com/feed.xml", true, SourceRSS},
		{"rss feed path", "https://example.com/feed", true, SourceRSS},
		{"rss rss path", "https://example.com/rss/episodes", true, SourceRSS},
		{"rss podcast path", "https://example.com/podcast", true, SourceRSS},
		{"rss feed query", "https://example.com/show?feed=rss2", true, SourceRSS},
		{"rss format query", "https://example.com/show?format=rss", true, SourceRSS},
		{"rss uppercase", "https://example.com/FEED.XML", true, SourceRSS},
		{"podcast page", "https://example.com/shows/acme-hour", true, SourcePodcastPage},
		{"podcast page root", "https://example.com", true, SourcePodcastPage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.url)
			if got.Valid != tc.valid || got.Type != tc.typ {
				t.Fatalf("Classify(%q)=(%v, %q), want (%v, %q)", tc.url, got.Valid, got.Type, tc.valid, tc.typ)
			}
			if got.Error != "" {
				t.Fatalf("Classify(%q) error=%q, want empty", tc.url, got.Error)
			}
		})
	}
}

func TestClassify_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"empty", "", "URL cannot be empty"},
		{"whitespace", "   ", "URL cannot be empty"},
		{"no scheme", "not-a-url", "URL must start with http:// or https://"},
		{"wrong scheme", "ftp://example.com/feed.xml", "URL must start with http:// or https://"},
		{"scheme only", "https://", "Invalid URL format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.url)
			if got.Valid {
				t.Fatalf("Classify(%q) valid, want invalid", tc.url)
			}
			if got.Type != SourceInvalid {
				t.Fatalf("Classify(%q) type=%q, want invalid", tc.url, got.Type)
			}
			if got.Error != tc.wantErr {
				t.Fatalf("Classify(%q) error=%q, want %q", tc.url, got.Error, tc.wantErr)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	first := Classify("https://example.com/feed.xml")
	for i := 0; i < 5; i++ {
		if got := Classify("https://example.com/feed.xml"); got != first {
			t.Fatalf("classification changed between calls: %+v vs %+v", got, first)
		}
	}
}

package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
)

// Args builds podx CLI arguments for the config. Flags whose value
// matches the CLI's own default are omitted.
func Args(cfg domain.PipelineConfig, defaults Defaults) []string {
	args := []string{"run"}
	for _, f := range flags(cfg, defaults, false) {
		args = append(args, f.name)
		if f.hasValue {
			args = append(args, f.value)
		}
	}
	return args
}

// DebugCommand renders the config as a copy-pastable podx invocation
// with secrets redacted.
func DebugCommand(cfg domain.PipelineConfig, defaults Defaults) string {
	parts := []string{"podx run"}
	for _, f := range flags(cfg, defaults, true) {
		if !f.hasValue {
			parts = append(parts, f.name)
			continue
		}
		if f.quoted {
			parts = append(parts, fmt.Sprintf("%s %q", f.name, f.value))
			continue
		}
		parts = append(parts, f.name+" "+f.value)
	}
	return strings.Join(parts, " ")
}

type flag struct {
	name     string
	value    string
	hasValue bool
	quoted   bool
}

func boolFlag(name string) flag {
	return flag{name: name}
}

func valueFlag(name, value string) flag {
	return flag{name: name, value: value, hasValue: true}
}

func quotedFlag(name, value string) flag {
	return flag{name: name, value: value, hasValue: true, quoted: true}
}

func flags(cfg domain.PipelineConfig, defaults Defaults, redact bool) []flag {
	var out []flag

	switch {
	case cfg.Show != "":
		out = append(out, quotedFlag("--show", cfg.Show))
	case cfg.RSSURL != "":
		out = append(out, quotedFlag("--rss-url", cfg.RSSURL))
	case cfg.YouTubeURL != "":
		out = append(out, quotedFlag("--youtube-url", cfg.YouTubeURL))
	}

	if cfg.Date != "" {
		out = append(out, quotedFlag("--date", cfg.Date))
	}
	if cfg.TitleContains != "" {
		out = append(out, quotedFlag("--title-contains", cfg.TitleContains))
	}

	if cfg.Fmt != "wav16" {
		out = append(out, valueFlag("--fmt", cfg.Fmt))
	}

	if cfg.Model != defaults.ASRModel {
		out = append(out, quotedFlag("--model", cfg.Model))
	}
	if cfg.Compute != "int8" {
		out = append(out, valueFlag("--compute", cfg.Compute))
	}
	if cfg.ASRProvider != "" && cfg.ASRProvider != "auto" {
		out = append(out, valueFlag("--asr-provider", cfg.ASRProvider))
	}

	if !cfg.Diarize {
		out = append(out, boolFlag("--no-diarize"))
	}
	if !cfg.Preprocess {
		out = append(out, boolFlag("--no-preprocess"))
	}
	if cfg.Restore {
		out = append(out, boolFlag("--restore"))
	}
	if !cfg.Deepcast {
		out = append(out, boolFlag("--no-deepcast"))
	}
	if !cfg.ExtractMarkdown {
		out = append(out, boolFlag("--no-markdown"))
	}
	if cfg.DeepcastPDF {
		out = append(out, boolFlag("--deepcast-pdf"))
	}
	if cfg.Notion {
		out = append(out, boolFlag("--notion"))
	}

	if cfg.DeepcastModel != defaults.DeepcastModel {
		out = append(out, quotedFlag("--deepcast-model", cfg.DeepcastModel))
	}
	if cfg.DeepcastTemp != defaults.DeepcastTemp {
		out = append(out, valueFlag("--deepcast-temp", strconv.FormatFloat(cfg.DeepcastTemp, 'g', -1, 64)))
	}

	if cfg.NotionDB != "" {
		db := cfg.NotionDB
		if redact {
			db = redactSecret(db)
		}
		out = append(out, quotedFlag("--db", db))
	}
	if cfg.PodcastProp != "Podcast" {
		out = append(out, quotedFlag("--podcast-prop", cfg.PodcastProp))
	}
	if cfg.DateProp != "Date" {
		out = append(out, quotedFlag("--date-prop", cfg.DateProp))
	}
	if cfg.EpisodeProp != "Episode" {
		out = append(out, quotedFlag("--episode-prop", cfg.EpisodeProp))
	}

	if cfg.Verbose {
		out = append(out, boolFlag("--verbose"))
	}
	if cfg.Clean {
		out = append(out, boolFlag("--clean"))
	}
	if cfg.NoKeepAudio {
		out = append(out, boolFlag("--no-keep-audio"))
	}

	return out
}

// redactSecret keeps the first and last 8 characters of long secrets so
// they stay identifiable without being usable.
func redactSecret(s string) string {
	if len(s) > 16 {
		return s[:8] + "..." + s[len(s)-8:]
	}
	return "***REDACTED***"
}

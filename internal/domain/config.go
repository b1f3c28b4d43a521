package domain

// PipelineConfig is the immutable configuration snapshot captured when a run
// is admitted. Field names mirror the podx CLI flags the pipeline consumes.
type PipelineConfig struct {
	// Source selection. Exactly one of RSSURL, YouTubeURL, or Show is
	// expected to be set.
	RSSURL        string `json:"rss_url,omitempty"`
	YouTubeURL    string `json:"youtube_url,omitempty"`
	Show          string `json:"show,omitempty"`
	Date          string `json:"date,omitempty"`
	TitleContains string `json:"title_contains,omitempty"`

	// Audio handling.
	Fmt         string `json:"fmt,omitempty"`
	Verbose     bool   `json:"verbose"`
	Clean       bool   `json:"clean"`
	NoKeepAudio bool   `json:"no_keep_audio"`

	// Transcription.
	Model       string `json:"model,omitempty"`
	Compute     string `json:"compute,omitempty"`
	ASRProvider string `json:"asr_provider,omitempty"`

	// Stage toggles.
	Diarize         bool `json:"diarize"`
	Preprocess      bool `json:"preprocess"`
	Restore         bool `json:"restore"`
	Deepcast        bool `json:"deepcast"`
	ExtractMarkdown bool `json:"extract_markdown"`
	DeepcastPDF     bool `json:"deepcast_pdf"`
	Notion          bool `json:"notion"`

	// Summarization.
	DeepcastModel string  `json:"deepcast_model,omitempty"`
	DeepcastTemp  float64 `json:"deepcast_temp,omitempty"`
	AnalysisType  string  `json:"analysis_type,omitempty"`

	// Notion publishing.
	NotionDB    string `json:"notion_db,omitempty"`
	PodcastProp string `json:"podcast_prop,omitempty"`
	DateProp    string `json:"date_prop,omitempty"`
	EpisodeProp string `json:"episode_prop,omitempty"`
}

// DefaultPipelineConfig returns the base configuration before preset and
// per-request overrides are applied.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Fmt:             "wav16",
		ASRProvider:     "auto",
		Diarize:         true,
		Preprocess:      true,
		Deepcast:        true,
		ExtractMarkdown: true,
		PodcastProp:     "Podcast",
		DateProp:        "Date",
		EpisodeProp:     "Episode",
	}
}

// Options is a partial override set layered onto a base PipelineConfig.
// Nil fields leave the base value untouched, so presets and per-request
// overrides compose in a defined order instead of overwriting blindly.
type Options struct {
	Diarize         *bool    `json:"diarize,omitempty"`
	Deepcast        *bool    `json:"deepcast,omitempty"`
	Preprocess      *bool    `json:"preprocess,omitempty"`
	Restore         *bool    `json:"restore,omitempty"`
	ExtractMarkdown *bool    `json:"extract_markdown,omitempty"`
	DeepcastPDF     *bool    `json:"deepcast_pdf,omitempty"`
	Notion          *bool    `json:"notion,omitempty"`
	Model           *string  `json:"model,omitempty"`
	Compute         *string  `json:"compute,omitempty"`
	ASRProvider     *string  `json:"asr_provider,omitempty"`
	DeepcastModel   *string  `json:"deepcast_model,omitempty"`
	DeepcastTemp    *float64 `json:"deepcast_temp,omitempty"`
	AnalysisType    *string  `json:"analysis_type,omitempty"`
}

// Apply overlays the set fields onto cfg. A nil receiver is a no-op.
func (o *Options) Apply(cfg *PipelineConfig) {
	if o == nil {
		return
	}
	if o.Diarize != nil {
		cfg.Diarize = *o.Diarize
	}
	if o.Deepcast != nil {
		cfg.Deepcast = *o.Deepcast
	}
	if o.Preprocess != nil {
		cfg.Preprocess = *o.Preprocess
	}
	if o.Restore != nil {
		cfg.Restore = *o.Restore
	}
	if o.ExtractMarkdown != nil {
		cfg.ExtractMarkdown = *o.ExtractMarkdown
	}
	if o.DeepcastPDF != nil {
		cfg.DeepcastPDF = *o.DeepcastPDF
	}
	if o.Notion != nil {
		cfg.Notion = *o.Notion
	}
	if o.Model != nil {
		cfg.Model = *o.Model
	}
	if o.Compute != nil {
		cfg.Compute = *o.Compute
	}
	if o.ASRProvider != nil {
		cfg.ASRProvider = *o.ASRProvider
	}
	if o.DeepcastModel != nil {
		cfg.DeepcastModel = *o.DeepcastModel
	}
	if o.DeepcastTemp != nil {
		cfg.DeepcastTemp = *o.DeepcastTemp
	}
	if o.AnalysisType != nil {
		cfg.AnalysisType = *o.AnalysisType
	}
}

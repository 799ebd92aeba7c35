package models

// MediaKind identifies the kind of title being resolved.
type MediaKind string

const (
	MediaKindMovie  MediaKind = "movie"
	MediaKindSeries MediaKind = "series"
)

// MediaQuery is the immutable input to the resolution pipeline, built once
// per client request.
type MediaQuery struct {
	ExternalID string
	Kind       MediaKind
	Season     int
	Episode    int
}

// MediaDescriptor is the provider-agnostic description of a title, derived
// from a MediaQuery via the metadata service. It is shared read-only by all
// provider adapters for the duration of one request.
type MediaDescriptor struct {
	Title       string
	ReleaseYear int
	TMDBID      int64
	ExternalID  string
	Kind        MediaKind
	Season      int
	Episode     int
}

// StreamMediaType labels the transport format of a raw stream file.
type StreamMediaType string

const (
	StreamTypeHLS StreamMediaType = "hls"
	StreamTypeMP4 StreamMediaType = "mp4"
	StreamTypeURL StreamMediaType = "url"
)

// RawStreamFile is a single provider-specific stream candidate prior to
// normalization.
type RawStreamFile struct {
	URL             string
	DeclaredQuality string
	MediaType       StreamMediaType
	Language        string
	RequiredHeaders map[string]string
	Subtitles       []SubtitleTrack
}

// SubtitleTrack is one external subtitle attached to a stream.
type SubtitleTrack struct {
	URL      string `json:"url"`
	Language string `json:"lang"`
}

// StreamDescriptor is the normalized, provider-agnostic stream record.
// PlaybackURL is always directly fetchable by a player: HLS assets that need
// header injection are already rewritten through the relay.
type StreamDescriptor struct {
	DisplayTitle    string
	PlaybackURL     string
	ProviderName    string
	MediaType       StreamMediaType
	QualityLabel    string
	Language        string
	RequiredHeaders map[string]string
	Subtitles       []SubtitleTrack
}

// ResolvedStreamSet is the orchestrator's terminal output. Stream order is
// the ranking invariant; cache ages are seconds.
type ResolvedStreamSet struct {
	Streams         []StreamDescriptor
	CacheMaxAge     int
	StaleRevalidate int
	StaleError      int
}

// StreamBehaviorHints carries playback hints in the wire format players
// expect; ProxyHeaders is the JSON-encoded header map the relay replays
// upstream.
type StreamBehaviorHints struct {
	NotWebReady  bool   `json:"notWebReady,omitempty"`
	ProxyHeaders string `json:"proxyHeaders,omitempty"`
}

// StreamResponseItem is the serialized form of one StreamDescriptor.
type StreamResponseItem struct {
	Name          string               `json:"name"`
	Title         string               `json:"title"`
	URL           string               `json:"url"`
	Type          string               `json:"type"`
	Quality       string               `json:"quality,omitempty"`
	Language      string               `json:"language,omitempty"`
	Subtitles     []SubtitleTrack      `json:"subtitles,omitempty"`
	BehaviorHints *StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

// StreamSetResponse is the wire envelope for a ResolvedStreamSet.
type StreamSetResponse struct {
	Streams         []StreamResponseItem `json:"streams"`
	CacheMaxAge     int                  `json:"cacheMaxAge"`
	StaleRevalidate int                  `json:"staleRevalidate"`
	StaleError      int                  `json:"staleError"`
}

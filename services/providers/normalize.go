package providers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"streamrelay/config"
	"streamrelay/models"
)

// Quality labels produced by inference. Every raw file maps to exactly one.
const (
	Quality2160p    = "2160p"
	Quality1080p    = "1080p"
	Quality720p     = "720p"
	Quality480p     = "480p"
	Quality360p     = "360p"
	QualityAdaptive = "adaptive"
	QualityUnknown  = "unknown"
)

// qualityPatterns is the ordered pattern table: first match wins.
var qualityPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{Quality2160p, regexp.MustCompile(`(?i)(\b2160p?\b|\b4k\b|\buhd\b)`)},
	{Quality1080p, regexp.MustCompile(`(?i)(\b1080p?\b|\bfhd\b)`)},
	{Quality720p, regexp.MustCompile(`(?i)(\b720p?\b|\bhd\b)`)},
	{Quality480p, regexp.MustCompile(`(?i)(\b480p?\b|\bsd\b)`)},
	{Quality360p, regexp.MustCompile(`(?i)(\b360p?\b|\bld\b)`)},
}

// qualityPriority orders labels for ranking; lower is better.
var qualityPriority = map[string]int{
	Quality2160p:    0,
	Quality1080p:    1,
	Quality720p:     2,
	QualityAdaptive: 3,
	Quality480p:     4,
	Quality360p:     5,
	QualityUnknown:  6,
}

// InferQuality returns the quality label for a raw stream file. A declared
// label is normalized through the same pattern table so provider spellings
// ("4K", "FullHD 1080") collapse onto one set.
func InferQuality(file models.RawStreamFile) string {
	for _, candidate := range []string{file.DeclaredQuality, file.URL} {
		if candidate == "" {
			continue
		}
		for _, p := range qualityPatterns {
			if p.re.MatchString(candidate) {
				return p.label
			}
		}
	}
	if file.MediaType == models.StreamTypeHLS {
		return QualityAdaptive
	}
	return QualityUnknown
}

// Normalizer turns raw provider files into player-ready descriptors.
type Normalizer struct {
	proxy config.ProxySettings
}

func NewNormalizer(proxy config.ProxySettings) *Normalizer {
	return &Normalizer{proxy: proxy}
}

// Normalize builds one StreamDescriptor per raw file. HLS assets are routed
// through the relay when proxying is enabled, embedding the provider's
// required headers so the relay can replay them verbatim upstream.
func (n *Normalizer) Normalize(providerName string, desc *models.MediaDescriptor, files []models.RawStreamFile) []models.StreamDescriptor {
	out := make([]models.StreamDescriptor, 0, len(files))
	for _, file := range files {
		if strings.TrimSpace(file.URL) == "" {
			continue
		}
		playback := file.URL
		if file.MediaType == models.StreamTypeHLS && n.proxy.Enabled {
			playback = n.proxyPlaylistURL(file.URL, file.RequiredHeaders)
		}
		out = append(out, models.StreamDescriptor{
			DisplayTitle:    displayTitle(desc),
			PlaybackURL:     playback,
			ProviderName:    providerName,
			MediaType:       file.MediaType,
			QualityLabel:    InferQuality(file),
			Language:        file.Language,
			RequiredHeaders: file.RequiredHeaders,
			Subtitles:       file.Subtitles,
		})
	}
	return out
}

func (n *Normalizer) proxyPlaylistURL(upstream string, headers map[string]string) string {
	if headers == nil {
		headers = map[string]string{}
	}
	encoded, err := json.Marshal(headers)
	if err != nil {
		return upstream
	}
	base := strings.TrimRight(n.proxy.BaseURL, "/")
	return base + "/m3u8-proxy?url=" + url.QueryEscape(upstream) + "&headers=" + url.QueryEscape(string(encoded))
}

func displayTitle(desc *models.MediaDescriptor) string {
	if desc == nil {
		return ""
	}
	if desc.Kind == models.MediaKindSeries && desc.Season > 0 {
		return strings.TrimSpace(desc.Title) + " " + seasonEpisodeCode(desc.Season, desc.Episode)
	}
	return strings.TrimSpace(desc.Title)
}

func seasonEpisodeCode(season, episode int) string {
	return fmt.Sprintf("S%02dE%02d", season, episode)
}

// Ranker orders merged streams by provider priority then quality priority.
// The sort is stable so equal entries keep their input order.
type Ranker struct {
	providerRank map[string]int
	unknownRank  int
}

// NewRanker builds a ranker from the deployment's provider priority table.
func NewRanker(ranking config.RankingSettings) *Ranker {
	rank := make(map[string]int, len(ranking.ProviderOrder))
	for i, name := range ranking.ProviderOrder {
		rank[strings.ToLower(name)] = i
	}
	return &Ranker{providerRank: rank, unknownRank: len(ranking.ProviderOrder)}
}

func (r *Ranker) providerPriority(name string) int {
	if p, ok := r.providerRank[strings.ToLower(name)]; ok {
		return p
	}
	return r.unknownRank
}

func qualityRank(label string) int {
	if p, ok := qualityPriority[label]; ok {
		return p
	}
	return qualityPriority[QualityUnknown]
}

// Rank sorts streams in place and returns them.
func (r *Ranker) Rank(streams []models.StreamDescriptor) []models.StreamDescriptor {
	sort.SliceStable(streams, func(i, j int) bool {
		pi, pj := r.providerPriority(streams[i].ProviderName), r.providerPriority(streams[j].ProviderName)
		if pi != pj {
			return pi < pj
		}
		return qualityRank(streams[i].QualityLabel) < qualityRank(streams[j].QualityLabel)
	})
	return streams
}

// Cache-control windows in seconds. A populated set is safe to cache for a
// while; an empty one must be retried soon.
const (
	cacheMaxAgeHit       = 3600
	cacheStaleRevalidate = 14400
	cacheStaleError      = 259200
	cacheMaxAgeMiss      = 60
)

// WithCacheControl wraps ranked streams in a ResolvedStreamSet carrying the
// cache window that matches the outcome.
func WithCacheControl(streams []models.StreamDescriptor) models.ResolvedStreamSet {
	if len(streams) == 0 {
		return models.ResolvedStreamSet{
			Streams:         []models.StreamDescriptor{},
			CacheMaxAge:     cacheMaxAgeMiss,
			StaleRevalidate: cacheMaxAgeMiss,
			StaleError:      cacheMaxAgeMiss,
		}
	}
	return models.ResolvedStreamSet{
		Streams:         streams,
		CacheMaxAge:     cacheMaxAgeHit,
		StaleRevalidate: cacheStaleRevalidate,
		StaleError:      cacheStaleError,
	}
}

package providers

import (
	"net/url"
	"strings"
	"testing"

	"streamrelay/config"
	"streamrelay/models"
)

func TestInferQualityIsTotal(t *testing.T) {
	tests := []struct {
		name string
		file models.RawStreamFile
		want string
	}{
		{"explicit 2160p", models.RawStreamFile{DeclaredQuality: "2160p"}, Quality2160p},
		{"declared 4K spelling", models.RawStreamFile{DeclaredQuality: "4K HDR"}, Quality2160p},
		{"uhd in url", models.RawStreamFile{URL: "https://cdn/x/uhd/video.mp4"}, Quality2160p},
		{"1080 in url", models.RawStreamFile{URL: "https://cdn/x/1080/video.mp4"}, Quality1080p},
		{"fhd in url", models.RawStreamFile{URL: "https://cdn/x/fhd-video.mp4"}, Quality1080p},
		{"720p in url", models.RawStreamFile{URL: "https://cdn/x/720p.mp4"}, Quality720p},
		{"480p declared", models.RawStreamFile{DeclaredQuality: "480p"}, Quality480p},
		{"360p in url", models.RawStreamFile{URL: "https://cdn/x/360p.mp4"}, Quality360p},
		{"patternless hls", models.RawStreamFile{URL: "https://cdn/x/index.m3u8", MediaType: models.StreamTypeHLS}, QualityAdaptive},
		{"patternless mp4", models.RawStreamFile{URL: "https://cdn/x/video.mp4", MediaType: models.StreamTypeMP4}, QualityUnknown},
		{"digit run containing 720", models.RawStreamFile{URL: "https://cdn/x/segment-7201.ts", MediaType: models.StreamTypeMP4}, QualityUnknown},
		{"token containing 1080", models.RawStreamFile{URL: "https://cdn/x/a81080bc/index.m3u8", MediaType: models.StreamTypeHLS}, QualityAdaptive},
		{"empty", models.RawStreamFile{}, QualityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferQuality(tt.file); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestInferQualityIdempotentThroughProxyRewrite(t *testing.T) {
	n := NewNormalizer(config.ProxySettings{Enabled: true, BaseURL: "http://localhost:8787"})
	desc := &models.MediaDescriptor{Title: "X", Kind: models.MediaKindMovie}

	for _, file := range []models.RawStreamFile{
		{URL: "https://cdn/x/1080/index.m3u8", MediaType: models.StreamTypeHLS},
		{URL: "https://cdn/x/index.m3u8", MediaType: models.StreamTypeHLS},
	} {
		first := n.Normalize("p", desc, []models.RawStreamFile{file})[0]
		again := InferQuality(models.RawStreamFile{URL: first.PlaybackURL, MediaType: first.MediaType})
		if again != first.QualityLabel {
			t.Fatalf("quality changed on re-normalization: %s -> %s (url %s)", first.QualityLabel, again, first.PlaybackURL)
		}
	}
}

func TestNormalizeRewritesHLSThroughRelay(t *testing.T) {
	n := NewNormalizer(config.ProxySettings{Enabled: true, BaseURL: "http://localhost:8787/"})
	desc := &models.MediaDescriptor{Title: "The Title", Kind: models.MediaKindMovie}

	headers := map[string]string{"Referer": "https://site.example/"}
	streams := n.Normalize("rezka", desc, []models.RawStreamFile{
		{URL: "https://cdn/x/index.m3u8", MediaType: models.StreamTypeHLS, RequiredHeaders: headers},
		{URL: "https://cdn/x/video.mp4", MediaType: models.StreamTypeMP4},
	})
	if len(streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(streams))
	}

	hls := streams[0]
	if !strings.HasPrefix(hls.PlaybackURL, "http://localhost:8787/m3u8-proxy?url=") {
		t.Fatalf("hls playback url must route through the relay: %s", hls.PlaybackURL)
	}
	if !strings.Contains(hls.PlaybackURL, url.QueryEscape("https://cdn/x/index.m3u8")) {
		t.Fatalf("upstream url must be embedded: %s", hls.PlaybackURL)
	}
	if !strings.Contains(hls.PlaybackURL, url.QueryEscape(`{"Referer":"https://site.example/"}`)) {
		t.Fatalf("headers must be embedded for relay replay: %s", hls.PlaybackURL)
	}

	if streams[1].PlaybackURL != "https://cdn/x/video.mp4" {
		t.Fatalf("non-hls urls must pass through: %s", streams[1].PlaybackURL)
	}
}

func TestNormalizeLeavesHLSAloneWhenProxyDisabled(t *testing.T) {
	n := NewNormalizer(config.ProxySettings{Enabled: false})
	desc := &models.MediaDescriptor{Title: "X", Kind: models.MediaKindMovie}

	streams := n.Normalize("p", desc, []models.RawStreamFile{
		{URL: "https://cdn/x/index.m3u8", MediaType: models.StreamTypeHLS},
	})
	if streams[0].PlaybackURL != "https://cdn/x/index.m3u8" {
		t.Fatalf("proxy disabled must pass urls through: %s", streams[0].PlaybackURL)
	}
}

func TestRankProviderThenQuality(t *testing.T) {
	ranker := NewRanker(config.RankingSettings{ProviderOrder: []string{"VidLink", "Rezka"}})

	streams := []models.StreamDescriptor{
		{ProviderName: "Rezka", QualityLabel: Quality2160p, PlaybackURL: "a"},
		{ProviderName: "Unknown", QualityLabel: Quality2160p, PlaybackURL: "b"},
		{ProviderName: "VidLink", QualityLabel: QualityAdaptive, PlaybackURL: "c"},
		{ProviderName: "VidLink", QualityLabel: Quality1080p, PlaybackURL: "d"},
	}
	ranked := ranker.Rank(streams)

	got := make([]string, len(ranked))
	for i, s := range ranked {
		got[i] = s.PlaybackURL
	}
	want := []string{"d", "c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestRankIsStableForEqualKeys(t *testing.T) {
	ranker := NewRanker(config.RankingSettings{ProviderOrder: []string{"P"}})

	streams := []models.StreamDescriptor{
		{ProviderName: "P", QualityLabel: Quality1080p, PlaybackURL: "first"},
		{ProviderName: "P", QualityLabel: Quality1080p, PlaybackURL: "second"},
		{ProviderName: "P", QualityLabel: Quality1080p, PlaybackURL: "third"},
	}
	ranked := ranker.Rank(streams)
	if ranked[0].PlaybackURL != "first" || ranked[1].PlaybackURL != "second" || ranked[2].PlaybackURL != "third" {
		t.Fatalf("equal keys must keep input order: %+v", ranked)
	}
}

func TestWithCacheControl(t *testing.T) {
	empty := WithCacheControl(nil)
	if empty.CacheMaxAge != 60 {
		t.Fatalf("empty set must carry the short max-age, got %d", empty.CacheMaxAge)
	}
	if empty.Streams == nil {
		t.Fatalf("streams must serialize as an empty list, not null")
	}

	populated := WithCacheControl([]models.StreamDescriptor{{PlaybackURL: "x"}})
	if populated.CacheMaxAge != 3600 || populated.StaleRevalidate != 14400 || populated.StaleError != 259200 {
		t.Fatalf("unexpected cache windows: %+v", populated)
	}
}

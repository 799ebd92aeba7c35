package rezka

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"streamrelay/models"
)

const searchFixture = `
<div class="b-content__inline_items">
  <div class="b-content__inline_item" data-id="111" data-url="https://site.example/films/drama/111-old-title.html">
    <div class="b-content__inline_item-link">
      <a href="https://site.example/films/drama/111-old-title.html">Redемption</a>
      <div>1984, USA, Drama</div>
    </div>
  </div>
  <div class="b-content__inline_item" data-id="222" data-url="https://site.example/films/drama/222-the-title.html">
    <div class="b-content__inline_item-link">
      <a href="https://site.example/films/drama/222-the-title.html">The Title</a>
      <div>1994, USA, Drama</div>
    </div>
  </div>
  <div class="b-content__inline_item" data-id="333" data-url="https://site.example/series/drama/333-the-title.html">
    <div class="b-content__inline_item-link">
      <a href="https://site.example/series/drama/333-the-title.html">The Title</a>
      <div>1994, USA, Drama</div>
    </div>
  </div>
</div>`

func fixtureDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestParseSearchResults(t *testing.T) {
	candidates := parseSearchResults(fixtureDoc(t, searchFixture))
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	first := candidates[0]
	if first.ID != "111" || first.Year != 1984 {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if candidates[1].Kind != models.MediaKindMovie {
		t.Fatalf("films url should classify as movie")
	}
	if candidates[2].Kind != models.MediaKindSeries {
		t.Fatalf("series url should classify as series")
	}
}

func TestPickCandidateYearThenKind(t *testing.T) {
	candidates := parseSearchResults(fixtureDoc(t, searchFixture))

	movie, ok := pickCandidate(candidates, "The Title", 1994, models.MediaKindMovie)
	if !ok || movie.ID != "222" {
		t.Fatalf("expected movie candidate 222, got %+v ok=%v", movie, ok)
	}

	series, ok := pickCandidate(candidates, "The Title", 1994, models.MediaKindSeries)
	if !ok || series.ID != "333" {
		t.Fatalf("expected series candidate 333, got %+v ok=%v", series, ok)
	}
}

func TestPickCandidateFallsBackToFirstRaw(t *testing.T) {
	candidates := parseSearchResults(fixtureDoc(t, searchFixture))

	// No candidate from 2010; the year filter keeps nothing so the raw list
	// survives and the first kind match wins.
	got, ok := pickCandidate(candidates, "Else", 2010, models.MediaKindMovie)
	if !ok || got.ID != "111" {
		t.Fatalf("expected raw fallback to 111, got %+v ok=%v", got, ok)
	}
}

func TestPickCandidateEmpty(t *testing.T) {
	if _, ok := pickCandidate(nil, "X", 2000, models.MediaKindMovie); ok {
		t.Fatalf("no candidates must report not found")
	}
}

func TestExtractTranslatorID(t *testing.T) {
	tests := []struct {
		name string
		page string
		kind models.MediaKind
		want string
	}{
		{
			name: "movie page",
			page: `<script>sof.tv.initCDNMoviesEvents(222, 56, false, {"id":"cdn"});</script>`,
			kind: models.MediaKindMovie,
			want: "56",
		},
		{
			name: "series page",
			page: `<script>sof.tv.initCDNSeriesEvents(333, 238, 1, 1, false);</script>`,
			kind: models.MediaKindSeries,
			want: "238",
		},
		{
			name: "original with subtitles short-circuits",
			page: `<li>Оригинал (+субтитры)</li><script>sof.tv.initCDNMoviesEvents(222, 56);</script>`,
			kind: models.MediaKindMovie,
			want: "110",
		},
		{
			name: "movie regex does not match series page",
			page: `<script>sof.tv.initCDNSeriesEvents(333, 238, 1, 1);</script>`,
			kind: models.MediaKindMovie,
			want: "",
		},
		{
			name: "no player",
			page: `<html><body>coming soon</body></html>`,
			kind: models.MediaKindMovie,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTranslatorID(tt.page, tt.kind); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseStreamMap(t *testing.T) {
	raw := `[360p]https://cdn.example/360.mp4:hls:manifest.m3u8 or https://cdn.example/360/index.m3u8,` +
		`[720p]https://cdn.example/720/index.m3u8,` +
		`[1080p<img src='ultra.png'>&nbsp;Ultra]https://cdn.example/1080u/index.m3u8`

	streams := parseStreamMap(raw)
	if len(streams) != 3 {
		t.Fatalf("expected 3 qualities, got %d: %v", len(streams), streams)
	}
	want := []streamVariant{
		{Quality: "360p", URL: "https://cdn.example/360/index.m3u8"},
		{Quality: "720p", URL: "https://cdn.example/720/index.m3u8"},
		{Quality: "1080p Ultra", URL: "https://cdn.example/1080u/index.m3u8"},
	}
	for i := range want {
		if streams[i] != want[i] {
			t.Fatalf("variant %d: expected %+v, got %+v", i, want[i], streams[i])
		}
	}
}

func TestParseStreamMapPreservesManifestOrder(t *testing.T) {
	// Two labels that collapse onto the same inferred quality downstream;
	// manifest order is the only tiebreak and must survive parsing.
	raw := `[1080p Ultra]https://a.example/u/index.m3u8,[1080p]https://b.example/p/index.m3u8`

	streams := parseStreamMap(raw)
	if len(streams) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(streams))
	}
	if streams[0].Quality != "1080p Ultra" || streams[1].Quality != "1080p" {
		t.Fatalf("manifest order lost: %+v", streams)
	}
}

func TestParseStreamMapRepeatedLabelOverwritesInPlace(t *testing.T) {
	raw := `[720p]https://a.example/old.m3u8,[1080p]https://b.example/1080.m3u8,[720p]https://a.example/new.m3u8`

	streams := parseStreamMap(raw)
	if len(streams) != 2 {
		t.Fatalf("expected 2 variants, got %d: %v", len(streams), streams)
	}
	if streams[0].Quality != "720p" || streams[0].URL != "https://a.example/new.m3u8" {
		t.Fatalf("repeated label must overwrite in place: %+v", streams[0])
	}
	if streams[1].Quality != "1080p" {
		t.Fatalf("order of first occurrence must hold: %+v", streams)
	}
}

func TestParseStreamMapEmptyAndGarbage(t *testing.T) {
	if got := parseStreamMap(""); len(got) != 0 {
		t.Fatalf("empty input must yield no streams, got %v", got)
	}
	if got := parseStreamMap("no brackets here"); len(got) != 0 {
		t.Fatalf("bracket-less input must yield no streams, got %v", got)
	}
}

func TestParseSubtitles(t *testing.T) {
	raw := `[Русский]https://cdn.example/ru.vtt,[Українська]https://cdn.example/uk.vtt,` +
		`[English]https://cdn.example/en.vtt,[Deutsch]https://cdn.example/de.vtt`

	subs := parseSubtitles(raw)
	if len(subs) != 4 {
		t.Fatalf("expected 4 subtitles, got %d", len(subs))
	}
	want := map[string]string{
		"ru":      "https://cdn.example/ru.vtt",
		"uk":      "https://cdn.example/uk.vtt",
		"en":      "https://cdn.example/en.vtt",
		"deutsch": "https://cdn.example/de.vtt",
	}
	for _, sub := range subs {
		if want[sub.Language] != sub.URL {
			t.Fatalf("unexpected subtitle %+v", sub)
		}
	}
}

func TestPickCandidatePrefersTitleMatch(t *testing.T) {
	candidates := []candidate{
		{ID: "1", Title: "Сестра", Year: 1997, Kind: models.MediaKindMovie},
		{ID: "2", Title: "Брат", Year: 1997, Kind: models.MediaKindMovie},
	}

	got, ok := pickCandidate(candidates, "Brat", 1997, models.MediaKindMovie)
	if !ok || got.ID != "2" {
		t.Fatalf("expected transliterated title match 2, got %+v ok=%v", got, ok)
	}
}

package rezka

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"streamrelay/models"
	"streamrelay/utils/similarity"
)

// candidate is one search result row on the site.
type candidate struct {
	ID    string
	URL   string
	Title string
	Year  int
	Kind  models.MediaKind
}

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// parseSearchResults extracts candidates from the search page markup. The
// markup is an external contract: missing pieces yield fewer candidates, not
// errors.
func parseSearchResults(doc *goquery.Document) []candidate {
	var out []candidate
	doc.Find(".b-content__inline_item").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-id")
		href, _ := sel.Attr("data-url")
		link := sel.Find(".b-content__inline_item-link a")
		title := strings.TrimSpace(link.Text())
		if id == "" || href == "" || title == "" {
			return
		}

		misc := strings.TrimSpace(sel.Find(".b-content__inline_item-link div").Text())
		year := 0
		if match := yearRe.FindString(misc); match != "" {
			year, _ = strconv.Atoi(match)
		}

		out = append(out, candidate{
			ID:    id,
			URL:   href,
			Title: title,
			Year:  year,
			Kind:  kindFromURL(href),
		})
	})
	return out
}

// kindFromURL classifies a detail-page URL by its category segment.
func kindFromURL(href string) models.MediaKind {
	if strings.Contains(href, "/series/") {
		return models.MediaKindSeries
	}
	return models.MediaKindMovie
}

// pickCandidate filters candidates by exact release year, then by kind, and
// falls back to the first raw candidate when nothing survives. Among the
// survivors the best transliterated title match wins.
func pickCandidate(candidates []candidate, title string, year int, kind models.MediaKind) (candidate, bool) {
	if len(candidates) == 0 {
		return candidate{}, false
	}

	filtered := candidates
	if year > 0 {
		var byYear []candidate
		for _, c := range filtered {
			if c.Year == year {
				byYear = append(byYear, c)
			}
		}
		if len(byYear) > 0 {
			filtered = byYear
		}
	}
	var byKind []candidate
	for _, c := range filtered {
		if c.Kind == kind {
			byKind = append(byKind, c)
		}
	}
	if len(byKind) > 0 {
		filtered = byKind
	}

	best := filtered[0]
	bestScore := similarity.Score(best.Title, title)
	for _, c := range filtered[1:] {
		if score := similarity.Score(c.Title, title); score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore >= titleMatchThreshold {
		return best, true
	}
	return filtered[0], true
}

// titleMatchThreshold separates a genuine title match from coincidental
// lexical overlap between unrelated candidates.
const titleMatchThreshold = 0.6

// originalSubsMarker signals the "original + subtitles" variant on a detail
// page; it short-circuits translator extraction to the fixed sentinel id.
const (
	originalSubsMarker     = "Оригинал (+субтитры)"
	originalSubsTranslator = "110"
)

var (
	movieEventsRe  = regexp.MustCompile(`sof\.tv\.initCDNMoviesEvents\(\d+,\s*(\d+)`)
	seriesEventsRe = regexp.MustCompile(`sof\.tv\.initCDNSeriesEvents\(\d+,\s*(\d+)`)
)

// extractTranslatorID pulls the variant id from a detail page. Movies and
// series embed it in differently named player-init calls. An empty return
// means the title exists but has no playable variant.
func extractTranslatorID(page string, kind models.MediaKind) string {
	if strings.Contains(page, originalSubsMarker) {
		return originalSubsTranslator
	}
	re := movieEventsRe
	if kind == models.MediaKindSeries {
		re = seriesEventsRe
	}
	if match := re.FindStringSubmatch(page); len(match) == 2 {
		return match[1]
	}
	return ""
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// splitBracketEntries parses the site's delimited grammar `[label]value,...`
// into ordered label/value pairs. Labels may carry embedded markup and
// non-breaking-space entities; both are stripped.
func splitBracketEntries(raw string) [][2]string {
	var out [][2]string
	rest := raw
	for {
		open := strings.Index(rest, "[")
		if open == -1 {
			break
		}
		end := strings.Index(rest[open:], "]")
		if end == -1 {
			break
		}
		label := rest[open+1 : open+end]
		rest = rest[open+end+1:]

		value := rest
		if next := strings.Index(rest, "["); next != -1 {
			value = rest[:next]
			rest = rest[next:]
		} else {
			rest = ""
		}

		label = cleanLabel(label)
		value = strings.TrimRight(strings.TrimSpace(value), ",")
		if label == "" || value == "" {
			continue
		}
		out = append(out, [2]string{label, value})
	}
	return out
}

func cleanLabel(label string) string {
	label = htmlTagRe.ReplaceAllString(label, "")
	label = strings.ReplaceAll(label, "&nbsp;", " ")
	label = strings.ReplaceAll(label, " ", " ")
	return strings.TrimSpace(label)
}

// streamVariant is one quality entry from the manifest, in manifest order.
type streamVariant struct {
	Quality string
	URL     string
}

// parseStreamMap turns the manifest's stream string into ordered quality/URL
// variants; manifest order carries through to the response. Entries may list
// fallback URLs separated by " or "; the last one is the direct manifest. A
// repeated label overwrites the earlier URL in place.
func parseStreamMap(raw string) []streamVariant {
	var out []streamVariant
	seen := make(map[string]int)
	for _, entry := range splitBracketEntries(raw) {
		quality, value := entry[0], entry[1]
		if parts := strings.Split(value, " or "); len(parts) > 1 {
			value = strings.TrimSpace(parts[len(parts)-1])
		}
		if value == "" {
			continue
		}
		if i, ok := seen[quality]; ok {
			out[i].URL = value
			continue
		}
		seen[quality] = len(out)
		out = append(out, streamVariant{Quality: quality, URL: value})
	}
	return out
}

// subtitleLanguageCodes maps the site's language names to two-letter codes.
// Unlisted names pass through lower-cased.
var subtitleLanguageCodes = map[string]string{
	"Русский":    "ru",
	"Українська": "uk",
	"English":    "en",
}

// parseSubtitles turns the manifest's subtitle string into subtitle tracks.
func parseSubtitles(raw string) []models.SubtitleTrack {
	var out []models.SubtitleTrack
	for _, entry := range splitBracketEntries(raw) {
		language, subURL := entry[0], entry[1]
		code, ok := subtitleLanguageCodes[language]
		if !ok {
			code = strings.ToLower(language)
		}
		out = append(out, models.SubtitleTrack{URL: subURL, Language: code})
	}
	return out
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"streamrelay/models"
)

// streamResolver narrows the orchestrator to what the handler needs.
type streamResolver interface {
	Resolve(ctx context.Context, query models.MediaQuery) models.ResolvedStreamSet
}

// StreamHandler serves the stream-resolution endpoint.
type StreamHandler struct {
	resolver streamResolver
}

func NewStreamHandler(resolver streamResolver) *StreamHandler {
	return &StreamHandler{resolver: resolver}
}

var externalIDRe = regexp.MustCompile(`^tt\d+$`)

// parseMediaID splits the path id into the external id and, for series, the
// season/episode suffix ("tt123:1:2"). A trailing ".json" is tolerated for
// addon-style clients.
func parseMediaID(raw string, kind models.MediaKind) (models.MediaQuery, error) {
	raw = strings.TrimSuffix(raw, ".json")
	parts := strings.Split(raw, ":")

	query := models.MediaQuery{ExternalID: parts[0], Kind: kind}
	if !externalIDRe.MatchString(query.ExternalID) {
		return models.MediaQuery{}, fmt.Errorf("invalid media id %q", parts[0])
	}

	switch kind {
	case models.MediaKindMovie:
		if len(parts) != 1 {
			return models.MediaQuery{}, fmt.Errorf("movie id must not carry season/episode: %q", raw)
		}
	case models.MediaKindSeries:
		if len(parts) != 3 {
			return models.MediaQuery{}, fmt.Errorf("series id must be id:season:episode, got %q", raw)
		}
		season, err := strconv.Atoi(parts[1])
		if err != nil || season <= 0 {
			return models.MediaQuery{}, fmt.Errorf("invalid season %q", parts[1])
		}
		episode, err := strconv.Atoi(parts[2])
		if err != nil || episode <= 0 {
			return models.MediaQuery{}, fmt.Errorf("invalid episode %q", parts[2])
		}
		query.Season = season
		query.Episode = episode
	default:
		return models.MediaQuery{}, fmt.Errorf("unknown media kind %q", kind)
	}
	return query, nil
}

// HandleStreams resolves GET /api/stream/{type}/{id}.
func (h *StreamHandler) HandleStreams(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	kind := models.MediaKind(vars["type"])
	if kind != models.MediaKindMovie && kind != models.MediaKindSeries {
		http.Error(w, fmt.Sprintf("unknown media type %q", vars["type"]), http.StatusBadRequest)
		return
	}

	query, err := parseMediaID(vars["id"], kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	set := h.resolver.Resolve(r.Context(), query)
	log.Printf("[stream] %s %s -> %d stream(s)", kind, query.ExternalID, len(set.Streams))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d, stale-if-error=%d",
		set.CacheMaxAge, set.StaleRevalidate, set.StaleError))
	if err := json.NewEncoder(w).Encode(serializeStreamSet(set)); err != nil {
		log.Printf("[stream] encode response: %v", err)
	}
}

// serializeStreamSet converts the domain set into the wire envelope.
func serializeStreamSet(set models.ResolvedStreamSet) models.StreamSetResponse {
	items := make([]models.StreamResponseItem, 0, len(set.Streams))
	for _, s := range set.Streams {
		item := models.StreamResponseItem{
			Name:      s.ProviderName,
			Title:     streamTitle(s),
			URL:       s.PlaybackURL,
			Type:      string(s.MediaType),
			Quality:   s.QualityLabel,
			Language:  s.Language,
			Subtitles: s.Subtitles,
		}
		if len(s.RequiredHeaders) > 0 {
			if encoded, err := json.Marshal(s.RequiredHeaders); err == nil {
				item.BehaviorHints = &models.StreamBehaviorHints{ProxyHeaders: string(encoded)}
			}
		}
		items = append(items, item)
	}
	return models.StreamSetResponse{
		Streams:         items,
		CacheMaxAge:     set.CacheMaxAge,
		StaleRevalidate: set.StaleRevalidate,
		StaleError:      set.StaleError,
	}
}

func streamTitle(s models.StreamDescriptor) string {
	parts := []string{s.DisplayTitle}
	if s.QualityLabel != "" {
		parts = append(parts, s.QualityLabel)
	}
	if s.Language != "" {
		parts = append(parts, s.Language)
	}
	return strings.Join(parts, " | ")
}

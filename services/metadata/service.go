// Package metadata resolves external catalogue identifiers into the
// provider-agnostic media descriptor shared by all stream providers.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"streamrelay/config"
	"streamrelay/models"
	"streamrelay/utils/retry"
)

// ErrNotFound reports that the metadata service has no title for the given
// identifier. It is an expected outcome, not a failure: the orchestrator
// short-circuits to an empty stream set on it.
var ErrNotFound = errors.New("title not found")

// Service is the ID resolver.
type Service struct {
	client *tmdbClient
}

// NewService builds the resolver from settings. The TMDB API key must be
// present; config validation enforces that at startup.
func NewService(settings config.Settings, httpc *http.Client) *Service {
	retryCfg := retry.Config{
		Attempts:  settings.Retry.Attempts,
		BaseDelay: settings.Retry.BaseDelay(),
	}
	return &Service{
		client: newTMDBClient(settings.Metadata.TMDBAPIKey, settings.Metadata.Language, httpc, retryCfg),
	}
}

// Resolve maps a MediaQuery to a MediaDescriptor. For series, season and
// episode must be positive before any lookup happens.
func (s *Service) Resolve(ctx context.Context, query models.MediaQuery) (*models.MediaDescriptor, error) {
	if s == nil || !s.client.isConfigured() {
		return nil, errors.New("metadata service not configured")
	}
	if query.Kind == models.MediaKindSeries {
		if query.Season <= 0 || query.Episode <= 0 {
			return nil, fmt.Errorf("series query requires positive season and episode, got %d:%d", query.Season, query.Episode)
		}
	}

	found, err := s.client.findByExternalID(ctx, query.ExternalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tmdb find %s: %w", query.ExternalID, err)
	}

	var entry *tmdbFindEntry
	switch query.Kind {
	case models.MediaKindMovie:
		if len(found.MovieResults) > 0 {
			entry = &found.MovieResults[0]
		}
	case models.MediaKindSeries:
		if len(found.TVResults) > 0 {
			entry = &found.TVResults[0]
		}
	default:
		return nil, fmt.Errorf("unknown media kind %q", query.Kind)
	}
	if entry == nil {
		log.Printf("[metadata] no %s result for %s", query.Kind, query.ExternalID)
		return nil, ErrNotFound
	}

	title := entry.Title
	date := entry.ReleaseDate
	if query.Kind == models.MediaKindSeries {
		title = entry.Name
		date = entry.FirstAirDate
	}

	descriptor := &models.MediaDescriptor{
		Title:       strings.TrimSpace(title),
		ReleaseYear: yearOf(date),
		TMDBID:      entry.ID,
		ExternalID:  query.ExternalID,
		Kind:        query.Kind,
		Season:      query.Season,
		Episode:     query.Episode,
	}
	log.Printf("[metadata] resolved %s -> tmdb:%d %q (%d)", query.ExternalID, descriptor.TMDBID, descriptor.Title, descriptor.ReleaseYear)
	return descriptor, nil
}

// yearOf extracts the year from a TMDB date string (YYYY-MM-DD).
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

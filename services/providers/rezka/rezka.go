// Package rezka scrapes a streaming site through a three-stage pipeline:
// search the title, resolve a translator variant on the detail page, then
// fetch the stream manifest. Site markup is treated as an unreliable external
// contract; every stage degrades to a typed not-found instead of failing the
// overall resolution.
package rezka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"streamrelay/models"
	"streamrelay/utils/retry"
	"streamrelay/utils/token"
)

const rezkaDefaultBaseURL = "https://rezka.ag"

// ErrNotFound reports that the site has no playable entry for the title.
// It is an expected outcome: the provider contributes zero streams.
var ErrNotFound = errors.New("rezka: title not found")

// Rezka is the scraping provider.
type Rezka struct {
	name     string
	baseURL  string
	httpc    *http.Client
	retryCfg retry.Config
	tokens   token.Generator
}

// New constructs the provider. An empty baseURL falls back to the public
// mirror; tokens supplies the correlation token sent with manifest requests.
func New(name, baseURL string, client *http.Client, attempts int, baseDelay time.Duration, tokens token.Generator) *Rezka {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = rezkaDefaultBaseURL
	}
	if tokens == nil {
		tokens = token.UUIDGenerator{}
	}
	return &Rezka{
		name:     strings.TrimSpace(name),
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpc:    client,
		retryCfg: retry.Config{Attempts: attempts, BaseDelay: baseDelay},
		tokens:   tokens,
	}
}

func (r *Rezka) Name() string {
	if r.name != "" {
		return r.name
	}
	return "rezka"
}

// scrapeSession threads per-request state through the pipeline stages. It is
// owned by one FetchStreams call and never shared.
type scrapeSession struct {
	match        candidate
	translatorID string
	manifest     manifestEnvelope
}

// FetchStreams runs search -> translator -> manifest. A not-found at any
// stage yields zero streams without error; transport failures surface as
// errors for the orchestrator to log and drop.
func (r *Rezka) FetchStreams(ctx context.Context, desc *models.MediaDescriptor) ([]models.RawStreamFile, error) {
	if desc == nil || strings.TrimSpace(desc.Title) == "" {
		return nil, fmt.Errorf("rezka requires a resolved title")
	}

	var session scrapeSession

	if err := r.search(ctx, desc, &session); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("[rezka] no search match for %q (%d)", desc.Title, desc.ReleaseYear)
			return nil, nil
		}
		return nil, fmt.Errorf("search stage: %w", err)
	}

	if err := r.resolveTranslator(ctx, desc, &session); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("[rezka] no playable variant for %q at %s", desc.Title, session.match.URL)
			return nil, nil
		}
		return nil, fmt.Errorf("translator stage: %w", err)
	}

	if err := r.fetchManifest(ctx, desc, &session); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest stage: %w", err)
	}

	return r.buildFiles(session), nil
}

// search queries the site search endpoint and picks the best candidate.
func (r *Rezka) search(ctx context.Context, desc *models.MediaDescriptor, session *scrapeSession) error {
	endpoint := fmt.Sprintf("%s/search/?do=search&subaction=search&q=%s",
		r.baseURL, url.QueryEscape(desc.Title))

	var body string
	if err := r.getText(ctx, endpoint, &body); err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse search page: %w", err)
	}
	match, ok := pickCandidate(parseSearchResults(doc), desc.Title, desc.ReleaseYear, desc.Kind)
	if !ok {
		return ErrNotFound
	}
	session.match = match
	log.Printf("[rezka] matched %q -> id=%s url=%s", desc.Title, match.ID, match.URL)
	return nil
}

// resolveTranslator fetches the detail page and extracts the variant id.
func (r *Rezka) resolveTranslator(ctx context.Context, desc *models.MediaDescriptor, session *scrapeSession) error {
	var page string
	if err := r.getText(ctx, session.match.URL, &page); err != nil {
		return err
	}
	translatorID := extractTranslatorID(page, desc.Kind)
	if translatorID == "" {
		return ErrNotFound
	}
	session.translatorID = translatorID
	return nil
}

// manifestEnvelope is the stream endpoint's JSON reply. URL and Subtitle are
// `false` when absent, hence the raw handling.
type manifestEnvelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	URL      json.RawMessage `json:"url"`
	Subtitle json.RawMessage `json:"subtitle"`
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// fetchManifest POSTs the resolved ids plus a fresh correlation token to the
// stream endpoint.
func (r *Rezka) fetchManifest(ctx context.Context, desc *models.MediaDescriptor, session *scrapeSession) error {
	endpoint := fmt.Sprintf("%s/ajax/get_cdn_series/?t=%d", r.baseURL, time.Now().UnixMilli())

	form := url.Values{}
	form.Set("id", session.match.ID)
	form.Set("translator_id", session.translatorID)
	form.Set("favs", r.tokens.Token())
	if desc.Kind == models.MediaKindSeries {
		form.Set("action", "get_stream")
		form.Set("season", strconv.Itoa(desc.Season))
		form.Set("episode", strconv.Itoa(desc.Episode))
	} else {
		form.Set("action", "get_movie")
	}

	var envelope manifestEnvelope
	err := retry.Do(ctx, r.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")

		resp, err := r.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &retry.StatusError{Status: resp.StatusCode, URL: endpoint}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decode stream envelope: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !envelope.Success || rawString(envelope.URL) == "" {
		return ErrNotFound
	}
	session.manifest = envelope
	return nil
}

// buildFiles converts the manifest envelope into raw stream files.
func (r *Rezka) buildFiles(session scrapeSession) []models.RawStreamFile {
	streams := parseStreamMap(rawString(session.manifest.URL))
	if len(streams) == 0 {
		return nil
	}
	subtitles := parseSubtitles(rawString(session.manifest.Subtitle))
	headers := map[string]string{
		"Referer": r.baseURL + "/",
		"Origin":  r.baseURL,
	}

	files := make([]models.RawStreamFile, 0, len(streams))
	for _, variant := range streams {
		files = append(files, models.RawStreamFile{
			URL:             variant.URL,
			DeclaredQuality: variant.Quality,
			MediaType:       mediaTypeOf(variant.URL),
			RequiredHeaders: headers,
			Subtitles:       subtitles,
		})
	}
	return files
}

func mediaTypeOf(streamURL string) models.StreamMediaType {
	lowered := strings.ToLower(streamURL)
	switch {
	case strings.Contains(lowered, ".m3u8"):
		return models.StreamTypeHLS
	case strings.Contains(lowered, ".mp4"):
		return models.StreamTypeMP4
	}
	return models.StreamTypeURL
}

// getText GETs a page with the shared retry policy and a browser-like agent.
func (r *Rezka) getText(ctx context.Context, endpoint string, out *string) error {
	return retry.Do(ctx, r.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

		resp, err := r.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &retry.StatusError{Status: resp.StatusCode, URL: endpoint}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		*out = string(body)
		return nil
	})
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"streamrelay/models"
	"streamrelay/utils/retry"
)

const vidlinkDefaultBaseURL = "https://api.vidlink.stream"

// VidLinkProvider queries a TMDB-id keyed JSON API for hosted streams.
type VidLinkProvider struct {
	name     string
	baseURL  string
	httpc    *http.Client
	retryCfg retry.Config
}

// NewVidLinkProvider constructs the provider with sane defaults. An empty
// baseURL falls back to the public endpoint.
func NewVidLinkProvider(name, baseURL string, client *http.Client, retryCfg retry.Config) *VidLinkProvider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = vidlinkDefaultBaseURL
	}
	return &VidLinkProvider{
		name:     strings.TrimSpace(name),
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpc:    client,
		retryCfg: retryCfg,
	}
}

func (p *VidLinkProvider) Name() string {
	if p.name != "" {
		return p.name
	}
	return "vidlink"
}

// vidlinkEnvelope is the provider's wire shape. It is validated explicitly:
// a 2xx body that does not match is a hard parse failure, never a partial
// accept.
type vidlinkEnvelope struct {
	Success bool            `json:"success"`
	Sources []vidlinkSource `json:"sources"`
	Tracks  []vidlinkTrack  `json:"tracks"`
}

type vidlinkSource struct {
	File  string `json:"file"`
	Label string `json:"label"`
	Type  string `json:"type"` // "hls" | "mp4"
}

type vidlinkTrack struct {
	File string `json:"file"`
	Lang string `json:"lang"`
}

// FetchStreams queries the API by TMDB id, using the season/episode path for
// series.
func (p *VidLinkProvider) FetchStreams(ctx context.Context, desc *models.MediaDescriptor) ([]models.RawStreamFile, error) {
	if desc == nil || desc.TMDBID == 0 {
		return nil, fmt.Errorf("vidlink requires a tmdb id")
	}

	endpoint := fmt.Sprintf("%s/api/movie/%d", p.baseURL, desc.TMDBID)
	if desc.Kind == models.MediaKindSeries {
		endpoint = fmt.Sprintf("%s/api/tv/%d/%d/%d", p.baseURL, desc.TMDBID, desc.Season, desc.Episode)
	}

	var envelope vidlinkEnvelope
	err := retry.Do(ctx, p.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := p.httpc.Do(req)
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
			return retry.Unrecoverable(fmt.Errorf("decode vidlink response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vidlink fetch: %w", err)
	}

	if !envelope.Success || len(envelope.Sources) == 0 {
		return nil, nil
	}

	headers := map[string]string{
		"Referer": p.baseURL + "/",
		"Origin":  p.baseURL,
	}
	subtitles := make([]models.SubtitleTrack, 0, len(envelope.Tracks))
	for _, track := range envelope.Tracks {
		if track.File == "" {
			continue
		}
		subtitles = append(subtitles, models.SubtitleTrack{URL: track.File, Language: strings.ToLower(track.Lang)})
	}

	files := make([]models.RawStreamFile, 0, len(envelope.Sources))
	for _, src := range envelope.Sources {
		if strings.TrimSpace(src.File) == "" {
			continue
		}
		files = append(files, models.RawStreamFile{
			URL:             src.File,
			DeclaredQuality: src.Label,
			MediaType:       vidlinkMediaType(src),
			RequiredHeaders: headers,
			Subtitles:       subtitles,
		})
	}
	return files, nil
}

func vidlinkMediaType(src vidlinkSource) models.StreamMediaType {
	switch strings.ToLower(src.Type) {
	case "hls":
		return models.StreamTypeHLS
	case "mp4":
		return models.StreamTypeMP4
	}
	if strings.Contains(strings.ToLower(src.File), ".m3u8") {
		return models.StreamTypeHLS
	}
	return models.StreamTypeURL
}

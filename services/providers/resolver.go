package providers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"streamrelay/config"
	"streamrelay/models"
	"streamrelay/services/metadata"
	"streamrelay/services/providers/rezka"
	"streamrelay/utils/retry"
	"streamrelay/utils/token"
)

// descriptorResolver narrows the metadata service to what the orchestrator
// needs, so tests can substitute it.
type descriptorResolver interface {
	Resolve(ctx context.Context, query models.MediaQuery) (*models.MediaDescriptor, error)
}

// Resolver is the resolution orchestrator: one descriptor lookup, then a
// concurrent fan-out to every enabled provider, then a deterministic merge.
type Resolver struct {
	metadata   descriptorResolver
	providers  []Provider
	normalizer *Normalizer
	ranker     *Ranker
	timeout    time.Duration
}

// NewResolver wires the orchestrator from settings. If no providers are
// passed explicitly they are built from the settings' provider list.
func NewResolver(settings config.Settings, meta descriptorResolver, provs ...Provider) *Resolver {
	if len(provs) == 0 {
		provs = buildProvidersFromSettings(settings)
	}
	timeout := settings.Retry.AdapterTimeout()
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Resolver{
		metadata:   meta,
		providers:  provs,
		normalizer: NewNormalizer(settings.Proxy),
		ranker:     NewRanker(settings.Ranking),
		timeout:    timeout,
	}
}

// buildProvidersFromSettings creates providers based on the providers config.
func buildProvidersFromSettings(settings config.Settings) []Provider {
	retryCfg := retry.Config{
		Attempts:  settings.Retry.Attempts,
		BaseDelay: settings.Retry.BaseDelay(),
	}

	var provs []Provider
	for _, cfg := range settings.Providers {
		if !cfg.Enabled {
			continue
		}
		switch strings.ToLower(cfg.Type) {
		case "vidlink":
			log.Printf("[providers] initializing vidlink provider: %s", cfg.Name)
			provs = append(provs, NewVidLinkProvider(cfg.Name, cfg.BaseURL, nil, retryCfg))
		case "rezka":
			log.Printf("[providers] initializing rezka provider: %s", cfg.Name)
			provs = append(provs, rezka.New(cfg.Name, cfg.BaseURL, nil, retryCfg.Attempts, retryCfg.BaseDelay, token.UUIDGenerator{}))
		default:
			log.Printf("[providers] unknown provider type: %s", cfg.Type)
		}
	}
	return provs
}

// Resolve turns a MediaQuery into a ranked, cache-tagged stream set. It never
// returns an error: every failure degrades to fewer (possibly zero) streams.
func (r *Resolver) Resolve(ctx context.Context, query models.MediaQuery) models.ResolvedStreamSet {
	desc, err := r.metadata.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			log.Printf("[resolver] %s: title not found, skipping providers", query.ExternalID)
		} else {
			log.Printf("[resolver] %s: metadata lookup failed: %v", query.ExternalID, err)
		}
		return WithCacheControl(nil)
	}

	// One slot per provider keeps aggregation free of shared mutable state
	// and makes the merge order independent of completion order.
	slots := make([][]models.StreamDescriptor, len(r.providers))

	var wg conc.WaitGroup
	for i, provider := range r.providers {
		i, provider := i, provider
		wg.Go(func() {
			pctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			start := time.Now()
			files, err := provider.FetchStreams(pctx, desc)
			if err != nil {
				log.Printf("[resolver] %s failed for %s: %v", provider.Name(), query.ExternalID, err)
				return
			}
			log.Printf("[resolver] %s produced %d file(s) for %s in %s",
				provider.Name(), len(files), query.ExternalID, time.Since(start).Round(10*time.Millisecond))
			slots[i] = r.normalizer.Normalize(provider.Name(), desc, files)
		})
	}
	wg.Wait()

	var merged []models.StreamDescriptor
	for _, streams := range slots {
		merged = append(merged, streams...)
	}
	return WithCacheControl(r.ranker.Rank(merged))
}

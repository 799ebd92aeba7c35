// Package providers fans a resolved media descriptor out to every configured
// upstream source and merges the replies into one ranked stream set.
package providers

import (
	"context"

	"streamrelay/models"
)

// Provider is a pluggable upstream source of playable streams. A provider's
// failure never crosses its own boundary: the orchestrator treats every call
// as isolated and degrades to fewer streams.
type Provider interface {
	Name() string
	FetchStreams(ctx context.Context, desc *models.MediaDescriptor) ([]models.RawStreamFile, error)
}

// Command dumpstream resolves a single title from the command line and prints
// the ranked stream set as JSON. Useful for poking at providers without
// running the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"streamrelay/config"
	"streamrelay/models"
	"streamrelay/services/metadata"
	"streamrelay/services/providers"
)

func main() {
	var (
		configPath = flag.String("config", "cache/settings.json", "Path to settings.json")
		id         = flag.String("id", "", "External id, e.g. tt0111161")
		kind       = flag.String("type", "movie", "movie or series")
		season     = flag.Int("season", 0, "Season number (series only)")
		episode    = flag.Int("episode", 0, "Episode number (series only)")
	)
	flag.Parse()

	if *id == "" {
		log.Fatal("missing -id")
	}

	mgr := config.NewManager(*configPath)
	settings, err := mgr.Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf("invalid settings: %v", err)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	resolver := providers.NewResolver(settings, metadata.NewService(settings, httpClient))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	set := resolver.Resolve(ctx, models.MediaQuery{
		ExternalID: *id,
		Kind:       models.MediaKind(*kind),
		Season:     *season,
		Episode:    *episode,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(set); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}

package api

import (
	"net/http"

	"streamrelay/handlers"

	"github.com/gorilla/mux"
)

// corsMiddleware opens the API to browser players on any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// Register mounts the resolver and relay endpoints onto the provided router.
func Register(r *mux.Router, streamHandler *handlers.StreamHandler, proxyHandler *handlers.ProxyHandler) {
	r.Use(corsMiddleware)
	// Router middleware never runs for unmatched paths, so the fallback is
	// wrapped explicitly: a preflight to any path answers 200, everything
	// else falls through to the 404.
	r.NotFoundHandler = corsMiddleware(http.HandlerFunc(handlers.HandleNotFound))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/health", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/stream/{type}/{id}", streamHandler.HandleStreams).Methods(http.MethodGet)
	api.HandleFunc("/stream/{type}/{id}", handleOptions).Methods(http.MethodOptions)

	// Playlist and segment relay endpoints live at the root so rewritten
	// playlists keep their URLs short.
	r.HandleFunc("/m3u8-proxy", proxyHandler.HandlePlaylist).Methods(http.MethodGet)
	r.HandleFunc("/m3u8-proxy", handleOptions).Methods(http.MethodOptions)
	r.HandleFunc("/ts-proxy", proxyHandler.HandleSegment).Methods(http.MethodGet)
	r.HandleFunc("/ts-proxy", handleOptions).Methods(http.MethodOptions)
}

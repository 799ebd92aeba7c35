package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamrelay/config"
	"streamrelay/internal/m3u8"
)

// hop-by-hop and encoding headers the relay never forwards: bodies are
// re-streamed, not re-compressed.
var droppedResponseHeaders = map[string]bool{
	"Transfer-Encoding": true,
	"Content-Encoding":  true,
	"Connection":        true,
	"Keep-Alive":        true,
	// The relay sets its own CORS policy.
	"Access-Control-Allow-Origin":  true,
	"Access-Control-Allow-Methods": true,
	"Access-Control-Allow-Headers": true,
}

// ProxyHandler relays HLS playlists and TS segments, replaying the caller's
// header map on every upstream fetch.
type ProxyHandler struct {
	proxy config.ProxySettings
	httpc *http.Client
}

func NewProxyHandler(proxy config.ProxySettings, client *http.Client) *ProxyHandler {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ProxyHandler{proxy: proxy, httpc: client}
}

// parseProxyParams validates the url and headers query parameters. A
// malformed headers value is reported before any upstream fetch happens.
func parseProxyParams(r *http.Request) (*url.URL, map[string]string, string, error) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		return nil, nil, "", fmt.Errorf("missing url parameter")
	}
	upstream, err := url.Parse(rawURL)
	if err != nil || !upstream.IsAbs() {
		return nil, nil, "", fmt.Errorf("invalid url parameter %q", rawURL)
	}

	headers := map[string]string{}
	headersJSON := r.URL.Query().Get("headers")
	if headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, nil, "", fmt.Errorf("parse headers parameter: %w", err)
		}
	} else {
		headersJSON = "{}"
	}
	return upstream, headers, headersJSON, nil
}

func (p *ProxyHandler) fetchUpstream(r *http.Request, upstream *url.URL, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return p.httpc.Do(req)
}

// HandlePlaylist serves GET /m3u8-proxy: fetch the upstream playlist with
// the supplied headers, rewrite every reference back through the relay, and
// stream the result.
func (p *ProxyHandler) HandlePlaylist(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	upstream, headers, headersJSON, err := parseProxyParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp, err := p.fetchUpstream(r, upstream, headers)
	if err != nil {
		http.Error(w, fmt.Sprintf("upstream fetch failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		http.Error(w, fmt.Sprintf("upstream returned %s", resp.Status), http.StatusBadGateway)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("read upstream playlist: %v", err), http.StatusInternalServerError)
		return
	}

	rewritten := m3u8.Rewrite(string(body), m3u8.RewriteOptions{
		ProxyBase:   strings.TrimRight(p.proxy.BaseURL, "/"),
		Upstream:    upstream,
		HeadersJSON: headersJSON,
	})

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/vnd.apple.mpegurl"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, strings.NewReader(rewritten)); err != nil {
		log.Printf("[proxy] write playlist response: %v", err)
	}
}

// HandleSegment serves GET /ts-proxy: raw binary passthrough, forwarding the
// upstream status and content headers except hop-by-hop ones.
func (p *ProxyHandler) HandleSegment(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	upstream, headers, _, err := parseProxyParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp, err := p.fetchUpstream(r, upstream, headers)
	if err != nil {
		http.Error(w, fmt.Sprintf("upstream fetch failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if droppedResponseHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("[proxy] stream segment: %v", err)
	}
}

// HandleNotFound rejects paths outside the relay surface.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	http.Error(w, "Invalid host", http.StatusNotFound)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")
}

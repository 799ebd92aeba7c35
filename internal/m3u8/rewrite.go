// Package m3u8 rewrites HLS playlists so every reference inside them routes
// back through the relay. Parsing is line oriented; tags and blank lines pass
// through untouched.
package m3u8

import (
	"net/url"
	"strings"
)

const (
	// PlaylistPath is the relay endpoint that serves rewritten playlists.
	PlaylistPath = "/m3u8-proxy"
	// SegmentPath is the relay endpoint that streams raw segment bytes.
	SegmentPath = "/ts-proxy"
)

// RewriteOptions carries everything needed to point playlist entries back at
// the relay.
type RewriteOptions struct {
	// ProxyBase is the public base URL of the relay, without trailing slash.
	ProxyBase string
	// Upstream is the URL the playlist was fetched from; relative references
	// resolve against it.
	Upstream *url.URL
	// HeadersJSON is the JSON-encoded header map the relay must replay on
	// every downstream fetch. Forwarded verbatim as a query parameter.
	HeadersJSON string
}

// IsPlaylist reports whether body looks like an M3U8 playlist.
func IsPlaylist(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "#EXTM3U")
}

// Rewrite returns the playlist with every media, variant, and URI-attribute
// reference replaced by a relay URL carrying the same headers parameter.
// Nested playlists route through the playlist endpoint, everything else
// through the segment endpoint. Variant URIs need not carry a .m3u8 suffix:
// the line after #EXT-X-STREAM-INF is a playlist by grammar, as are the URIs
// of rendition tags. Lines that are not references pass through unchanged.
func Rewrite(body string, opts RewriteOptions) string {
	base := strings.TrimRight(opts.ProxyBase, "/")
	headersParam := url.QueryEscape(opts.HeadersJSON)

	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))

	nextIsVariant := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, line)
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			if strings.HasPrefix(trimmed, "#EXT-X-STREAM-INF") {
				nextIsVariant = true
			}
			// Tags with an inline URI (EXT-X-KEY, EXT-X-MEDIA,
			// EXT-X-I-FRAME-STREAM-INF, EXT-X-MAP) still need rewriting.
			if inline := extractInlineURI(trimmed); inline != "" {
				resolved := resolveRef(inline, opts.Upstream)
				proxied := proxyURL(base, resolved, headersParam, isRenditionTag(trimmed))
				out = append(out, strings.Replace(line, inline, proxied, 1))
				continue
			}
			out = append(out, line)
			continue
		}

		resolved := resolveRef(trimmed, opts.Upstream)
		out = append(out, proxyURL(base, resolved, headersParam, nextIsVariant))
		nextIsVariant = false
	}

	return strings.Join(out, "\n")
}

// isRenditionTag reports whether a tag's URI attribute points at a nested
// playlist rather than raw bytes.
func isRenditionTag(tag string) bool {
	return strings.HasPrefix(tag, "#EXT-X-MEDIA") ||
		strings.HasPrefix(tag, "#EXT-X-I-FRAME-STREAM-INF")
}

// extractInlineURI pulls the value of a URI="..." attribute, or "".
func extractInlineURI(tag string) string {
	const marker = `URI="`
	start := strings.Index(tag, marker)
	if start == -1 {
		return ""
	}
	start += len(marker)
	end := strings.Index(tag[start:], `"`)
	if end == -1 {
		return ""
	}
	return tag[start : start+end]
}

// resolveRef resolves a playlist reference, which may be absolute or
// relative, against the upstream playlist URL.
func resolveRef(ref string, upstream *url.URL) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if parsed.IsAbs() || upstream == nil {
		return ref
	}
	return upstream.ResolveReference(parsed).String()
}

func proxyURL(base, target, headersParam string, forcePlaylist bool) string {
	endpoint := SegmentPath
	if forcePlaylist || isPlaylistRef(target) {
		endpoint = PlaylistPath
	}
	return base + endpoint + "?url=" + url.QueryEscape(target) + "&headers=" + headersParam
}

func isPlaylistRef(ref string) bool {
	parsed, err := url.Parse(ref)
	if err != nil {
		return strings.Contains(strings.ToLower(ref), ".m3u8")
	}
	return strings.HasSuffix(strings.ToLower(parsed.Path), ".m3u8")
}

// Package extractor discovers candidate video URLs in an HTML page body
// (§4.2).
package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/zpx01/video-scraper/internal/domain"
)

// recognizedExtensions is checked as a case-insensitive substring match
// against the path or query-separator boundary of a candidate URL (§4.2).
var recognizedExtensions = []string{
	"mp4", "webm", "mkv", "avi", "mov", "m4v", "m3u8", "mpd", "ts",
}

// qualityTable is consulted in order; the first matching pattern wins
// (§4.2).
var qualityTable = []struct {
	pattern *regexp.Regexp
	label   string
}{
	{regexp.MustCompile(`(?i)2160p|4k`), "2160p"},
	{regexp.MustCompile(`(?i)1440p|2k`), "1440p"},
	{regexp.MustCompile(`(?i)1080p|fhd`), "1080p"},
	{regexp.MustCompile(`(?i)720p|hd`), "720p"},
	{regexp.MustCompile(`(?i)480p|sd`), "480p"},
	{regexp.MustCompile(`(?i)360p`), "360p"},
	{regexp.MustCompile(`(?i)240p`), "240p"},
	{regexp.MustCompile(`(?i)144p`), "144p"},
}

var (
	directMediaPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>]+\.(mp4|webm|mkv|avi|mov|m4v)(\?[^\s"'<>]*)?`)
	manifestPattern     = regexp.MustCompile(`(?i)https?://[^\s"'<>]+\.(m3u8|mpd)(\?[^\s"'<>]*)?`)
	jsonEmbeddedPattern = regexp.MustCompile(`(?i)"(?:video_url|videoUrl|src|file|contentUrl)"\s*:\s*"(https?://[^"]+)"`)
	sourceAttrPattern   = regexp.MustCompile(`(?i)(?:src|data-src|data-video)\s*=\s*["'](https?://[^"']+\.(?:mp4|webm|mkv|m3u8|mpd))["']`)

	knownEmbedHosts = []string{"youtube.com", "youtube-nocookie.com", "player.vimeo.com", "dailymotion.com/embed"}
)

// SiteExtractor allows a caller to register a site-specific extraction
// strategy ahead of the generic sources below. The generic Extractor
// consults registered SiteExtractors first, falling through to the four
// generic sources when none match — a supplemented extension point carried
// over from the original implementation's SiteExtractor trait (§4.2).
type SiteExtractor interface {
	Matches(pageURL *url.URL) bool
	Extract(doc *goquery.Document, pageURL *url.URL) []domain.VideoInfo
}

// Extractor produces deduplicated VideoInfo lists from HTML bodies (§4.2).
type Extractor struct {
	siteExtractors []SiteExtractor
}

// New builds an Extractor, optionally registering site-specific extractors
// ahead of the generic sweep.
func New(siteExtractors ...SiteExtractor) *Extractor {
	return &Extractor{siteExtractors: siteExtractors}
}

// ExtractFromHTML walks body (relative to baseURL) and returns a
// deduplicated, ordered list of candidates. First occurrence wins on
// duplicate URLs (§4.2).
func (e *Extractor) ExtractFromHTML(body []byte, baseURL string) ([]domain.VideoInfo, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, domain.NewScraperError(domain.KindExtraction, "ExtractFromHTML", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, domain.NewScraperError(domain.KindExtraction, "ExtractFromHTML", err)
	}

	for _, se := range e.siteExtractors {
		if se.Matches(base) {
			return dedup(se.Extract(doc, base)), nil
		}
	}

	seen := make(map[string]struct{})
	var out []domain.VideoInfo

	add := func(v domain.VideoInfo) {
		if v.URL == "" {
			return
		}
		if _, ok := seen[v.URL]; ok {
			return
		}
		seen[v.URL] = struct{}{}
		v.SourcePage = baseURL
		if v.Quality == "" {
			v.Quality = InferQuality(v.URL)
		}
		out = append(out, v)
	}

	// 1. <video src>/<source src>, poster, type.
	doc.Find("video").Each(func(_ int, video *goquery.Selection) {
		poster, _ := video.Attr("poster")
		thumb := resolveOrEmpty(poster, base)

		if src, ok := video.Attr("src"); ok {
			typ, _ := video.Attr("type")
			add(domain.VideoInfo{URL: resolveOrEmpty(src, base), Format: typ, ThumbnailURL: thumb})
		}
		video.Find("source").Each(func(_ int, source *goquery.Selection) {
			src, ok := source.Attr("src")
			if !ok {
				return
			}
			typ, _ := source.Attr("type")
			add(domain.VideoInfo{URL: resolveOrEmpty(src, base), Format: typ, ThumbnailURL: thumb})
		})
	})

	// 2. <a href> pointing at a recognized extension.
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !isVideoURL(href) {
			return
		}
		add(domain.VideoInfo{URL: resolveOrEmpty(href, base), Title: strings.TrimSpace(a.Text())})
	})

	// 3. og:video meta variants.
	doc.Find(`meta[property="og:video"], meta[property="og:video:url"], meta[property="og:video:secure_url"],
		meta[name="og:video"], meta[name="og:video:url"], meta[name="og:video:secure_url"]`).Each(func(_ int, m *goquery.Selection) {
		content, ok := m.Attr("content")
		if !ok {
			return
		}
		add(domain.VideoInfo{URL: resolveOrEmpty(content, base)})
	})

	// 4. Regex sweep of the raw body.
	for _, match := range directMediaPattern.FindAllString(string(body), -1) {
		add(domain.VideoInfo{URL: match})
	}
	for _, match := range manifestPattern.FindAllString(string(body), -1) {
		add(domain.VideoInfo{URL: match, Format: manifestFormat(match)})
	}
	for _, m := range jsonEmbeddedPattern.FindAllStringSubmatch(string(body), -1) {
		add(domain.VideoInfo{URL: m[1]})
	}
	for _, m := range sourceAttrPattern.FindAllStringSubmatch(string(body), -1) {
		add(domain.VideoInfo{URL: m[1]})
	}

	return out, nil
}

// HasEmbeddedIframe is a best-effort, debug-only observation: true if any
// iframe src points at a known video-embed host. The result is never
// resolved into a VideoInfo (§4.2).
func (e *Extractor) HasEmbeddedIframe(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return false
	}
	found := false
	doc.Find("iframe[src]").EachWithBreak(func(_ int, iframe *goquery.Selection) bool {
		src, _ := iframe.Attr("src")
		for _, host := range knownEmbedHosts {
			if strings.Contains(src, host) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// InferQuality yields a label via first-match of the ordered quality table,
// or "" when nothing matches (§4.2).
func InferQuality(candidateURL string) string {
	for _, entry := range qualityTable {
		if entry.pattern.MatchString(candidateURL) {
			return entry.label
		}
	}
	return ""
}

func isVideoURL(href string) bool {
	lower := strings.ToLower(href)
	idx := strings.IndexAny(lower, "?#")
	path := lower
	if idx >= 0 {
		path = lower[:idx]
	}
	for _, ext := range recognizedExtensions {
		if strings.Contains(path, "."+ext) {
			return true
		}
	}
	return false
}

func manifestFormat(candidateURL string) string {
	lower := strings.ToLower(candidateURL)
	switch {
	case strings.Contains(lower, ".m3u8"):
		return "m3u8"
	case strings.Contains(lower, ".mpd"):
		return "mpd"
	default:
		return ""
	}
}

// resolveURL implements §4.2's URL-resolution rules: absolute URLs pass
// through, protocol-relative URLs gain an https: prefix, everything else is
// resolved against base. A resolution failure returns an error so the
// caller can drop the candidate silently.
func resolveURL(raw string, base *url.URL) (string, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, nil
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw, nil
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func resolveOrEmpty(raw string, base *url.URL) string {
	if raw == "" {
		return ""
	}
	resolved, err := resolveURL(raw, base)
	if err != nil {
		return ""
	}
	return resolved
}

func dedup(infos []domain.VideoInfo) []domain.VideoInfo {
	seen := make(map[string]struct{}, len(infos))
	out := make([]domain.VideoInfo, 0, len(infos))
	for _, v := range infos {
		if v.URL == "" {
			continue
		}
		if _, ok := seen[v.URL]; ok {
			continue
		}
		seen[v.URL] = struct{}{}
		out = append(out, v)
	}
	return out
}

// PageTitle extracts the page <title>, used by the Pipeline for diagnostics.
func PageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

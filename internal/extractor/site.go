package extractor

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/zpx01/video-scraper/internal/domain"
)

// NullSiteExtractor never matches. It exists only as scaffolding, mirroring
// the original implementation's YouTubeExtractor placeholder: a concrete
// example of the SiteExtractor shape that ships without claiming to handle
// any real site (§4.2).
type NullSiteExtractor struct{}

func (NullSiteExtractor) Matches(*url.URL) bool { return false }

func (NullSiteExtractor) Extract(*goquery.Document, *url.URL) []domain.VideoInfo { return nil }

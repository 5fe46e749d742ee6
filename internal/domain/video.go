package domain

import "strings"

// VideoInfo describes a discovered video candidate. Identity for dedup
// purposes is URL (§3).
type VideoInfo struct {
	URL            string  `json:"url"`
	Title          string  `json:"title,omitempty"`
	Format         string  `json:"format,omitempty"`
	Width          *int    `json:"width,omitempty"`
	Height         *int    `json:"height,omitempty"`
	DurationSecs   *float64 `json:"duration_secs,omitempty"`
	FileSizeBytes  *int64  `json:"file_size_bytes,omitempty"`
	ThumbnailURL   string  `json:"thumbnail_url,omitempty"`
	SourcePage     string  `json:"source_page,omitempty"`
	Quality        string  `json:"quality,omitempty"`
}

// VideoFilter is a predicate over VideoInfo. An axis left nil never
// constrains; a candidate with an unknown value on a bounded axis also never
// violates it (§4.4 Filter semantics).
type VideoFilter struct {
	MinWidth         *int     `json:"min_width,omitempty"`
	MaxWidth         *int     `json:"max_width,omitempty"`
	MinHeight        *int     `json:"min_height,omitempty"`
	MaxHeight        *int     `json:"max_height,omitempty"`
	MinDurationSecs  *float64 `json:"min_duration_secs,omitempty"`
	MaxDurationSecs  *float64 `json:"max_duration_secs,omitempty"`
	MinSizeBytes     *int64   `json:"min_size_bytes,omitempty"`
	MaxSizeBytes     *int64   `json:"max_size_bytes,omitempty"`
	AllowedFormats   []string `json:"allowed_formats,omitempty"`
	QualityPreference []string `json:"quality_preference,omitempty"`
}

// HDVideoFilter is a supplemented preset requiring at least 720p (§3).
func HDVideoFilter() VideoFilter {
	w, h := 1280, 720
	return VideoFilter{MinWidth: &w, MinHeight: &h}
}

// UHDVideoFilter is a supplemented preset requiring at least 2160p (§3).
func UHDVideoFilter() VideoFilter {
	w, h := 3840, 2160
	return VideoFilter{MinWidth: &w, MinHeight: &h}
}

// Matches reports whether v satisfies every bound f specifies. Unknown
// values on v never violate a bound (§4.4).
func (f VideoFilter) Matches(v VideoInfo) bool {
	if f.MinWidth != nil && v.Width != nil && *v.Width < *f.MinWidth {
		return false
	}
	if f.MaxWidth != nil && v.Width != nil && *v.Width > *f.MaxWidth {
		return false
	}
	if f.MinHeight != nil && v.Height != nil && *v.Height < *f.MinHeight {
		return false
	}
	if f.MaxHeight != nil && v.Height != nil && *v.Height > *f.MaxHeight {
		return false
	}
	if f.MinDurationSecs != nil && v.DurationSecs != nil && *v.DurationSecs < *f.MinDurationSecs {
		return false
	}
	if f.MaxDurationSecs != nil && v.DurationSecs != nil && *v.DurationSecs > *f.MaxDurationSecs {
		return false
	}
	if f.MinSizeBytes != nil && v.FileSizeBytes != nil && *v.FileSizeBytes < *f.MinSizeBytes {
		return false
	}
	if f.MaxSizeBytes != nil && v.FileSizeBytes != nil && *v.FileSizeBytes > *f.MaxSizeBytes {
		return false
	}
	if len(f.AllowedFormats) > 0 && v.Format != "" {
		ok := false
		for _, allowed := range f.AllowedFormats {
			if strings.Contains(strings.ToLower(v.Format), strings.ToLower(allowed)) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

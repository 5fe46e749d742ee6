package domain

import (
	"encoding/json"
	"time"
)

// ChunkRange is one [start, end] byte range already written to disk,
// recorded in a DownloadState journal (§3, §6).
type ChunkRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// MarshalJSON encodes the range as a [start, end] pair (§6).
func (c ChunkRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{c.Start, c.End})
}

// UnmarshalJSON decodes a [start, end] pair.
func (c *ChunkRange) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.Start, c.End = pair[0], pair[1]
	return nil
}

// DownloadState is the on-disk journal record enabling resume. It lives next
// to the artifact as .<name>.dlstate (§3, §6).
type DownloadState struct {
	URL              string       `json:"url"`
	OutputPath       string       `json:"output_path"`
	TotalBytes       *int64       `json:"total_bytes,omitempty"`
	DownloadedBytes  int64        `json:"downloaded_bytes"`
	ChunkSize        int          `json:"chunk_size"`
	PartialHash      string       `json:"partial_hash"`
	ChunksCompleted  []ChunkRange `json:"chunks_completed"`
	StartedAt        time.Time    `json:"started_at"`
	LastUpdated      time.Time    `json:"last_updated"`
}

// DownloadResult is the terminal record of a successful fetch (§3).
type DownloadResult struct {
	SizeBytes            int64
	SHA256Hash           string
	DurationSecs         float64
	AvgSpeedBytesPerSec  float64
	Resumed              bool
	ChunksDownloaded     int
}

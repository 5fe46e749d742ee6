package downloader

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zpx01/video-scraper/internal/domain"
)

// journalPath computes the .<basename>.dlstate path next to outputPath
// (§3, §6).
func journalPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	return filepath.Join(dir, "."+base+".dlstate")
}

// loadJournal returns the journal for outputPath, or (zero, false, nil) if
// none exists.
func loadJournal(outputPath string) (domain.DownloadState, bool, error) {
	data, err := os.ReadFile(journalPath(outputPath))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DownloadState{}, false, nil
		}
		return domain.DownloadState{}, false, domain.NewScraperError(domain.KindIO, "loadJournal", err)
	}
	var state domain.DownloadState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.DownloadState{}, false, domain.NewScraperError(domain.KindIO, "loadJournal", err)
	}
	return state, true, nil
}

// saveJournal rewrites the journal atomically: write to a temp file in the
// same directory, then rename over the destination (§6).
func saveJournal(state domain.DownloadState) error {
	state.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return domain.NewScraperError(domain.KindIO, "saveJournal", err)
	}

	dest := journalPath(state.OutputPath)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.NewScraperError(domain.KindIO, "saveJournal", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return domain.NewScraperError(domain.KindIO, "saveJournal", err)
	}
	return nil
}

// deleteJournal removes the journal file, ignoring a not-exist error.
func deleteJournal(outputPath string) error {
	err := os.Remove(journalPath(outputPath))
	if err != nil && !os.IsNotExist(err) {
		return domain.NewScraperError(domain.KindIO, "deleteJournal", err)
	}
	return nil
}

// reconstructHash rebuilds the rolling SHA-256 over the bytes already on
// disk, by re-reading the existing prefix rather than trying to persist
// opaque hasher state — the Open Question resolution from §9.
func reconstructHash(outputPath string, prefixLen int64) (hash.Hash, error) {
	h := sha256.New()
	if prefixLen <= 0 {
		return h, nil
	}
	f, err := os.Open(outputPath)
	if err != nil {
		return nil, domain.NewScraperError(domain.KindIO, "reconstructHash", err)
	}
	defer f.Close()

	if _, err := io.CopyN(h, f, prefixLen); err != nil {
		return nil, domain.NewScraperError(domain.KindIO, "reconstructHash", err)
	}
	return h, nil
}

// hexHash returns the hex digest of h without mutating it further (callers
// that keep hashing afterwards are unaffected since Sum appends to a copy of
// the running state).
func hexHash(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

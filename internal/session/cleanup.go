package session

import (
	"os"
	"path/filepath"
	"time"
)

// Cleanup removes sessions older than maxAgeDays, judged by the metadata
// created_at stamp. Sessions with missing or unparseable metadata and
// unexpected non-directories are skipped; the count of removed sessions is
// returned. Cleanup never fails as a whole.
func (s *Store) Cleanup(maxAgeDays int) int {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.ReadMetadata(entry.Name())
		if err != nil {
			s.log.WithField("session", entry.Name()).Debug("cleanup: skipping session without readable metadata")
			continue
		}
		if meta.CreatedAt.IsZero() || !meta.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			s.log.WithError(err).WithField("session", entry.Name()).Warn("cleanup: removal failed")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.WithField("removed", removed).Info("session cleanup complete")
	}
	return removed
}

// Package cache provides the content-addressed response cache used to
// memoize LLM invocations across debates. Entries are JSON files keyed by a
// short MD5 fingerprint of the prompt and the debated file's content hash.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = 5 * time.Minute

// Entry is the on-disk cache record.
type Entry struct {
	CachedAt time.Time `json:"cached_at"`
	FileHash string    `json:"file_hash,omitempty"`
	Response string    `json:"response"`
}

// Stats summarizes the cache directory.
type Stats struct {
	Entries int   `json:"entries"`
	Expired int   `json:"expired"`
	Bytes   int64 `json:"bytes"`
}

// ResponseCache is a file-backed cache with TTL and file-hash validation.
// A stale TTL or a stored file hash that does not match the query is a miss
// and removes the entry; Set tolerates I/O failure (degraded performance,
// never incorrectness).
type ResponseCache struct {
	dir string
	ttl time.Duration
	log *logrus.Logger
}

// New creates a cache rooted at dir (created on demand). A non-positive ttl
// falls back to DefaultTTL.
func New(dir string, ttl time.Duration, log *logrus.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ResponseCache{dir: dir, ttl: ttl, log: log}
}

// Key derives the 16-hex-char cache key from a prompt and an optional file
// hash. The short key is intentional; collisions are resolved by the
// file-hash check on read.
func Key(prompt, fileHash string) string {
	material := prompt
	if fileHash != "" {
		material += "|" + fileHash
	}
	sum := md5.Sum([]byte(material))
	return hex.EncodeToString(sum[:])[:16]
}

// HashContent returns the 16-char MD5 fingerprint of file content.
func HashContent(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])[:16]
}

// HashFile fingerprints a file's content; unreadable files hash the current
// timestamp so they never produce spurious cache hits.
func HashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return HashContent([]byte(time.Now().String()))
	}
	return HashContent(data)
}

// Get returns the cached response for (prompt, fileHash), or ok=false on a
// miss. Expired entries and file-hash mismatches are removed.
func (c *ResponseCache) Get(prompt, fileHash string) (string, bool) {
	path := c.entryPath(Key(prompt, fileHash))

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.WithField("entry", filepath.Base(path)).Warn("corrupt cache entry, removing")
		_ = os.Remove(path)
		return "", false
	}

	if time.Since(entry.CachedAt) > c.ttl {
		c.log.WithField("entry", filepath.Base(path)).Debug("cache entry expired")
		_ = os.Remove(path)
		return "", false
	}
	if entry.FileHash != fileHash {
		// Short-key collision with another file's entry.
		_ = os.Remove(path)
		return "", false
	}
	return entry.Response, true
}

// Set stores a response. Failures are logged and swallowed.
func (c *ResponseCache) Set(prompt, fileHash, response string) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.log.WithError(err).Debug("cache directory unavailable")
		return
	}
	entry := Entry{
		CachedAt: time.Now().UTC(),
		FileHash: fileHash,
		Response: response,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := os.WriteFile(c.entryPath(Key(prompt, fileHash)), data, 0o644); err != nil {
		c.log.WithError(err).Debug("cache write failed")
	}
}

// ClearExpired removes expired entries and reports how many were removed.
func (c *ResponseCache) ClearExpired() int {
	removed := 0
	for _, path := range c.entryFiles() {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || time.Since(entry.CachedAt) > c.ttl {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed
}

// ClearAll removes every entry and reports the count.
func (c *ResponseCache) ClearAll() int {
	removed := 0
	for _, path := range c.entryFiles() {
		if os.Remove(path) == nil {
			removed++
		}
	}
	return removed
}

// GetStats reports entry counts and total size. Best-effort.
func (c *ResponseCache) GetStats() Stats {
	var stats Stats
	for _, path := range c.entryFiles() {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stats.Entries++
		stats.Bytes += info.Size()

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || time.Since(entry.CachedAt) > c.ttl {
			stats.Expired++
		}
	}
	return stats
}

func (c *ResponseCache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *ResponseCache) entryFiles() []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(c.dir, e.Name()))
		}
	}
	return paths
}

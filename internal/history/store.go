// Package history persists debate records under a cache directory and keeps
// a JSON index for retrieval by id, file or pattern. File-based on purpose:
// the tool is local and single-user, so no database is involved.
package history

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.debate/internal/models"
)

// Record is one archived debate. Field names are the on-disk contract.
type Record struct {
	DebateID  string `json:"debate_id"`
	Timestamp string `json:"timestamp"`
	FilePath  string `json:"file_path"`
	FileHash  string `json:"file_hash"`
	FileSize  int    `json:"file_size"`

	Request    string   `json:"request"`
	FocusAreas []string `json:"focus_areas"`

	ConsensusScore  int    `json:"consensus_score"`
	Interpretation  string `json:"interpretation"`
	Recommendation  string `json:"recommendation"`
	ScoreDifference int    `json:"score_difference"`
	ClaudeScore     int    `json:"claude_score"`
	CodexScore      int    `json:"codex_score"`

	Disagreements []models.Statement `json:"disagreements"`
	Agreements    []string           `json:"agreements"`

	PerformanceStats models.Stats `json:"performance_stats"`
	PatternsDetected []string     `json:"patterns_detected"`

	Outcome          string `json:"outcome"`
	OutcomeNotes     string `json:"outcome_notes,omitempty"`
	OutcomeTimestamp string `json:"outcome_timestamp,omitempty"`
}

// Query filters debate retrieval. Zero values are unset.
type Query struct {
	FilePath     string
	Pattern      string
	MinConsensus int
	MaxConsensus int
	Since        time.Time
	Limit        int
}

// Statistics summarizes the whole archive.
type Statistics struct {
	TotalDebates     int            `json:"total_debates"`
	AvgConsensus     float64        `json:"avg_consensus"`
	AvgTime          float64        `json:"avg_time"`
	OutcomeBreakdown map[string]int `json:"outcome_breakdown"`
	PatternFrequency map[string]int `json:"pattern_frequency"`
}

type index struct {
	AllDebates []string            `json:"all_debates"`
	ByFile     map[string][]string `json:"by_file"`
	ByPattern  map[string][]string `json:"by_pattern"`
}

// Store owns the debate archive layout: debates/, patterns/, metadata/.
type Store struct {
	root        string
	debatesDir  string
	patternsDir string
	metadataDir string
	log         *logrus.Logger
}

// NewStore creates the archive directories under root.
func NewStore(root string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}
	s := &Store{
		root:        root,
		debatesDir:  filepath.Join(root, "debates"),
		patternsDir: filepath.Join(root, "patterns"),
		metadataDir: filepath.Join(root, "metadata"),
		log:         log,
	}
	for _, dir := range []string{s.debatesDir, s.patternsDir, s.metadataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	return s, nil
}

// PatternsDir exposes the pattern cache location for the pattern detector.
func (s *Store) PatternsDir() string {
	return s.patternsDir
}

// Save archives one debate and updates the index. The debated file is read
// for hashing; an unreadable file is archived with an empty hash.
func (s *Store) Save(request, filePath string, result *models.DebateResult, stats models.Stats, focusAreas []string) (string, error) {
	debateID := NewDebateID(time.Now())

	fileHash := ""
	fileSize := 0
	if data, err := os.ReadFile(filePath); err == nil {
		fileHash = HashContent(string(data))
		fileSize = len(data)
	}

	record := &Record{
		DebateID:         debateID,
		Timestamp:        time.Now().Format(time.RFC3339),
		FilePath:         filePath,
		FileHash:         fileHash,
		FileSize:         fileSize,
		Request:          request,
		FocusAreas:       focusAreas,
		ConsensusScore:   result.ConsensusScore,
		Interpretation:   result.Interpretation,
		Recommendation:   result.Recommendation,
		ScoreDifference:  result.ScoreDifference,
		ClaudeScore:      result.Score("claude"),
		CodexScore:       result.Score("codex"),
		Disagreements:    result.Disagreements,
		Agreements:       result.Agreements,
		PerformanceStats: stats,
		PatternsDetected: []string{},
		Outcome:          models.OutcomePending,
	}

	if err := s.writeRecord(record); err != nil {
		return "", err
	}
	if err := s.updateIndex(record); err != nil {
		return "", err
	}
	return debateID, nil
}

// Get loads one record by id, nil when absent.
func (s *Store) Get(debateID string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(debateID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("corrupt debate record %s: %w", debateID, err)
	}
	return &record, nil
}

// QueryDebates filters the archive, newest first.
func (s *Store) QueryDebates(q Query) ([]*Record, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}

	var results []*Record
	for _, id := range idx.AllDebates {
		record, err := s.Get(id)
		if err != nil || record == nil {
			continue
		}
		if q.FilePath != "" && record.FilePath != q.FilePath {
			continue
		}
		if q.Pattern != "" && !contains(record.PatternsDetected, q.Pattern) {
			continue
		}
		if q.MinConsensus > 0 && record.ConsensusScore < q.MinConsensus {
			continue
		}
		if q.MaxConsensus > 0 && record.ConsensusScore > q.MaxConsensus {
			continue
		}
		if !q.Since.IsZero() {
			ts, err := time.Parse(time.RFC3339, record.Timestamp)
			if err != nil || ts.Before(q.Since) {
				continue
			}
		}
		results = append(results, record)
		if len(results) >= q.Limit {
			break
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp > results[j].Timestamp
	})
	return results, nil
}

// RecentDebates returns debates from the last N days.
func (s *Store) RecentDebates(days, limit int) ([]*Record, error) {
	return s.QueryDebates(Query{
		Since: time.Now().AddDate(0, 0, -days),
		Limit: limit,
	})
}

// DebatesByFile returns the archive entries for one file.
func (s *Store) DebatesByFile(filePath string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.QueryDebates(Query{FilePath: filePath, Limit: limit})
}

// UpdateOutcome records what happened after the debate. Returns false when
// the debate id is unknown.
func (s *Store) UpdateOutcome(debateID, outcome, notes string) (bool, error) {
	record, err := s.Get(debateID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	record.Outcome = outcome
	record.OutcomeNotes = notes
	record.OutcomeTimestamp = time.Now().Format(time.RFC3339)

	if err := s.writeRecord(record); err != nil {
		return false, err
	}
	return true, nil
}

// SetPatterns annotates a saved record with the detected patterns.
func (s *Store) SetPatterns(debateID string, patterns []string) error {
	record, err := s.Get(debateID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("unknown debate id %s", debateID)
	}
	record.PatternsDetected = patterns
	return s.writeRecord(record)
}

// GetStatistics aggregates across the whole archive.
func (s *Store) GetStatistics() (*Statistics, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		OutcomeBreakdown: map[string]int{},
		PatternFrequency: map[string]int{},
	}
	if len(idx.AllDebates) == 0 {
		return stats, nil
	}

	var records []*Record
	for _, id := range idx.AllDebates {
		if record, err := s.Get(id); err == nil && record != nil {
			records = append(records, record)
		}
	}
	stats.TotalDebates = len(idx.AllDebates)
	if len(records) == 0 {
		return stats, nil
	}

	totalConsensus := 0
	totalTime := 0.0
	for _, r := range records {
		totalConsensus += r.ConsensusScore
		totalTime += r.PerformanceStats.TotalTime

		outcome := r.Outcome
		if outcome == "" {
			outcome = models.OutcomePending
		}
		stats.OutcomeBreakdown[outcome]++

		for _, p := range r.PatternsDetected {
			stats.PatternFrequency[p]++
		}
	}
	stats.AvgConsensus = round1(float64(totalConsensus) / float64(len(records)))
	stats.AvgTime = round2(totalTime / float64(len(records)))
	return stats, nil
}

func (s *Store) recordPath(debateID string) string {
	return filepath.Join(s.debatesDir, debateID+".json")
}

func (s *Store) writeRecord(record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.recordPath(record.DebateID), data, 0o644)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.metadataDir, "debate_index.json")
}

func (s *Store) loadIndex() (*index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &index{ByFile: map[string][]string{}, ByPattern: map[string][]string{}}, nil
		}
		return nil, err
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("corrupt debate index: %w", err)
	}
	if idx.ByFile == nil {
		idx.ByFile = map[string][]string{}
	}
	if idx.ByPattern == nil {
		idx.ByPattern = map[string][]string{}
	}
	return &idx, nil
}

func (s *Store) updateIndex(record *Record) error {
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}

	if !contains(idx.AllDebates, record.DebateID) {
		idx.AllDebates = append(idx.AllDebates, record.DebateID)
	}
	if !contains(idx.ByFile[record.FilePath], record.DebateID) {
		idx.ByFile[record.FilePath] = append(idx.ByFile[record.FilePath], record.DebateID)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), data, 0o644)
}

// NewDebateID builds a sortable id: timestamp plus a short hash of the
// current clock reading.
func NewDebateID(now time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d", now.UnixNano())))
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), hex.EncodeToString(sum[:])[:8])
}

// HashContent is the 16-character content hash used for change detection.
func HashContent(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

func contains(list []string, item string) bool {
	for _, x := range list {
		if x == item {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

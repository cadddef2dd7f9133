package revision

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.debate/internal/models"
)

// Delta mode is used when fewer than this share of lines changed.
const deltaChangeThreshold = 30.0

// Section is one consecutive run of changed lines, 1-indexed inclusive.
type Section struct {
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}

// HistoryEntry is one archived debate snapshot for delta comparison. It
// keeps the full file content so later diffs need no external state.
type HistoryEntry struct {
	DebateID     string               `json:"debate_id"`
	FilePath     string               `json:"file_path"`
	Timestamp    string               `json:"timestamp"`
	Content      string               `json:"content"`
	ContentHash  string               `json:"content_hash"`
	DebateResult *models.DebateResult `json:"debate_result"`
	IsDelta      bool                 `json:"is_delta"`
}

// ChangeInfo describes what changed since the previous debate.
type ChangeInfo struct {
	HasChanges          bool          `json:"has_changes"`
	ChangeSummary       string        `json:"change_summary"`
	ChangedSections     []Section     `json:"changed_sections"`
	PreviousContentHash string        `json:"previous_content_hash,omitempty"`
	CurrentContentHash  string        `json:"current_content_hash"`
	PreviousDebate      *HistoryEntry `json:"previous_debate,omitempty"`
}

// IssueVerification records whether one previous issue appears resolved.
type IssueVerification struct {
	Issue    models.Issue `json:"issue"`
	Resolved bool         `json:"resolved"`
	Evidence string       `json:"evidence"`
}

// DeltaTracker archives per-file debate snapshots and scopes follow-up
// debates to the changed sections.
type DeltaTracker struct {
	dir string
	log *logrus.Logger
}

// NewDeltaTracker creates a tracker rooted at dir.
func NewDeltaTracker(dir string, log *logrus.Logger) (*DeltaTracker, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("delta history dir: %w", err)
	}
	return &DeltaTracker{dir: dir, log: log}, nil
}

// DetectChanges compares the file against the previous debate snapshot.
// With previousDebateID empty, the latest snapshot for the file is used.
func (t *DeltaTracker) DetectChanges(filePath, previousDebateID string) (*ChangeInfo, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	currentContent := string(data)
	currentHash := hashContent(currentContent)

	previous, err := t.loadPreviousDebate(filePath, previousDebateID)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return &ChangeInfo{
			HasChanges:         true,
			ChangeSummary:      "No previous debate found - treat as initial debate",
			ChangedSections:    []Section{},
			CurrentContentHash: currentHash,
		}, nil
	}

	if currentHash == previous.ContentHash {
		return &ChangeInfo{
			ChangeSummary:       "No changes since last debate",
			ChangedSections:     []Section{},
			PreviousContentHash: previous.ContentHash,
			CurrentContentHash:  currentHash,
			PreviousDebate:      previous,
		}, nil
	}

	sections := detectChangedSections(previous.Content, currentContent)
	return &ChangeInfo{
		HasChanges:          true,
		ChangeSummary:       summarizeChanges(sections),
		ChangedSections:     sections,
		PreviousContentHash: previous.ContentHash,
		CurrentContentHash:  currentHash,
		PreviousDebate:      previous,
	}, nil
}

// ShouldUseDeltaMode decides between a scoped delta debate and a full
// re-debate. Delta mode needs a previous debate and a change under 30% of
// the previous file's lines.
func ShouldUseDeltaMode(info *ChangeInfo) bool {
	if !info.HasChanges {
		return false
	}
	if info.PreviousDebate == nil {
		return false
	}

	if len(info.ChangedSections) > 0 {
		totalChanged := 0
		for _, section := range info.ChangedSections {
			totalChanged += section.EndLine - section.StartLine + 1
		}
		previousLines := len(strings.Split(info.PreviousDebate.Content, "\n"))
		if previousLines == 0 {
			return false
		}
		changePercentage := float64(totalChanged) / float64(previousLines) * 100
		return changePercentage < deltaChangeThreshold
	}
	return true
}

// CreateDeltaPrompt builds the scoped prompt covering only the changed
// sections and the previous issues.
func (t *DeltaTracker) CreateDeltaPrompt(info *ChangeInfo, originalRequest string) string {
	sectionTexts := make([]string, 0, len(info.ChangedSections))
	for _, section := range info.ChangedSections {
		sectionTexts = append(sectionTexts,
			fmt.Sprintf("[Lines %d-%d]\n%s", section.StartLine, section.EndLine, section.Content))
	}

	var issueLines []string
	for i, issue := range previousIssues(info) {
		if i >= 5 {
			break
		}
		title := issue.Title
		if title == "" {
			title = "Unknown issue"
		}
		issueLines = append(issueLines, "- "+title)
	}

	return fmt.Sprintf(`This is a DELTA DEBATE (incremental review of changes only).

ORIGINAL REQUEST:
%s

CHANGE SUMMARY:
%s

CHANGED SECTIONS:
%s

PREVIOUS ISSUES IDENTIFIED:
%s

Your task:
1. Review ONLY the changed sections (don't re-review unchanged parts)
2. Check if previous issues were addressed in changes
3. Identify any NEW issues introduced by changes
4. Give quick recommendation (approve changes / needs more work)

Focus on incremental analysis, not full re-review.
`, originalRequest, info.ChangeSummary, strings.Join(sectionTexts, "\n\n"), strings.Join(issueLines, "\n"))
}

// VerifyResolvedIssues checks whether each previous issue's fix keywords
// appear in the changed sections.
func (t *DeltaTracker) VerifyResolvedIssues(info *ChangeInfo) []IssueVerification {
	changedParts := make([]string, 0, len(info.ChangedSections))
	for _, section := range info.ChangedSections {
		changedParts = append(changedParts, section.Content)
	}
	changedContent := strings.ToLower(strings.Join(changedParts, " "))

	var verification []IssueVerification
	for _, issue := range previousIssues(info) {
		keywords := extractKeywords(strings.ToLower(issue.Fix))

		resolved := false
		for _, keyword := range keywords {
			if strings.Contains(changedContent, keyword) {
				resolved = true
				break
			}
		}

		evidence := "Fix keywords not found in changes"
		if resolved {
			evidence = fmt.Sprintf("Found fix keywords (%s) in changed sections", strings.Join(keywords, ", "))
		}
		verification = append(verification, IssueVerification{
			Issue:    issue,
			Resolved: resolved,
			Evidence: evidence,
		})
	}
	return verification
}

// SaveDebateResult archives a snapshot for future delta comparisons and
// returns its debate id.
func (t *DeltaTracker) SaveDebateResult(filePath string, result *models.DebateResult, content string, isDelta bool) (string, error) {
	debateID := newDeltaDebateID(filePath, time.Now())

	entry := HistoryEntry{
		DebateID:     debateID,
		FilePath:     filePath,
		Timestamp:    time.Now().Format(time.RFC3339),
		Content:      content,
		ContentHash:  hashContent(content),
		DebateResult: result,
		IsDelta:      isDelta,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(t.dir, debateID+".json"), data, 0o644); err != nil {
		return "", fmt.Errorf("write delta snapshot: %w", err)
	}
	return debateID, nil
}

func (t *DeltaTracker) loadPreviousDebate(filePath, debateID string) (*HistoryEntry, error) {
	if debateID != "" {
		data, err := os.ReadFile(filepath.Join(t.dir, debateID+".json"))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		var entry HistoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("corrupt delta snapshot %s: %w", debateID, err)
		}
		return &entry, nil
	}

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, err
	}

	var matches []*HistoryEntry
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.dir, dirEntry.Name()))
		if err != nil {
			continue
		}
		var entry HistoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			t.log.WithField("snapshot", dirEntry.Name()).Warn("skipping corrupt delta snapshot")
			continue
		}
		if entry.FilePath == filePath {
			matches = append(matches, &entry)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp > matches[j].Timestamp
	})
	return matches[0], nil
}

// detectChangedSections finds consecutive runs of lines that differ from
// the previous content at the same position.
func detectChangedSections(previousContent, currentContent string) []Section {
	prevLines := strings.Split(previousContent, "\n")
	currLines := strings.Split(currentContent, "\n")

	var sections []Section
	i := 0
	for i < len(currLines) {
		if i >= len(prevLines) || currLines[i] != prevLines[i] {
			startLine := i + 1
			var changed []string
			for i < len(currLines) && (i >= len(prevLines) || currLines[i] != prevLines[i]) {
				changed = append(changed, currLines[i])
				i++
			}
			sections = append(sections, Section{
				StartLine: startLine,
				EndLine:   i,
				Content:   strings.Join(changed, "\n"),
			})
		} else {
			i++
		}
	}
	return sections
}

func summarizeChanges(sections []Section) string {
	if len(sections) == 0 {
		return "No changes detected"
	}
	totalLines := 0
	for _, section := range sections {
		totalLines += section.EndLine - section.StartLine + 1
	}
	return fmt.Sprintf("%d section(s) changed (%d lines total)", len(sections), totalLines)
}

// extractKeywords pulls up to five significant words out of a fix
// description for resolution matching.
func extractKeywords(text string) []string {
	commonWords := map[string]bool{
		"the": true, "this": true, "that": true, "with": true, "from": true,
		"have": true, "need": true, "should": true, "would": true, "could": true,
	}

	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(word) <= 4 || commonWords[word] {
			continue
		}
		keywords = append(keywords, strings.Trim(word, ".,!?;:"))
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}

func previousIssues(info *ChangeInfo) []models.Issue {
	if info.PreviousDebate == nil || info.PreviousDebate.DebateResult == nil {
		return nil
	}
	return info.PreviousDebate.DebateResult.Issues
}

func hashContent(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

func newDeltaDebateID(filePath string, now time.Time) string {
	sum := md5.Sum([]byte(filePath))
	return now.Format("20060102_150405") + "_" + hex.EncodeToString(sum[:])[:8]
}

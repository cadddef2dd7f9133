// Package session implements the on-disk debate session protocol: a
// per-user, per-session directory tree with advisory file locks, a
// monotonic sequence counter, proposal files and JSON metadata.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

// Sentinel errors for the session protocol.
var (
	ErrInvalidSessionID   = errors.New("invalid session id")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrLockTimeout        = errors.New("lock acquisition timed out")
)

// DefaultParticipants is the reference participant label set. The labels
// are opaque; a Store may be configured with any non-empty set.
var DefaultParticipants = []string{"claude", "codex"}

// Metadata is the whole-file JSON state of one session.
type Metadata struct {
	SessionID      string    `json:"session_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	State          string    `json:"state"`
	CurrentRound   int       `json:"current_round"`
	Request        string    `json:"request,omitempty"`
	FilePaths      []string  `json:"file_paths,omitempty"`
	Context        string    `json:"context,omitempty"`
	ConsensusScore *int      `json:"consensus_score,omitempty"`
	AnalysisMethod string    `json:"analysis_method,omitempty"`
	UserOverride   bool      `json:"user_override,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
}

// Store manages the session trees of one user under a temp root.
type Store struct {
	root         string // <temp>/ai_debates/<user8>
	participants []string
	lockTimeout  time.Duration
	log          *logrus.Logger
}

// Options tunes a Store. Zero values fall back to defaults.
type Options struct {
	// TempDir overrides the OS temp directory.
	TempDir string
	// Participants overrides DefaultParticipants.
	Participants []string
	// LockTimeout bounds advisory lock acquisition (default 10s).
	LockTimeout time.Duration
	// Logger receives debug/warn output (default: logrus standard logger).
	Logger *logrus.Logger
}

// NewStore creates a session store rooted at
// <temp>/ai_debates/<sha256(user)[:8]>.
func NewStore(opts Options) *Store {
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	participants := opts.Participants
	if len(participants) == 0 {
		participants = DefaultParticipants
	}
	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Store{
		root:         filepath.Join(tempDir, "ai_debates", UserHash()),
		participants: participants,
		lockTimeout:  lockTimeout,
		log:          log,
	}
}

// Root returns the per-user session root directory.
func (s *Store) Root() string {
	return s.root
}

// Participants returns the configured participant labels.
func (s *Store) Participants() []string {
	return s.participants
}

// SessionDir returns the directory of a session without validating that it
// exists.
func (s *Store) SessionDir(sessionID string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, sessionID), nil
}

// CreateSession builds the session tree idempotently: locks/, one directory
// per participant, moderator/, artifacts subtrees, a ".sequence" counter
// initialized to "0" only when absent, and fresh metadata.
func (s *Store) CreateSession(sessionID string) (string, error) {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return "", err
	}

	subdirs := []string{"locks", "moderator"}
	subdirs = append(subdirs, s.participants...)
	subdirs = append(subdirs,
		filepath.Join("artifacts", "code_samples"),
		filepath.Join("artifacts", "diagrams"),
		filepath.Join("artifacts", "references"),
	)
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("creating session tree: %w", err)
		}
	}

	seqPath := filepath.Join(dir, ".sequence")
	if _, err := os.Stat(seqPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(seqPath, []byte("0"), 0o644); err != nil {
			return "", fmt.Errorf("initializing sequence counter: %w", err)
		}
	}

	now := time.Now().UTC()
	meta := &Metadata{
		SessionID:    sessionID,
		CreatedAt:    now,
		UpdatedAt:    now,
		State:        "IDLE",
		CurrentRound: 0,
	}
	if err := s.WriteMetadata(sessionID, meta); err != nil {
		return "", err
	}

	s.log.WithField("session", sessionID).Debug("session created")
	return dir, nil
}

// NextSequence increments the session-wide counter under the ".sequence.lock"
// advisory lock and returns the new value. A missing or unparseable counter
// is treated as 0.
func (s *Store) NextSequence(ctx context.Context, sessionID string) (int, error) {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return 0, err
	}

	unlock, err := s.acquire(ctx, filepath.Join(dir, ".sequence.lock"))
	if err != nil {
		return 0, err
	}
	defer unlock()

	seqPath := filepath.Join(dir, ".sequence")
	current := 0
	if data, err := os.ReadFile(seqPath); err == nil {
		if n, perr := strconv.Atoi(strings.TrimSpace(string(data))); perr == nil {
			current = n
		} else {
			s.log.WithField("session", sessionID).Warn("corrupt sequence counter, resetting to 0")
		}
	}

	next := current + 1
	if err := os.WriteFile(seqPath, []byte(strconv.Itoa(next)), 0o644); err != nil {
		return 0, fmt.Errorf("writing sequence counter: %w", err)
	}
	return next, nil
}

// WriteProposal stores one participant's proposal for a round as
// <participant>/round_<r>_seq_<NNN>.md and returns the path and sequence.
func (s *Store) WriteProposal(ctx context.Context, sessionID, participant string, round int, content string) (string, int, error) {
	if !s.isParticipant(participant) {
		return "", 0, fmt.Errorf("%w: %q", ErrUnknownParticipant, participant)
	}
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return "", 0, err
	}

	seq, err := s.NextSequence(ctx, sessionID)
	if err != nil {
		return "", 0, err
	}

	lockName := fmt.Sprintf(".%s_round_%d.lock", participant, round)
	unlock, err := s.acquire(ctx, filepath.Join(dir, "locks", lockName))
	if err != nil {
		return "", 0, err
	}
	defer unlock()

	path := filepath.Join(dir, participant, proposalName(round, seq))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", 0, fmt.Errorf("writing proposal: %w", err)
	}
	return path, seq, nil
}

// ReadProposal returns the content of the highest-sequence proposal for a
// (participant, round) pair. Earlier files are retained but never returned.
func (s *Store) ReadProposal(sessionID, participant string, round int) (string, error) {
	if !s.isParticipant(participant) {
		return "", fmt.Errorf("%w: %q", ErrUnknownParticipant, participant)
	}
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return "", err
	}

	pattern := filepath.Join(dir, participant, fmt.Sprintf("round_%d_seq_*.md", round))
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no proposal for participant %s round %d", participant, round)
	}

	// Sort by parsed sequence so files past seq 999 keep their order even
	// though the zero-padded field widens.
	sort.Slice(matches, func(i, j int) bool {
		return proposalSeq(matches[i]) < proposalSeq(matches[j])
	})

	data, err := os.ReadFile(matches[len(matches)-1])
	if err != nil {
		return "", fmt.Errorf("reading proposal: %w", err)
	}
	return string(data), nil
}

// WriteMetadata replaces the session metadata, refreshing UpdatedAt.
func (s *Store) WriteMetadata(sessionID string, meta *Metadata) error {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session_metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads the session metadata.
func (s *Store) ReadMetadata(sessionID string) (*Metadata, error) {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "session_metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &meta, nil
}

// acquire takes an advisory lock with the configured timeout. The returned
// function releases the lock.
func (s *Store) acquire(ctx context.Context, path string) (func(), error) {
	lock := flock.New(path)

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil || !locked {
		if lockCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, filepath.Base(path))
		}
		return nil, fmt.Errorf("acquiring lock %s: %w", filepath.Base(path), err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.log.WithError(err).WithField("lock", path).Warn("releasing lock failed")
		}
	}, nil
}

func (s *Store) isParticipant(label string) bool {
	for _, p := range s.participants {
		if p == label {
			return true
		}
	}
	return false
}

// proposalName formats round and sequence into a filename. The sequence is
// zero-padded to three digits; larger values widen naturally.
func proposalName(round, seq int) string {
	return fmt.Sprintf("round_%d_seq_%03d.md", round, seq)
}

// proposalSeq parses the sequence number out of a proposal filename,
// returning -1 for names it cannot parse.
func proposalSeq(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), ".md")
	idx := strings.LastIndex(name, "_seq_")
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(name[idx+len("_seq_"):])
	if err != nil {
		return -1
	}
	return n
}

// validateSessionID rejects path traversal: separators, "..", null bytes,
// and anything whose base name differs from the id itself.
func validateSessionID(id string) error {
	if id == "" ||
		strings.Contains(id, "..") ||
		strings.ContainsAny(id, `/\`) ||
		strings.ContainsRune(id, 0) ||
		filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

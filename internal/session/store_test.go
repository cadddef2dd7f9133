package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(Options{TempDir: t.TempDir()})
}

func TestCreateSessionBuildsTree(t *testing.T) {
	store := newTestStore(t)

	dir, err := store.CreateSession("s1")
	require.NoError(t, err)

	for _, sub := range []string{
		"locks", "claude", "codex", "moderator",
		filepath.Join("artifacts", "code_samples"),
		filepath.Join("artifacts", "diagrams"),
		filepath.Join("artifacts", "references"),
	} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err, "missing %s", sub)
		assert.True(t, info.IsDir())
	}

	data, err := os.ReadFile(filepath.Join(dir, ".sequence"))
	require.NoError(t, err)
	assert.Equal(t, "0", string(data))

	meta, err := store.ReadMetadata("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", meta.SessionID)
	assert.Equal(t, "IDLE", meta.State)
	assert.Equal(t, 0, meta.CurrentRound)
}

func TestCreateSessionIsIdempotentAndKeepsSequence(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("s1")
	require.NoError(t, err)

	seq, err := store.NextSequence(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	// Re-creating must not reset the counter.
	_, err = store.CreateSession("s1")
	require.NoError(t, err)

	seq, err = store.NextSequence(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, seq)
}

func TestSessionIDValidation(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"", "..", "a/../b", "x/y", `x\y`, "../../etc", "a\x00b"} {
		_, err := store.CreateSession(id)
		assert.ErrorIs(t, err, ErrInvalidSessionID, "id %q", id)
	}

	// Nothing may be created on disk for rejected ids.
	entries, err := os.ReadDir(store.Root())
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestSequenceMonotonic(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateSession("s1")
	require.NoError(t, err)

	prev := 0
	for i := 0; i < 20; i++ {
		seq, err := store.NextSequence(context.Background(), "s1")
		require.NoError(t, err)
		assert.Greater(t, seq, prev)
		prev = seq
	}
}

func TestSequenceSurvivesMissingFile(t *testing.T) {
	store := newTestStore(t)
	dir, err := store.CreateSession("s1")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, ".sequence")))

	seq, err := store.NextSequence(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	seq, err = store.NextSequence(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, seq)
}

func TestSequenceSurvivesCorruptFile(t *testing.T) {
	store := newTestStore(t)
	dir, err := store.CreateSession("s1")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".sequence"), []byte("garbage"), 0o644))

	seq, err := store.NextSequence(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}

func TestWriteAndReadProposal(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateSession("s1")
	require.NoError(t, err)

	ctx := context.Background()

	path, seq, err := store.WriteProposal(ctx, "s1", "claude", 1, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
	assert.Contains(t, path, "round_1_seq_001.md")

	_, seq, err = store.WriteProposal(ctx, "s1", "claude", 1, "B")
	require.NoError(t, err)
	assert.Equal(t, 2, seq)

	content, err := store.ReadProposal("s1", "claude", 1)
	require.NoError(t, err)
	assert.Equal(t, "B", content)
}

func TestReadProposalPicksHighestSequencePastPadding(t *testing.T) {
	store := newTestStore(t)
	dir, err := store.CreateSession("s1")
	require.NoError(t, err)

	// Simulate a long-lived session that ran past the padded field width.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claude", "round_1_seq_999.md"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claude", "round_1_seq_1000.md"), []byte("new"), 0o644))

	content, err := store.ReadProposal("s1", "claude", 1)
	require.NoError(t, err)
	assert.Equal(t, "new", content)
}

func TestUnknownParticipantRejected(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateSession("s1")
	require.NoError(t, err)

	_, _, err = store.WriteProposal(context.Background(), "s1", "gemini", 1, "X")
	assert.ErrorIs(t, err, ErrUnknownParticipant)

	_, err = store.ReadProposal("s1", "gemini", 1)
	assert.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestConfigurableParticipants(t *testing.T) {
	store := NewStore(Options{
		TempDir:      t.TempDir(),
		Participants: []string{"alpha", "beta", "gamma"},
	})
	dir, err := store.CreateSession("s1")
	require.NoError(t, err)

	_, _, err = store.WriteProposal(context.Background(), "s1", "gamma", 2, "ok")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "gamma"))
	require.NoError(t, err)
}

func TestMetadataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateSession("s1")
	require.NoError(t, err)

	score := 82
	meta := &Metadata{
		SessionID:      "s1",
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
		State:          "ROUND_2",
		CurrentRound:   2,
		Request:        "refactor the auth flow",
		FilePaths:      []string{"auth.go"},
		ConsensusScore: &score,
		AnalysisMethod: "rule-based",
	}
	require.NoError(t, store.WriteMetadata("s1", meta))

	got, err := store.ReadMetadata("s1")
	require.NoError(t, err)
	assert.Equal(t, meta.SessionID, got.SessionID)
	assert.Equal(t, meta.State, got.State)
	assert.Equal(t, meta.CurrentRound, got.CurrentRound)
	assert.Equal(t, meta.Request, got.Request)
	require.NotNil(t, got.ConsensusScore)
	assert.Equal(t, 82, *got.ConsensusScore)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCleanupRemovesOldSessions(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("old")
	require.NoError(t, err)
	_, err = store.CreateSession("fresh")
	require.NoError(t, err)

	old, err := store.ReadMetadata("old")
	require.NoError(t, err)
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -30)
	require.NoError(t, store.WriteMetadata("old", old))

	removed := store.Cleanup(7)
	assert.Equal(t, 1, removed)

	_, err = store.ReadMetadata("old")
	assert.Error(t, err)
	_, err = store.ReadMetadata("fresh")
	assert.NoError(t, err)
}

func TestCleanupSkipsCorruptMetadata(t *testing.T) {
	store := newTestStore(t)
	dir, err := store.CreateSession("broken")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "session_metadata.json"), []byte("{not json"), 0o644))

	removed := store.Cleanup(7)
	assert.Equal(t, 0, removed)

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestUserHashShape(t *testing.T) {
	h := UserHash()
	assert.Len(t, h, 8)
	assert.Regexp(t, "^[0-9a-f]{8}$", h)
	// Stable across calls.
	assert.Equal(t, h, UserHash())
}

func TestNewSessionID(t *testing.T) {
	now := time.Date(2026, 8, 24, 15, 4, 5, 0, time.UTC)

	id := NewSessionID(now)
	assert.Regexp(t, `^20260824-150405-[0-9a-f]{8}$`, id)
	require.NoError(t, validateSessionID(id))

	// Two ids from the same instant still differ.
	assert.NotEqual(t, id, NewSessionID(now))
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractScore(t *testing.T) {
	tests := []struct {
		name     string
		response string
		fallback int
		want     int
	}{
		{"score colon", "Good plan overall.\nScore: 85", 70, 85},
		{"rating colon", "Rating: 92 out of 100", 70, 92},
		{"slash hundred", "I would say this is 78/100.", 70, 78},
		{"slash hundred spaced", "Overall 64 / 100", 70, 64},
		{"give form", "I give it a 55", 70, 55},
		{"assign form", "I would assign 45 to this plan", 70, 45},
		{"case insensitive", "SCORE: 88/100", 70, 88},
		{"no score", "Looks fine to me.", 80, 80},
		{"out of range", "Score: 250", 75, 75},
		{"empty", "", 75, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractScore(tt.response, tt.fallback))
		})
	}
}

func TestRetryableStatusCodes(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(500))
	assert.True(t, IsRetryableStatusCode(502))
	assert.True(t, IsRetryableStatusCode(504))

	// 503 means "backend unavailable" on the bridge protocol and is
	// permanent for the invocation.
	assert.False(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(200))
	assert.False(t, IsRetryableStatusCode(400))
}

package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateBytes(t *testing.T) {
	assert.Equal(t, "short", truncateBytes("short", 10))
	assert.Equal(t, "abc", truncateBytes("abcdef", 3))

	// "é" is two bytes; a cut inside it backs off to the rune start
	got := truncateBytes("aé", 2)
	assert.Equal(t, "a", got)
	assert.True(t, utf8.ValidString(got))
}

func TestBuildSyllabusUserPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("a", maxStructuringInput-1) + "日本語"
	prompt := BuildSyllabusUserPrompt(text, time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(prompt, "Reference date: 2025-10-15\n"))
	assert.True(t, utf8.ValidString(prompt))
	body := prompt[strings.Index(prompt, "Syllabus text:\n")+len("Syllabus text:\n"):]
	assert.Len(t, body, maxStructuringInput-1)
}

package subtitle

import (
	"regexp"
	"strings"
)

// closedCaptionPattern matches bracketed stage directions with any leading run of spaces or dashes.
var closedCaptionPattern = regexp.MustCompile(`[ -]*\[[^\]]*\]`)

const musicNote = "♪"

// StripClosedCaptions removes "[ ... ]" stage directions from a cue.
func StripClosedCaptions(text string) string {
	out := closedCaptionPattern.ReplaceAllString(text, "")
	if out == text {
		return text
	}
	return strings.TrimSpace(out)
}

// StripMusicNotes removes every music-note glyph from a cue.
func StripMusicNotes(text string) string {
	if !strings.Contains(text, musicNote) {
		return text
	}
	return strings.TrimSpace(strings.ReplaceAll(text, musicNote, ""))
}

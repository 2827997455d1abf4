package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// PIILevel controls how much chat content reaches logs and span attributes.
type PIILevel string

const (
	// PIILevelNone redacts all chat content
	PIILevelNone PIILevel = "none"
	// PIILevelHashed keeps the text but hashes detected PII
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull performs no sanitization
	PIILevelFull PIILevel = "full"
)

const (
	redacted       = "[REDACTED]"
	maxPreviewRune = 120
)

var (
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern      = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)
	ipv4Pattern       = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// ParsePIILevel maps a config value to a level; unknown values fall back to none.
func ParsePIILevel(raw string) PIILevel {
	switch PIILevel(strings.ToLower(strings.TrimSpace(raw))) {
	case PIILevelHashed:
		return PIILevelHashed
	case PIILevelFull:
		return PIILevelFull
	default:
		return PIILevelNone
	}
}

// Sanitizer prepares user messages and backend replies for telemetry.
type Sanitizer struct {
	level PIILevel
	salt  string
}

// NewSanitizer creates a sanitizer. salt keys the PII hashes so they are
// stable within one deployment only.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{level: level, salt: salt}
}

// Level returns the configured level.
func (s *Sanitizer) Level() PIILevel {
	if s == nil {
		return PIILevelNone
	}
	return s.level
}

// Content returns text safe to attach to logs or spans, truncated to a preview.
// A nil Sanitizer redacts everything.
func (s *Sanitizer) Content(text string) string {
	if text == "" {
		return ""
	}
	switch s.Level() {
	case PIILevelFull:
		return preview(text)
	case PIILevelHashed:
		return preview(s.hashPII(text))
	default:
		return redacted
	}
}

func (s *Sanitizer) hashPII(input string) string {
	result := emailPattern.ReplaceAllStringFunc(input, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})
	result = creditCardPattern.ReplaceAllString(result, "[CC:REDACTED]")
	result = phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})
	result = ipv4Pattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[IP:%s]", s.hash(match))
	})
	return result
}

func (s *Sanitizer) hash(data string) string {
	sum := sha256.Sum256([]byte(data + s.salt))
	return hex.EncodeToString(sum[:])[:8]
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= maxPreviewRune {
		return text
	}
	return string(runes[:maxPreviewRune]) + "…"
}

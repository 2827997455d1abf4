package idgen

import (
	"crypto/rand"
)

// DefaultLength is the conversation identifier length used when none is configured.
const DefaultLength = 9

const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// Largest multiple of len(charset) that fits in a byte. Bytes at or above it
// are rejected so every character is equally likely.
const maxUnbiased = 256 - (256 % len(charset))

// Generator produces short opaque identifiers of a fixed length.
type Generator struct {
	length int
}

// NewGenerator returns a generator for identifiers of the given length.
// Non-positive lengths fall back to DefaultLength.
func NewGenerator(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// NewID returns a fresh identifier.
func (g *Generator) NewID() string {
	return GenerateID(g.length)
}

// GenerateID returns a cryptographically random identifier of the given
// length using only lowercase letters and digits.
func GenerateID(length int) string {
	encoded := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(encoded) < length {
		// crypto/rand.Read never returns an error; it aborts the process instead.
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			encoded = append(encoded, charset[int(b)%len(charset)])
			if len(encoded) == length {
				break
			}
		}
	}
	return string(encoded)
}

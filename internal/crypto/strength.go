package crypto

import (
	"crypto/sha256"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/atinyakov/passvault/internal/models"
)

// Symbols counted towards the symbol character class.
const Symbols = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"

var commonPatterns = []string{
	"password", "123456", "qwerty", "abc123", "letmein",
	"welcome", "admin", "login", "master", "dragon",
}

// ScorePasswordStrength returns a deterministic 0..100 score for s.
func ScorePasswordStrength(s string) int {
	if s == "" {
		return 0
	}
	runes := []rune(s)

	score := 0
	n := utf8.RuneCountInString(s)
	for _, tier := range []int{8, 12, 16} {
		if n >= tier {
			score += 10
		}
	}

	var lower, upper, digit, symbol bool
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(Symbols, r):
			symbol = true
		}
	}
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			score += 15
		}
	}

	if hasSequentialRun(runes) {
		score -= 10
	}
	if hasRepeatedRun(runes) {
		score -= 10
	}
	lowered := strings.ToLower(s)
	for _, p := range commonPatterns {
		if strings.Contains(lowered, p) {
			score -= 20
			break
		}
	}

	return min(max(score, 0), 100)
}

// hasSequentialRun reports three consecutive code points stepping by exactly
// +1 or -1 ("abc", "321").
func hasSequentialRun(r []rune) bool {
	for i := 0; i+2 < len(r); i++ {
		d1, d2 := r[i+1]-r[i], r[i+2]-r[i+1]
		if d1 == d2 && (d1 == 1 || d1 == -1) {
			return true
		}
	}
	return false
}

func hasRepeatedRun(r []rune) bool {
	for i := 0; i+2 < len(r); i++ {
		if r[i] == r[i+1] && r[i+1] == r[i+2] {
			return true
		}
	}
	return false
}

// TierFor maps a score to its display tier.
func TierFor(score int) models.StrengthTier {
	switch {
	case score < 20:
		return models.VeryWeak
	case score < 40:
		return models.Weak
	case score < 60:
		return models.Medium
	case score < 80:
		return models.Strong
	default:
		return models.VeryStrong
	}
}

// Digest is a fast one-way fingerprint used to compare secrets without
// comparing plaintext. Digests must not be persisted.
func Digest(plaintext []byte) [sha256.Size]byte {
	return sha256.Sum256(plaintext)
}

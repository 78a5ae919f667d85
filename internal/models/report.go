package models

import "time"

// StrengthTier buckets a strength score for display.
type StrengthTier int

const (
	// VeryWeak covers scores in [0,20).
	VeryWeak StrengthTier = iota
	// Weak covers scores in [20,40).
	Weak
	// Medium covers scores in [40,60).
	Medium
	// Strong covers scores in [60,80).
	Strong
	// VeryStrong covers scores in [80,100].
	VeryStrong
)

func (t StrengthTier) String() string {
	switch t {
	case VeryWeak:
		return "very weak"
	case Weak:
		return "weak"
	case Medium:
		return "medium"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very strong"
	default:
		return "unknown"
	}
}

// CredentialSummary is the non-sensitive view of a credential used in reports.
type CredentialSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Username      string    `json:"username"`
	StrengthScore int       `json:"strength_score"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Summarize strips the sealed secret from c.
func Summarize(c Credential) CredentialSummary {
	return CredentialSummary{
		ID:            c.ID,
		Title:         c.Title,
		Username:      c.Username,
		StrengthScore: c.StrengthScore,
		UpdatedAt:     c.UpdatedAt,
	}
}

// SecurityReport aggregates weak, stale and reused credentials.
type SecurityReport struct {
	// Total is the number of credentials examined.
	Total int `json:"total"`
	// Weak lists credentials scoring below the weak threshold.
	Weak []CredentialSummary `json:"weak"`
	// Old lists credentials not updated within the configured age.
	Old []CredentialSummary `json:"old"`
	// Reused groups credentials that share the same secret.
	Reused [][]CredentialSummary `json:"reused"`
	// AverageScore is the mean strength score (0 for an empty vault).
	AverageScore float64 `json:"average_score"`
	// TierCounts counts credentials per strength tier.
	TierCounts map[StrengthTier]int `json:"tier_counts"`
	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`
	// Undecryptable lists credentials whose secret failed authentication and
	// so could not be checked for reuse.
	Undecryptable []CredentialSummary `json:"undecryptable"`
}

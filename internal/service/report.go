package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/passvault/internal/crypto"
	"github.com/atinyakov/passvault/internal/models"
)

// WeakThreshold is the strength score below which a secret is reported weak.
const WeakThreshold = 40

// BuildSecurityReport lists weak, old and reused secrets. Weak and old
// detection uses stored metadata only. Reuse detection opens every secret and
// compares SHA-256 digests held in memory for the duration of the call;
// secrets that fail to open are listed in Undecryptable instead.
func (s *VaultService) BuildSecurityReport(ctx context.Context) (models.SecurityReport, error) {
	creds := s.store.Credentials()
	now := s.now().UTC()

	report := models.SecurityReport{
		Total:         len(creds),
		Weak:          []models.CredentialSummary{},
		Old:           []models.CredentialSummary{},
		Reused:        [][]models.CredentialSummary{},
		TierCounts:    make(map[models.StrengthTier]int),
		GeneratedAt:   now,
		Undecryptable: []models.CredentialSummary{},
	}
	if len(creds) == 0 {
		return report, nil
	}

	sum := 0
	for _, c := range creds {
		sum += c.StrengthScore
		report.TierCounts[crypto.TierFor(c.StrengthScore)]++
		if c.StrengthScore < WeakThreshold {
			report.Weak = append(report.Weak, models.Summarize(c))
		}
		if now.Sub(c.UpdatedAt) > s.maxAge {
			report.Old = append(report.Old, models.Summarize(c))
		}
	}
	report.AverageScore = float64(sum) / float64(len(creds))

	reused, failed, err := s.reusedSecrets(creds)
	if err != nil {
		return models.SecurityReport{}, err
	}
	report.Reused = reused
	report.Undecryptable = failed

	byTitle := func(list []models.CredentialSummary) {
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Title) < strings.ToLower(list[j].Title)
		})
	}
	byTitle(report.Weak)
	byTitle(report.Old)
	byTitle(report.Undecryptable)
	return report, nil
}

func (s *VaultService) reusedSecrets(creds []models.Credential) ([][]models.CredentialSummary, []models.CredentialSummary, error) {
	key, err := s.keys.DataEncryptionKey()
	if err != nil {
		return nil, nil, fmt.Errorf("data key: %w", err)
	}
	defer key.Destroy()

	failed := []models.CredentialSummary{}
	groups := make(map[[32]byte][]models.CredentialSummary)
	for _, c := range creds {
		pt, err := crypto.Open(c.SecretCiphertext, key)
		if err != nil {
			s.log.Warn("secret failed authentication", zap.String("id", c.ID))
			failed = append(failed, models.Summarize(c))
			continue
		}
		d := crypto.Digest(pt)
		crypto.Zero(pt)
		groups[d] = append(groups[d], models.Summarize(c))
	}

	out := [][]models.CredentialSummary{}
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		sort.SliceStable(g, func(i, j int) bool {
			return strings.ToLower(g[i].Title) < strings.ToLower(g[j].Title)
		})
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i][0].Title) < strings.ToLower(out[j][0].Title)
	})
	return out, failed, nil
}

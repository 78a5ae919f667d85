package crypto

import (
	"testing"

	"github.com/atinyakov/passvault/internal/models"
)

func TestScorePasswordStrength(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "empty", in: "", want: 0},
		{name: "short lowercase", in: "abd", want: 15},
		{name: "eight lowercase", in: "xkqmzvbt", want: 25},
		{name: "common word", in: "password", want: 5},
		{name: "all classes sixteen", in: "Aa1!Aa1!Aa1!Aa1!", want: 90},
		{name: "ascending run", in: "xyzQ9!mw", want: 60},
		{name: "descending digits", in: "Kp!v321w", want: 60},
		{name: "repeated run", in: "Kp!vaaaw1", want: 60},
		{name: "everything penalised", in: "aaabcpassword", want: 0},
		{name: "mixed twelve", in: "Sup3rSecret!", want: 80},
		{name: "non ascii letters", in: "Пароль2024!", want: 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScorePasswordStrength(tt.in); got != tt.want {
				t.Errorf("ScorePasswordStrength(%q) = %d; want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	if got := ScorePasswordStrength("Aa1!Aa1!Aa1!Aa1!"); TierFor(got) != models.VeryStrong {
		t.Errorf("tier for %d = %v; want very strong", got, TierFor(got))
	}
	weak := ScorePasswordStrength("password")
	random := ScorePasswordStrength("xkqmzvbt")
	if weak >= random {
		t.Errorf("common pattern score %d not below random equal-length score %d", weak, random)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	for _, in := range []string{"", "a", "Sup3rSecret!!", "qwerty123456"} {
		if a, b := ScorePasswordStrength(in), ScorePasswordStrength(in); a != b {
			t.Errorf("score for %q not deterministic: %d vs %d", in, a, b)
		}
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score int
		want  models.StrengthTier
	}{
		{0, models.VeryWeak},
		{19, models.VeryWeak},
		{20, models.Weak},
		{39, models.Weak},
		{40, models.Medium},
		{59, models.Medium},
		{60, models.Strong},
		{79, models.Strong},
		{80, models.VeryStrong},
		{100, models.VeryStrong},
	}
	for _, tt := range tests {
		if got := TierFor(tt.score); got != tt.want {
			t.Errorf("TierFor(%d) = %v; want %v", tt.score, got, tt.want)
		}
	}
}

func TestDigestStable(t *testing.T) {
	if Digest([]byte("same")) != Digest([]byte("same")) {
		t.Fatal("digest of equal inputs differs")
	}
	if Digest([]byte("same")) == Digest([]byte("other")) {
		t.Fatal("digest of different inputs collides")
	}
}

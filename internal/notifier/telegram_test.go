package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/webdc/firstblood/internal/models"
)

func TestFormatCaption(t *testing.T) {
	t.Parallel()
	rec := models.FirstBlood{
		Date:                time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
		EventID:             1,
		ChallengeID:         5,
		ChallengeName:       "baby<pwn>",
		ChallengeCategory:   "pwn",
		ChallengeDifficulty: "easy",
		Username:            "alice",
	}

	got := formatCaption(rec)
	for _, want := range []string{
		"CHALLENGE SOLVED (FIRST BLOOD)",
		"baby&lt;pwn&gt;", // HTML-escaped challenge name
		"@alice",
		"12:30:45",
		"Category: pwn",
		"Difficulty: easy",
		"Good job!",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("caption missing %q:\n%s", want, got)
		}
	}
}

func TestFormatCaptionFallsBackToChallengeID(t *testing.T) {
	t.Parallel()
	rec := models.FirstBlood{ChallengeID: 42, Username: "bob", Date: time.Now()}

	got := formatCaption(rec)
	if !strings.Contains(got, "#42") {
		t.Fatalf("expected challenge id fallback in caption:\n%s", got)
	}
	if strings.Contains(got, "Category:") || strings.Contains(got, "Difficulty:") {
		t.Fatalf("empty optional fields must be omitted:\n%s", got)
	}
}

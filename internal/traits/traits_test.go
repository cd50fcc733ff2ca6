package traits

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kalambet/persona/internal/feature"
	"github.com/kalambet/persona/internal/storage"
)

func TestNeutral(t *testing.T) {
	n := Neutral()
	for name, v := range map[string]float64{
		"openness":            n.Openness,
		"conscientiousness":   n.Conscientiousness,
		"extraversion":        n.Extraversion,
		"agreeableness":       n.Agreeableness,
		"emotional_stability": n.EmotionalStability,
	} {
		if v != 0.5 {
			t.Errorf("%s = %v, want 0.5", name, v)
		}
	}
}

func TestValidateClampsOutOfRange(t *testing.T) {
	in := storage.Traits{
		Openness:           1.2,
		Conscientiousness:  -0.1,
		Extraversion:       0.7,
		Agreeableness:      0,
		EmotionalStability: 1,
	}
	out, err := Validate(in)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out.Openness != 1 || out.Conscientiousness != 0 {
		t.Errorf("clamp failed: %+v", out)
	}
	if out.Extraversion != 0.7 {
		t.Errorf("in-range value changed: %v", out.Extraversion)
	}
}

func TestValidateRejectsNonFinite(t *testing.T) {
	for name, v := range map[string]float64{
		"nan": math.NaN(),
		"inf": math.Inf(1),
	} {
		t.Run(name, func(t *testing.T) {
			in := Neutral()
			in.Agreeableness = v
			_, err := Validate(in)
			var verr *storage.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != "agreeableness" {
				t.Errorf("field = %q, want agreeableness", verr.Field)
			}
		})
	}
}

func TestDigestIsStable(t *testing.T) {
	ev := Evidence{
		Username: "ana",
		Features: feature.Features{
			UserTurns:     3,
			AvgMessageLen: 82,
			Questions:     2,
			Topics:        []string{"machine learning", "policy"},
			Communication: storage.Communication{
				Formality:        "casual",
				Verbosity:        "moderate",
				QuestioningStyle: "exploratory",
			},
		},
		Insights: storage.ResumeInsights{
			TotalAnalyses:    2,
			AverageScore:     76.5,
			ImprovementTrend: "improving",
		},
	}
	first := ev.Digest()
	if first != ev.Digest() {
		t.Fatal("digest is not deterministic")
	}
	for _, want := range []string{
		"user_turns: 3",
		"topics: machine learning, policy",
		"resume_trend: improving",
		"questioning_style: exploratory",
	} {
		if !strings.Contains(first, want) {
			t.Errorf("digest missing %q:\n%s", want, first)
		}
	}
}

func TestDigestOmitsEmptySections(t *testing.T) {
	d := Evidence{Username: "ana"}.Digest()
	if strings.Contains(d, "topics:") || strings.Contains(d, "resume_analyses:") {
		t.Errorf("digest includes empty sections:\n%s", d)
	}
}

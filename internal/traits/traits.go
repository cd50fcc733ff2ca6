// Package traits turns extracted behavioral evidence into Big Five style
// personality scores on a 0..1 scale. The model-backed scorer is best-effort:
// callers fall back to neutral or previously stored scores when it fails.
package traits

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kalambet/persona/internal/feature"
	"github.com/kalambet/persona/internal/storage"
)

// Evidence is the deterministic digest handed to a Scorer. It carries only
// reduced signals, never raw message text, so the same interaction log always
// produces the same digest.
type Evidence struct {
	Username string
	Features feature.Features
	Insights storage.ResumeInsights
}

// Scorer produces trait scores from evidence.
type Scorer interface {
	Score(ctx context.Context, ev Evidence) (storage.Traits, error)
}

// Neutral returns the midpoint profile used when no evidence or no scorer is
// available.
func Neutral() storage.Traits {
	return storage.Traits{
		Openness:           0.5,
		Conscientiousness:  0.5,
		Extraversion:       0.5,
		Agreeableness:      0.5,
		EmotionalStability: 0.5,
	}
}

// Validate checks scorer output. Finite values slightly outside 0..1 are
// clamped; NaN or infinite values reject the whole set since they indicate a
// malformed response rather than rounding noise.
func Validate(t storage.Traits) (storage.Traits, error) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"openness", &t.Openness},
		{"conscientiousness", &t.Conscientiousness},
		{"extraversion", &t.Extraversion},
		{"agreeableness", &t.Agreeableness},
		{"emotional_stability", &t.EmotionalStability},
	}
	for _, f := range fields {
		v := *f.value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return storage.Traits{}, &storage.ValidationError{
				Field:  f.name,
				Reason: "trait score is not a finite number",
			}
		}
		*f.value = clamp01(v)
	}
	return t, nil
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// Digest renders the evidence as a compact text block for the scoring prompt.
func (ev Evidence) Digest() string {
	var b strings.Builder
	fmt.Fprintf(&b, "user_turns: %d\n", ev.Features.UserTurns)
	fmt.Fprintf(&b, "avg_message_length: %.0f\n", ev.Features.AvgMessageLen)
	fmt.Fprintf(&b, "questions_asked: %d\n", ev.Features.Questions)
	fmt.Fprintf(&b, "formality: %s\n", ev.Features.Communication.Formality)
	fmt.Fprintf(&b, "verbosity: %s\n", ev.Features.Communication.Verbosity)
	fmt.Fprintf(&b, "questioning_style: %s\n", ev.Features.Communication.QuestioningStyle)
	if len(ev.Features.Topics) > 0 {
		fmt.Fprintf(&b, "topics: %s\n", strings.Join(ev.Features.Topics, ", "))
	}
	if ev.Insights.TotalAnalyses > 0 {
		fmt.Fprintf(&b, "resume_analyses: %d\n", ev.Insights.TotalAnalyses)
		fmt.Fprintf(&b, "resume_average_score: %.1f\n", ev.Insights.AverageScore)
		fmt.Fprintf(&b, "resume_trend: %s\n", ev.Insights.ImprovementTrend)
	}
	return b.String()
}

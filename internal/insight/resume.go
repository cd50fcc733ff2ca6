// Package insight reduces a user's resume-analysis records into trend
// statistics. The reduction is deterministic and side-effect free so it can
// be tested without any external dependency.
package insight

import (
	"math"

	"github.com/kalambet/persona/internal/storage"
)

// trendThreshold is the score delta (in points) that separates a real trend
// from noise. A delta of exactly the threshold counts as stable: the
// comparisons below are strict.
const trendThreshold = 3.0

// Aggregate reduces resume-analysis interactions (timestamp order) into
// ResumeInsights. Non-resume records are ignored, so callers may pass a
// user's full interaction log. Empty input yields TotalAnalyses 0 with an
// insufficient_data trend; that is a valid state, not an error.
func Aggregate(recs []storage.Interaction) storage.ResumeInsights {
	var analyses []*storage.ResumeAnalysis
	for i := range recs {
		if recs[i].Kind == storage.KindResume && recs[i].Resume != nil {
			analyses = append(analyses, recs[i].Resume)
		}
	}

	out := storage.ResumeInsights{
		TotalAnalyses:    len(analyses),
		ImprovementTrend: storage.TrendInsufficientData,
	}
	if len(analyses) == 0 {
		return out
	}

	var sum float64
	for _, a := range analyses {
		sum += a.Score
	}
	out.AverageScore = round1(sum / float64(len(analyses)))
	out.LatestScore = analyses[len(analyses)-1].Score
	out.TargetRoles = targetRoles(analyses)

	if len(analyses) >= 2 {
		out.ImprovementTrend = trend(analyses)
	}
	return out
}

// trend compares the recent half of the score sequence against the earlier
// half; with fewer than 4 records it falls back to last vs. first.
func trend(analyses []*storage.ResumeAnalysis) string {
	var earlier, later float64
	if len(analyses) < 4 {
		earlier = analyses[0].Score
		later = analyses[len(analyses)-1].Score
	} else {
		mid := len(analyses) / 2
		earlier = meanScore(analyses[:mid])
		later = meanScore(analyses[mid:])
	}

	delta := later - earlier
	switch {
	case delta > trendThreshold:
		return storage.TrendImproving
	case delta < -trendThreshold:
		return storage.TrendDeclining
	default:
		return storage.TrendStable
	}
}

func meanScore(analyses []*storage.ResumeAnalysis) float64 {
	var sum float64
	for _, a := range analyses {
		sum += a.Score
	}
	return sum / float64(len(analyses))
}

// targetRoles returns the distinct target roles, most recent first.
func targetRoles(analyses []*storage.ResumeAnalysis) []string {
	var roles []string
	seen := make(map[string]struct{})
	for i := len(analyses) - 1; i >= 0; i-- {
		role := analyses[i].TargetRole
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

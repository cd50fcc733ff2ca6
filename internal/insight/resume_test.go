package insight

import (
	"testing"
	"time"

	"github.com/kalambet/persona/internal/storage"
)

func analyses(scores []float64, role string) []storage.Interaction {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recs := make([]storage.Interaction, len(scores))
	for i, s := range scores {
		recs[i] = storage.Interaction{
			Username:  "ana",
			Kind:      storage.KindResume,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Resume:    &storage.ResumeAnalysis{Score: s, TargetRole: role},
		}
	}
	return recs
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	if got.TotalAnalyses != 0 {
		t.Errorf("expected 0 analyses, got %d", got.TotalAnalyses)
	}
	if got.ImprovementTrend != storage.TrendInsufficientData {
		t.Errorf("expected insufficient_data, got %q", got.ImprovementTrend)
	}
	if got.AverageScore != 0 || got.LatestScore != 0 || got.TargetRoles != nil {
		t.Errorf("expected zero-value fields, got %+v", got)
	}
}

func TestAggregateIgnoresChatRecords(t *testing.T) {
	recs := analyses([]float64{70}, "SRE")
	recs = append(recs, storage.Interaction{
		Username:  "ana",
		Kind:      storage.KindChat,
		Timestamp: time.Now(),
		Chat:      &storage.ChatTurn{Role: "user", Message: "hi"},
	})
	got := Aggregate(recs)
	if got.TotalAnalyses != 1 {
		t.Errorf("expected 1 analysis, got %d", got.TotalAnalyses)
	}
}

func TestAggregateAverage(t *testing.T) {
	got := Aggregate(analyses([]float64{70, 80, 90}, "Data Scientist"))
	if got.AverageScore != 80.0 {
		t.Errorf("expected average 80.0, got %v", got.AverageScore)
	}
	if got.LatestScore != 90 {
		t.Errorf("expected latest 90, got %v", got.LatestScore)
	}
}

func TestImprovementTrend(t *testing.T) {
	cases := []struct {
		name   string
		scores []float64
		want   string
	}{
		{"improving over four records", []float64{60, 65, 70, 85}, storage.TrendImproving},
		{"declining over four records", []float64{85, 70, 65, 60}, storage.TrendDeclining},
		{"single record", []float64{75}, storage.TrendInsufficientData},
		{"two records improving", []float64{60, 70}, storage.TrendImproving},
		{"two records declining", []float64{70, 60}, storage.TrendDeclining},
		{"two records flat", []float64{70, 71}, storage.TrendStable},
		{"delta exactly at threshold is stable", []float64{70, 73}, storage.TrendStable},
		{"delta just past threshold improves", []float64{70, 73.5}, storage.TrendImproving},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Aggregate(analyses(tc.scores, "Data Scientist"))
			if got.ImprovementTrend != tc.want {
				t.Errorf("scores %v: expected %q, got %q", tc.scores, tc.want, got.ImprovementTrend)
			}
		})
	}
}

func TestTargetRolesMostRecentFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recs := []storage.Interaction{
		{Kind: storage.KindResume, Timestamp: base, Resume: &storage.ResumeAnalysis{Score: 60, TargetRole: "Backend Engineer"}},
		{Kind: storage.KindResume, Timestamp: base.Add(time.Hour), Resume: &storage.ResumeAnalysis{Score: 65, TargetRole: "Data Scientist"}},
		{Kind: storage.KindResume, Timestamp: base.Add(2 * time.Hour), Resume: &storage.ResumeAnalysis{Score: 70, TargetRole: "Backend Engineer"}},
		{Kind: storage.KindResume, Timestamp: base.Add(3 * time.Hour), Resume: &storage.ResumeAnalysis{Score: 72}},
	}
	got := Aggregate(recs)
	want := []string{"Backend Engineer", "Data Scientist"}
	if len(got.TargetRoles) != len(want) {
		t.Fatalf("expected %v, got %v", want, got.TargetRoles)
	}
	for i := range want {
		if got.TargetRoles[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got.TargetRoles)
			break
		}
	}
}

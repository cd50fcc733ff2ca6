package narrative

import (
	"strings"
	"testing"
	"time"

	"github.com/kalambet/persona/internal/storage"
)

func sampleProfile() storage.Profile {
	return storage.Profile{
		Username:          "ana",
		Revision:          3,
		UpdatedAt:         time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		TotalInteractions: 7,
		DataAvailable:     true,
		TraitSource:       storage.TraitSourceModel,
		Traits: storage.Traits{
			Openness:           0.72,
			Conscientiousness:  0.55,
			Extraversion:       0.4,
			Agreeableness:      0.6,
			EmotionalStability: 0.5,
		},
		Communication: storage.Communication{
			Formality:        "casual",
			Verbosity:        "moderate",
			QuestioningStyle: "exploratory",
		},
		Topics: []string{"machine learning", "policy", "python", "sql", "design", "economics"},
		Skills: map[string]string{"python": "beginner", "machine learning": "intermediate"},
		Resume: storage.ResumeInsights{
			TotalAnalyses:    2,
			AverageScore:     76.5,
			LatestScore:      81,
			ImprovementTrend: storage.TrendImproving,
			TargetRoles:      []string{"Data Scientist", "ML Engineer", "Analyst", "Consultant"},
		},
		Recommendations: storage.Recommendations{
			LearningStyle: []string{"first rec", "second rec", "third rec"},
		},
	}
}

func TestPersonalizationContext(t *testing.T) {
	got := PersonalizationContext(sampleProfile())

	for _, want := range []string{
		"[PERSONALIZATION INSIGHTS:]",
		"[END PERSONALIZATION INSIGHTS]",
		"openness: 0.72",
		"Communication style: casual, moderate",
		"Learning recommendations: first rec; second rec",
		"Resume performance: 76.5% average score, improving trend",
		"Skill levels: machine learning: intermediate, python: beginner",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}

	// Topics are capped at five.
	if strings.Contains(got, "economics") {
		t.Errorf("context includes sixth topic:\n%s", got)
	}
	if strings.Contains(got, "third rec") {
		t.Errorf("context includes third learning recommendation:\n%s", got)
	}
}

func TestPersonalizationContextNoData(t *testing.T) {
	p := sampleProfile()
	p.DataAvailable = false
	if got := PersonalizationContext(p); got != "" {
		t.Errorf("expected empty context, got:\n%s", got)
	}
}

func TestResumeChatSummaryBands(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{85, "excellent shape"},
		{80, "excellent shape"},
		{72, "room for improvement"},
		{65, "needs some work"},
		{40, "significant improvements"},
	}
	for _, tc := range cases {
		p := sampleProfile()
		p.Resume.AverageScore = tc.score
		got := ResumeChatSummary(p)
		if !strings.Contains(got, tc.want) {
			t.Errorf("score %.0f: summary missing %q:\n%s", tc.score, tc.want, got)
		}
	}
}

func TestResumeChatSummaryTrendLine(t *testing.T) {
	p := sampleProfile()
	p.Resume.ImprovementTrend = storage.TrendDeclining
	if got := ResumeChatSummary(p); !strings.Contains(got, "back on track") {
		t.Errorf("declining summary missing encouragement:\n%s", got)
	}

	p.Resume.ImprovementTrend = storage.TrendStable
	if got := ResumeChatSummary(p); !strings.Contains(got, "Keep refining") {
		t.Errorf("stable summary missing encouragement:\n%s", got)
	}
}

func TestResumeChatSummaryNoAnalyses(t *testing.T) {
	p := sampleProfile()
	p.Resume = storage.ResumeInsights{}
	got := ResumeChatSummary(p)
	if !strings.Contains(got, "haven't uploaded any resume") {
		t.Errorf("missing guidance message:\n%s", got)
	}
}

func TestResumeChatSummaryTargetRolesCapped(t *testing.T) {
	got := ResumeChatSummary(sampleProfile())
	if !strings.Contains(got, "Data Scientist, ML Engineer, Analyst") {
		t.Errorf("missing top-3 target roles:\n%s", got)
	}
	if strings.Contains(got, "Consultant") {
		t.Errorf("summary includes fourth role:\n%s", got)
	}
}

func TestReport(t *testing.T) {
	got := Report(sampleProfile())
	for _, want := range []string{
		"Profile report for ana",
		"revision 3",
		"Interactions: 7",
		"openness:            0.72",
		"source: model",
		"first rec",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestReportNoData(t *testing.T) {
	p := storage.Profile{Username: "ghost"}
	got := Report(p)
	if !strings.Contains(got, "neutral defaults") {
		t.Errorf("report missing no-data note:\n%s", got)
	}
}

func TestGreeting(t *testing.T) {
	p := sampleProfile()
	if got := Greeting(p); !strings.Contains(got, "Hey ana!") || !strings.Contains(got, "machine learning") {
		t.Errorf("greeting = %q", got)
	}

	p.Communication.Formality = "formal"
	if got := Greeting(p); !strings.HasPrefix(got, "Hello ana,") {
		t.Errorf("formal greeting = %q", got)
	}

	p.DataAvailable = false
	if got := Greeting(p); got != "Hi ana!" {
		t.Errorf("no-data greeting = %q", got)
	}
}

func TestShouldPersonalize(t *testing.T) {
	p := sampleProfile()
	if !ShouldPersonalize(p) {
		t.Error("expected personalization at 7 interactions")
	}
	p.TotalInteractions = 4
	if ShouldPersonalize(p) {
		t.Error("did not expect personalization below threshold")
	}
}

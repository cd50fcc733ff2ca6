// Package narrative renders profile state as text for downstream
// consumers: a prompt-injection block for a chat assistant, a friendly
// resume summary, a plain report and a greeting. All functions are pure
// and operate on a profile snapshot.
package narrative

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/persona/internal/storage"
)

// personalizeThreshold is the minimum interaction count before a consumer
// should tailor responses to the profile.
const personalizeThreshold = 5

const (
	contextHeader = "[PERSONALIZATION INSIGHTS:]"
	contextFooter = "[END PERSONALIZATION INSIGHTS]"
)

// PersonalizationContext builds the context block a chat assistant injects
// into its prompt. Returns the empty string when the profile carries no
// usable data.
func PersonalizationContext(p storage.Profile) string {
	if !p.DataAvailable {
		return ""
	}

	parts := []string{"", contextHeader}

	parts = append(parts, fmt.Sprintf(
		"Personality traits: openness: %.2f, conscientiousness: %.2f, extraversion: %.2f, agreeableness: %.2f, emotional_stability: %.2f",
		p.Traits.Openness, p.Traits.Conscientiousness, p.Traits.Extraversion,
		p.Traits.Agreeableness, p.Traits.EmotionalStability))

	if p.Communication.Formality != "" || p.Communication.Verbosity != "" {
		parts = append(parts, fmt.Sprintf("Communication style: %s, %s",
			p.Communication.Formality, p.Communication.Verbosity))
	}

	if len(p.Topics) > 0 {
		parts = append(parts, "Topics of interest: "+strings.Join(firstN(p.Topics, 5), ", "))
	}

	if len(p.Skills) > 0 {
		parts = append(parts, "Skill levels: "+formatSkills(p))
	}

	if recs := firstN(p.Recommendations.LearningStyle, 2); len(recs) > 0 {
		parts = append(parts, "Learning recommendations: "+strings.Join(recs, "; "))
	}

	if p.Resume.TotalAnalyses > 0 {
		parts = append(parts, fmt.Sprintf("Resume performance: %.1f%% average score, %s trend",
			p.Resume.AverageScore, p.Resume.ImprovementTrend))
	}

	parts = append(parts, contextFooter, "")
	return strings.Join(parts, "\n")
}

// ResumeChatSummary formats resume insights as a short conversational
// paragraph, with a guidance message when no analyses exist yet.
func ResumeChatSummary(p storage.Profile) string {
	r := p.Resume
	if r.TotalAnalyses == 0 {
		return "You haven't uploaded any resume for analysis yet. " +
			"Would you like me to guide you through the Resume Analyzer module?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on your %d resume %s:\n\n", r.TotalAnalyses, plural(r.TotalAnalyses, "analysis", "analyses"))
	fmt.Fprintf(&b, "Average score: %.1f%%\n", r.AverageScore)
	fmt.Fprintf(&b, "Latest score: %.1f%%\n", r.LatestScore)
	fmt.Fprintf(&b, "Trend: %s\n", r.ImprovementTrend)
	if len(r.TargetRoles) > 0 {
		fmt.Fprintf(&b, "Target roles: %s\n", strings.Join(firstN(r.TargetRoles, 3), ", "))
	}
	b.WriteString("\n")

	switch {
	case r.AverageScore >= 80:
		b.WriteString("Your resume is in excellent shape! ")
	case r.AverageScore >= 70:
		b.WriteString("Your resume is good, with room for improvement. ")
	case r.AverageScore >= 60:
		b.WriteString("Your resume needs some work to stand out. ")
	default:
		b.WriteString("Your resume needs significant improvements. ")
	}

	switch r.ImprovementTrend {
	case storage.TrendImproving:
		b.WriteString("Great job on the improvements you've made!")
	case storage.TrendDeclining:
		b.WriteString("Let's work on getting your resume back on track.")
	default:
		b.WriteString("Keep refining your resume with each application.")
	}
	return b.String()
}

// Report renders the whole profile as indented plain text for the report
// endpoint and the CLI.
func Report(p storage.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile report for %s\n", p.Username)
	fmt.Fprintf(&b, "Updated: %s (revision %d)\n", p.UpdatedAt.Format("2006-01-02 15:04:05 MST"), p.Revision)
	fmt.Fprintf(&b, "Interactions: %d\n\n", p.TotalInteractions)

	if !p.DataAvailable {
		b.WriteString("Not enough interaction data yet; profile holds neutral defaults.\n")
		return b.String()
	}

	b.WriteString("Personality traits:\n")
	fmt.Fprintf(&b, "  openness:            %.2f\n", p.Traits.Openness)
	fmt.Fprintf(&b, "  conscientiousness:   %.2f\n", p.Traits.Conscientiousness)
	fmt.Fprintf(&b, "  extraversion:        %.2f\n", p.Traits.Extraversion)
	fmt.Fprintf(&b, "  agreeableness:       %.2f\n", p.Traits.Agreeableness)
	fmt.Fprintf(&b, "  emotional stability: %.2f\n", p.Traits.EmotionalStability)
	fmt.Fprintf(&b, "  source: %s\n\n", p.TraitSource)

	fmt.Fprintf(&b, "Communication: %s, %s, %s questions\n",
		p.Communication.Formality, p.Communication.Verbosity, p.Communication.QuestioningStyle)
	if len(p.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(p.Topics, ", "))
	}
	if len(p.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", formatSkills(p))
	}

	if p.Resume.TotalAnalyses > 0 {
		b.WriteString("\n")
		b.WriteString(ResumeChatSummary(p))
		b.WriteString("\n")
	}

	if recs := p.Recommendations.LearningStyle; len(recs) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, r := range recs {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
		for _, r := range p.Recommendations.CareerGuidance {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
		for _, r := range p.Recommendations.SkillDevelopment {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	return b.String()
}

// Greeting returns a short salutation matched to the user's formality and
// interests.
func Greeting(p storage.Profile) string {
	if !p.DataAvailable {
		return fmt.Sprintf("Hi %s!", p.Username)
	}

	greeting := fmt.Sprintf("Hey %s!", p.Username)
	if p.Communication.Formality == "formal" {
		greeting = fmt.Sprintf("Hello %s,", p.Username)
	}

	switch {
	case len(p.Topics) > 0:
		greeting += fmt.Sprintf(" Ready to explore %s today?", p.Topics[0])
	case p.Resume.TotalAnalyses > 0:
		greeting += " How can I help you with your academic or career goals today?"
	default:
		greeting += " What would you like to learn about today?"
	}
	return greeting
}

// ShouldPersonalize reports whether the profile carries enough signal for a
// consumer to tailor its responses.
func ShouldPersonalize(p storage.Profile) bool {
	return p.TotalInteractions >= personalizeThreshold
}

func formatSkills(p storage.Profile) string {
	names := make([]string, 0, len(p.Skills))
	for name := range p.Skills {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+": "+p.Skills[name])
	}
	return strings.Join(pairs, ", ")
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

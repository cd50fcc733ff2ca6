// Package recommend derives study and career guidance from a synthesized
// profile. Everything here is a pure rule table over trait thresholds,
// communication style and resume insights, so recommendations are fully
// reproducible from profile state.
package recommend

import (
	"fmt"
	"sort"

	"github.com/kalambet/persona/internal/storage"
)

const (
	highTrait = 0.7
	lowTrait  = 0.4
)

// Generate produces recommendations for the profile. Zero-value insights are
// fine: a user with no resume analyses still gets learning-style guidance.
func Generate(p storage.Profile) storage.Recommendations {
	return storage.Recommendations{
		LearningStyle:    learningStyle(p),
		CareerGuidance:   careerGuidance(p),
		SkillDevelopment: skillDevelopment(p),
	}
}

func learningStyle(p storage.Profile) []string {
	var out []string
	if p.Traits.Openness > highTrait {
		out = append(out, "Explore interdisciplinary topics and alternative approaches to keep engagement high.")
	}
	if p.Traits.Conscientiousness < lowTrait {
		out = append(out, "Follow a structured study plan with small, scheduled milestones.")
	}
	if p.Traits.Extraversion > highTrait {
		out = append(out, "Prefer group study, discussions and presenting your work to others.")
	}
	if p.Traits.EmotionalStability < lowTrait {
		out = append(out, "Set incremental goals and review progress often to build confidence.")
	}

	switch p.Communication.Verbosity {
	case "concise":
		out = append(out, "Short, focused exercises suit your communication style better than long-form material.")
	case "detailed":
		out = append(out, "In-depth tutorials and written deep dives match your detailed communication style.")
	}
	if p.Communication.QuestioningStyle == "exploratory" {
		out = append(out, "Open-ended projects reward your exploratory questioning style.")
	}

	if len(out) == 0 {
		out = append(out, "Mix reading, practice and discussion until a preferred learning style emerges.")
	}
	return out
}

func careerGuidance(p storage.Profile) []string {
	var out []string
	switch p.Resume.ImprovementTrend {
	case storage.TrendDeclining:
		out = append(out, "Recent resume scores are declining; revisit the structure and focus of your latest revisions.")
	case storage.TrendImproving:
		out = append(out, "Resume scores are improving; keep iterating on the same approach.")
	case storage.TrendInsufficientData:
		out = append(out, "Upload a few more resume versions to unlock trend-based guidance.")
	}
	if len(p.Resume.TargetRoles) > 0 {
		out = append(out, fmt.Sprintf("Tailor projects and coursework toward the %s role you are targeting.", p.Resume.TargetRoles[0]))
	}
	if len(out) == 0 {
		out = append(out, "Run a resume analysis to get career guidance grounded in concrete feedback.")
	}
	return out
}

func skillDevelopment(p storage.Profile) []string {
	var out []string
	for _, skill := range orderedSkills(p) {
		switch p.Skills[skill] {
		case "beginner":
			out = append(out, fmt.Sprintf("Take a foundational course in %s before moving to applied work.", skill))
		case "advanced":
			out = append(out, fmt.Sprintf("Build portfolio projects that showcase your advanced %s skills.", skill))
		default:
			out = append(out, fmt.Sprintf("Deepen %s through regular practice on progressively harder problems.", skill))
		}
	}
	if len(out) == 0 {
		out = append(out, "Keep chatting about the subjects you study so skill-level guidance can be personalized.")
	}
	return out
}

// orderedSkills lists skill names in topic-frequency order first, then the
// remainder alphabetically, keeping recommendation order deterministic.
func orderedSkills(p storage.Profile) []string {
	seen := make(map[string]bool, len(p.Skills))
	var skills []string
	for _, topic := range p.Topics {
		if _, ok := p.Skills[topic]; ok && !seen[topic] {
			seen[topic] = true
			skills = append(skills, topic)
		}
	}
	var rest []string
	for skill := range p.Skills {
		if !seen[skill] {
			rest = append(rest, skill)
		}
	}
	sort.Strings(rest)
	return append(skills, rest...)
}

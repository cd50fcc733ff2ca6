// Package feature reduces chat turns into discrete behavioral signals:
// topic frequencies, formality, verbosity, questioning style, and
// keyword-based skill hints. The reduction is rule-based on purpose: no
// external judgment call is made, so extraction is reproducible and
// independently testable.
package feature

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/persona/internal/storage"
)

// Verbosity buckets by mean message length in runes.
const (
	conciseMaxLen  = 60
	detailedMinLen = 200
)

// Features is the deterministic summary of a user's chat behavior.
type Features struct {
	UserTurns     int
	AvgMessageLen float64
	Questions     int

	TopicCounts   map[string]int
	Topics        []string // ordered by frequency, ties by first appearance
	Communication storage.Communication
	Skills        map[string]string // skill → beginner|intermediate|advanced
}

var casualMarkers = []string{
	"gonna", "wanna", "gotta", "kinda", "sorta", "yeah", "yep", "nope",
	"hey", "lol", "btw", "omg", "cool", "awesome", "stuff",
}

var formalMarkers = []string{
	"therefore", "furthermore", "moreover", "regarding", "hence",
	"consequently", "kindly", "nevertheless", "sincerely", "pursuant",
}

var openQuestionMarkers = []string{
	"why", "how", "what if", "tell me about", "could you explain",
	"what are the ways", "help me understand",
}

var directQuestionMarkers = []string{
	"is ", "are ", "do ", "does ", "can ", "will ", "when ", "where ",
	"which ", "who ",
}

// skillKeywords maps phrases seen in messages to a canonical skill name.
// Longer phrases are matched before their substrings.
var skillKeywords = map[string]string{
	"machine learning": "machine learning",
	"deep learning":    "machine learning",
	"data science":     "data science",
	"statistics":       "statistics",
	"python":           "python",
	"golang":           "go",
	"javascript":       "javascript",
	"sql":              "sql",
	"public policy":    "policy",
	"economics":        "economics",
	"marketing":        "marketing",
	"design":           "design",
	"research":         "research",
}

var beginnerCues = []string{
	"new to", "just started", "beginner", "never used", "learning the basics",
	"how do i start", "getting started",
}

var advancedCues = []string{
	"expert", "advanced", "years of experience", "in production",
	"optimized", "architected", "published",
}

// Extract reduces the user's chat turns (timestamp order) into Features.
// Assistant turns and resume records are skipped: only what the user wrote
// counts as behavioral signal.
func Extract(recs []storage.Interaction) Features {
	f := Features{
		TopicCounts: make(map[string]int),
		Skills:      make(map[string]string),
	}

	var (
		totalLen   int
		casualHits int
		formalHits int
		openHits   int
		directHits int
		topicOrder []string
	)

	for i := range recs {
		if recs[i].Kind != storage.KindChat || recs[i].Chat == nil || recs[i].Chat.Role != "user" {
			continue
		}
		turn := recs[i].Chat
		f.UserTurns++
		totalLen += utf8.RuneCountInString(turn.Message)

		lower := strings.ToLower(turn.Message)

		topics := declaredTopics(turn.Topics)
		if len(topics) == 0 {
			// No detected topics on the turn; fall back to keyword matches
			// in the message itself.
			topics = keywordTopics(lower)
		}
		for _, topic := range topics {
			if f.TopicCounts[topic] == 0 {
				topicOrder = append(topicOrder, topic)
			}
			f.TopicCounts[topic]++
		}

		casualHits += countMarkers(lower, casualMarkers) + strings.Count(lower, "'")
		formalHits += countMarkers(lower, formalMarkers)

		if strings.Contains(lower, "?") {
			f.Questions++
			if hasPrefixMarker(lower, openQuestionMarkers) {
				openHits++
			} else if hasPrefixMarker(lower, directQuestionMarkers) {
				directHits++
			}
		}

		for phrase, skill := range skillKeywords {
			if !strings.Contains(lower, phrase) {
				continue
			}
			level := "intermediate"
			if containsAny(lower, advancedCues) {
				level = "advanced"
			} else if containsAny(lower, beginnerCues) {
				level = "beginner"
			}
			f.Skills[skill] = level
		}
	}

	if f.UserTurns > 0 {
		f.AvgMessageLen = float64(totalLen) / float64(f.UserTurns)
	}

	f.Topics = orderTopics(f.TopicCounts, topicOrder)
	f.Communication = storage.Communication{
		Formality:        formality(casualHits, formalHits),
		Verbosity:        verbosity(f.AvgMessageLen),
		QuestioningStyle: questioningStyle(openHits, directHits),
	}
	return f
}

func formality(casual, formal int) string {
	if casual > formal {
		return "casual"
	}
	return "formal"
}

func verbosity(avgLen float64) string {
	switch {
	case avgLen == 0:
		return "moderate"
	case avgLen < conciseMaxLen:
		return "concise"
	case avgLen > detailedMinLen:
		return "detailed"
	default:
		return "moderate"
	}
}

func questioningStyle(open, direct int) string {
	if open > direct {
		return "exploratory"
	}
	return "direct"
}

func declaredTopics(raw []string) []string {
	var topics []string
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func keywordTopics(lower string) []string {
	seen := make(map[string]bool)
	var topics []string
	for phrase, skill := range skillKeywords {
		if strings.Contains(lower, phrase) && !seen[skill] {
			seen[skill] = true
			topics = append(topics, skill)
		}
	}
	sort.Strings(topics)
	return topics
}

// orderTopics sorts topics by descending frequency; ties keep first-mention
// order so the output is stable across runs.
func orderTopics(counts map[string]int, firstSeen []string) []string {
	pos := make(map[string]int, len(firstSeen))
	for i, t := range firstSeen {
		pos[t] = i
	}
	topics := append([]string(nil), firstSeen...)
	sort.SliceStable(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return pos[topics[i]] < pos[topics[j]]
	})
	return topics
}

func countMarkers(s string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(s, m)
	}
	return n
}

func hasPrefixMarker(s string, markers []string) bool {
	for _, m := range markers {
		if strings.HasPrefix(s, m) || strings.Contains(s, " "+m) {
			return true
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

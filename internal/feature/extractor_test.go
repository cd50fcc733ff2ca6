package feature

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/persona/internal/storage"
)

func userTurn(message string, topics ...string) storage.Interaction {
	return storage.Interaction{
		Username:  "ana",
		Kind:      storage.KindChat,
		Timestamp: time.Now().UTC(),
		Chat:      &storage.ChatTurn{Role: "user", Message: message, Topics: topics},
	}
}

func assistantTurn(message string) storage.Interaction {
	rec := userTurn(message)
	rec.Chat.Role = "assistant"
	return rec
}

func TestExtractEmpty(t *testing.T) {
	f := Extract(nil)
	if f.UserTurns != 0 || len(f.Topics) != 0 || len(f.Skills) != 0 {
		t.Fatalf("expected zero features, got %+v", f)
	}
	if f.Communication.Verbosity != "moderate" {
		t.Errorf("verbosity = %q, want moderate", f.Communication.Verbosity)
	}
}

func TestExtractSkipsAssistantAndResume(t *testing.T) {
	recs := []storage.Interaction{
		assistantTurn("Machine learning is a broad field, let me explain."),
		{
			Username:  "ana",
			Kind:      storage.KindResume,
			Timestamp: time.Now().UTC(),
			Resume:    &storage.ResumeAnalysis{Score: 80},
		},
		userTurn("tell me about machine learning?", "machine learning"),
	}
	f := Extract(recs)
	if f.UserTurns != 1 {
		t.Fatalf("UserTurns = %d, want 1", f.UserTurns)
	}
	if f.TopicCounts["machine learning"] != 1 {
		t.Errorf("topic count = %d, want 1", f.TopicCounts["machine learning"])
	}
}

func TestTopicOrderByFrequency(t *testing.T) {
	recs := []storage.Interaction{
		userTurn("q1?", "policy"),
		userTurn("q2?", "machine learning"),
		userTurn("q3?", "machine learning"),
	}
	f := Extract(recs)
	want := []string{"machine learning", "policy"}
	if !reflect.DeepEqual(f.Topics, want) {
		t.Errorf("Topics = %v, want %v", f.Topics, want)
	}
}

func TestTopicTieKeepsFirstMentionOrder(t *testing.T) {
	recs := []storage.Interaction{
		userTurn("q1?", "policy"),
		userTurn("q2?", "design"),
	}
	f := Extract(recs)
	want := []string{"policy", "design"}
	if !reflect.DeepEqual(f.Topics, want) {
		t.Errorf("Topics = %v, want %v", f.Topics, want)
	}
}

func TestTopicKeywordFallback(t *testing.T) {
	f := Extract([]storage.Interaction{
		userTurn("I want to learn more about machine learning and python."),
	})
	if f.TopicCounts["machine learning"] != 1 || f.TopicCounts["python"] != 1 {
		t.Errorf("fallback topics = %v", f.TopicCounts)
	}
}

func TestFormality(t *testing.T) {
	casual := Extract([]storage.Interaction{
		userTurn("hey, gonna need help with this, it's kinda confusing lol"),
	})
	if got := casual.Communication.Formality; got != "casual" {
		t.Errorf("formality = %q, want casual", got)
	}

	formal := Extract([]storage.Interaction{
		userTurn("Regarding the proposal, could you therefore summarize the findings."),
	})
	if got := formal.Communication.Formality; got != "formal" {
		t.Errorf("formality = %q, want formal", got)
	}
}

func TestVerbosityBuckets(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{"concise", "short question?", "concise"},
		{"moderate", strings.Repeat("x", 100), "moderate"},
		{"detailed", strings.Repeat("x", 250), "detailed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := Extract([]storage.Interaction{userTurn(tc.message)})
			if got := f.Communication.Verbosity; got != tc.want {
				t.Errorf("verbosity = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestQuestioningStyle(t *testing.T) {
	open := Extract([]storage.Interaction{
		userTurn("why does regularization help?"),
		userTurn("how would I structure this project?"),
		userTurn("is this correct?"),
	})
	if got := open.Communication.QuestioningStyle; got != "exploratory" {
		t.Errorf("style = %q, want exploratory", got)
	}

	direct := Extract([]storage.Interaction{
		userTurn("is this correct?"),
		userTurn("can I use sql here?"),
	})
	if got := direct.Communication.QuestioningStyle; got != "direct" {
		t.Errorf("style = %q, want direct", got)
	}
}

func TestSkillLevels(t *testing.T) {
	f := Extract([]storage.Interaction{
		userTurn("I'm new to python, how do I start?"),
		userTurn("I have years of experience with sql in production."),
		userTurn("I use javascript sometimes."),
	})
	want := map[string]string{
		"python":     "beginner",
		"sql":        "advanced",
		"javascript": "intermediate",
	}
	if !reflect.DeepEqual(f.Skills, want) {
		t.Errorf("Skills = %v, want %v", f.Skills, want)
	}
}

func TestAvgMessageLen(t *testing.T) {
	f := Extract([]storage.Interaction{
		userTurn(strings.Repeat("a", 40)),
		userTurn(strings.Repeat("a", 60)),
	})
	if f.AvgMessageLen != 50 {
		t.Errorf("AvgMessageLen = %v, want 50", f.AvgMessageLen)
	}
	if f.Questions != 0 {
		t.Errorf("Questions = %d, want 0", f.Questions)
	}
}

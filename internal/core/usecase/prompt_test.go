package usecase

import (
	"strings"
	"testing"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

func TestBuildAnswerPromptGroupsByLabel(t *testing.T) {
	prompt := buildAnswerPrompt(promptInput{
		Query: "what is grace",
		Sources: []domain.RetrievedSentence{
			{Text: "a primary hit", SourceLabel: "pure semantic"},
			{Text: "another primary hit", SourceLabel: "pure semantic"},
			{Text: "a keyword hit", SourceLabel: "keyword combination"},
		},
	})

	if !strings.Contains(prompt, "Question: what is grace") {
		t.Fatalf("missing question: %s", prompt)
	}
	if !strings.Contains(prompt, "[pure semantic]") || !strings.Contains(prompt, "[keyword combination]") {
		t.Fatalf("missing group headers: %s", prompt)
	}
	if strings.Count(prompt, "[pure semantic]") != 1 {
		t.Fatalf("group header repeated: %s", prompt)
	}
	if !strings.Contains(prompt, "1. a primary hit") || !strings.Contains(prompt, "3. a keyword hit") {
		t.Fatalf("missing numbered sources: %s", prompt)
	}
}

func TestBuildAnswerPromptCustomPromptReplacesInstruction(t *testing.T) {
	prompt := buildAnswerPrompt(promptInput{
		Query:        "q",
		CustomPrompt: "Answer in one short sentence.",
	})

	if !strings.Contains(prompt, "Answer in one short sentence.") {
		t.Fatalf("missing custom prompt: %s", prompt)
	}
	if strings.Contains(prompt, "ONLY the provided source sentences") {
		t.Fatalf("default instruction leaked: %s", prompt)
	}
}

func TestBuildAnswerPromptIncludesQuestionVariants(t *testing.T) {
	prompt := buildAnswerPrompt(promptInput{
		Query:            "what is grace",
		QuestionVariants: "1. How is grace defined?\n2. What does grace mean?",
	})

	if !strings.Contains(prompt, "Question variations:\n1. How is grace defined?\n2. What does grace mean?") {
		t.Fatalf("missing question variations block: %s", prompt)
	}

	without := buildAnswerPrompt(promptInput{Query: "what is grace"})
	if strings.Contains(without, "Question variations:") {
		t.Fatalf("variations block rendered without variants: %s", without)
	}
}

func TestBuildAnswerPromptContinueMode(t *testing.T) {
	prompt := buildAnswerPrompt(promptInput{
		Query:         "q",
		ContinueMode:  true,
		ContinueCount: 2,
	})

	if !strings.Contains(prompt, "follow-up #2") {
		t.Fatalf("missing follow-up marker: %s", prompt)
	}
	if !strings.Contains(prompt, "NEW material") {
		t.Fatalf("missing continuation instruction: %s", prompt)
	}
}

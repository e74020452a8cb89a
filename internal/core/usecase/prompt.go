package usecase

import (
	"fmt"
	"strings"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

// promptInput is everything the answer prompt is assembled from.
type promptInput struct {
	Query            string
	Sources          []domain.RetrievedSentence
	QuestionVariants string
	KeywordMeaning   string
	CustomPrompt     string
	ContinueMode     bool
	ContinueCount    int
}

// buildAnswerPrompt renders the generation prompt: retrieved sentences
// grouped by the strategy that found them, primary semantic hits first,
// with continuation context when the caller is asking for more.
func buildAnswerPrompt(in promptInput) string {
	var b strings.Builder

	if in.CustomPrompt != "" {
		b.WriteString(strings.TrimSpace(in.CustomPrompt))
		b.WriteString("\n\n")
	} else {
		b.WriteString("Answer the question using ONLY the provided source sentences. ")
		b.WriteString("Cite sentences by their number. If the sources do not contain ")
		b.WriteString("the answer, say so plainly.\n\n")
	}

	fmt.Fprintf(&b, "Question: %s\n\n", in.Query)

	if in.QuestionVariants != "" {
		fmt.Fprintf(&b, "Question variations:\n%s\n\n", in.QuestionVariants)
	}

	if in.KeywordMeaning != "" {
		fmt.Fprintf(&b, "Context on the key terms:\n%s\n\n", in.KeywordMeaning)
	}

	b.WriteString("Source sentences:\n")
	lastLabel := ""
	for i, src := range in.Sources {
		if src.SourceLabel != lastLabel {
			fmt.Fprintf(&b, "\n[%s]\n", src.SourceLabel)
			lastLabel = src.SourceLabel
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, src.Text)
	}

	if in.ContinueMode {
		fmt.Fprintf(&b, "\nThis is follow-up #%d on the same question. ", in.ContinueCount)
		b.WriteString("The sentences above are NEW material the reader has not seen. ")
		b.WriteString("Add to the previous answers without restating them.\n")
	}

	return b.String()
}

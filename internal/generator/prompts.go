package generator

import (
	"fmt"
	"strings"

	"github.com/prepdesk/prepdesk-backend/internal/exam"
)

// topicGuidance holds per-topic prompt hints. Topics are configuration, not
// code paths: unknown topics fall back to generic guidance.
var topicGuidance = map[string]string{
	"aptitude":  "Cover quantitative reasoning, logical puzzles, data interpretation, and number series.",
	"technical": "Cover programming fundamentals, data structures, algorithms, and operating systems. Code snippets in the question body are welcome.",
	"verbal":    "Cover reading comprehension, grammar, vocabulary, and sentence correction. Short reading passages may be embedded in the question body.",
}

func buildGenerationPrompt(topic string, count int) string {
	var sb strings.Builder
	sb.WriteString("You are an exam question writer for a mock-test platform.\n\n")
	sb.WriteString(fmt.Sprintf("Write exactly %d multiple-choice questions on the topic %q.\n", count, topic))

	if guidance, ok := topicGuidance[strings.ToLower(topic)]; ok {
		sb.WriteString(guidance + "\n")
	} else {
		sb.WriteString("Questions should test practical understanding of the topic at an entry-level job screening standard.\n")
	}

	sb.WriteString("\nRULES:\n")
	sb.WriteString(fmt.Sprintf("- Every question has exactly %d options.\n", exam.OptionCount))
	sb.WriteString("- correct_answer must be copied verbatim from the options.\n")
	sb.WriteString("- Options must be non-empty and plausible; only one may be correct.\n")
	sb.WriteString("- Do not number the questions or the options.\n")
	sb.WriteString("\nRespond ONLY with a JSON object of this shape:\n")
	sb.WriteString(`{"questions": [{"question": "<body>", "options": ["<a>", "<b>", "<c>", "<d>"], "correct_answer": "<one of the options>", "topic": "<topic>"}]}`)
	sb.WriteString("\n")

	return sb.String()
}

package questionsource

import (
	"fmt"
	"strings"
)

const systemPrompt = `You write multiple-choice quizzes from course material.
Reply with JSON only, in exactly this shape:
{"student_id": "<id>", "questions": [{"question": "<text>", "options": ["<a>", "<b>", "<c>", "<d>"], "answer": "<one of the options>", "topic": "<topic>"}]}
Rules:
- Every question has exactly 4 distinct options and the answer is copied verbatim from them.
- The question text holds only the question, never the student id.
- Give every question a short topic name taken from the material.
- Difficulty runs from 0 (very easy) to 1 (hardest); 0.5 is a normal level.
- Vary length and style; numerical questions are welcome when the material allows.`

// buildUserPrompt renders the per-student instruction and the material.
func buildUserPrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d questions for student_id %q at difficulty %.2f.\n", req.Count, req.StudentID, req.Difficulty)
	if len(req.FocusTopics) > 0 {
		fmt.Fprintf(&b, "The student is weak on: %s. Favour these topics where the material covers them.\n", strings.Join(req.FocusTopics, ", "))
	}
	b.WriteString("\nMaterial:\n")
	b.WriteString(req.Material)
	return b.String()
}

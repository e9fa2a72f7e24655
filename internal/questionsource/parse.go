package questionsource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-assess/internal/assessment"
)

// payloadSchema is the shape the model must return.
const payloadSchema = `{
  "type": "object",
  "required": ["student_id", "questions"],
  "properties": {
    "student_id": {"type": "string"},
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "options", "answer", "topic"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "options": {
            "type": "array",
            "minItems": 4,
            "maxItems": 4,
            "uniqueItems": true,
            "items": {"type": "string"}
          },
          "answer": {"type": "string"},
          "topic": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var schema = mustSchema(payloadSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile question schema: %v", err))
	}
	return s
}

type payload struct {
	StudentID string                `json:"student_id"`
	Questions []assessment.Question `json:"questions"`
}

// StripFences removes a surrounding Markdown code fence, with or without a
// language tag.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Parse decodes and validates a model response for req. Every failure wraps
// assessment.ErrGenerationFormat.
func Parse(raw string, req GenerateRequest) (assessment.QuestionSet, error) {
	body := []byte(StripFences(raw))

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %v: %w", err, assessment.ErrGenerationFormat)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("schema: %s: %w", strings.Join(msgs, "; "), assessment.ErrGenerationFormat)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %v: %w", err, assessment.ErrGenerationFormat)
	}
	if p.StudentID != req.StudentID {
		return nil, fmt.Errorf("payload is for student %q, want %q: %w", p.StudentID, req.StudentID, assessment.ErrGenerationFormat)
	}
	if len(p.Questions) != req.Count {
		return nil, fmt.Errorf("got %d questions, want %d: %w", len(p.Questions), req.Count, assessment.ErrGenerationFormat)
	}

	set := assessment.QuestionSet(p.Questions)
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, assessment.ErrGenerationFormat)
	}
	return set, nil
}

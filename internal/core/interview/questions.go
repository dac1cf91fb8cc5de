package interview

import (
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"

	"github.com/agenthands/persona/internal/core/model"
)

// NamePlaceholder is the token in question text replaced with the
// participant's first name.
const NamePlaceholder = "<participant's name>"

// LoadQuestions reads the scripted question list. The list carries a fixed
// convention: entry 0 is the introduction, the last entry is the conclusion,
// and total_questions reported to clients is len(questions)-2. Lists too short
// to satisfy the convention are rejected here instead of producing silently
// wrong counts later.
func LoadQuestions(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read questions file", goerr.V("path", path))
	}

	var questions []model.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, goerr.Wrap(err, "failed to parse questions file", goerr.V("path", path))
	}

	if len(questions) < 3 {
		return nil, goerr.New("questions list needs an introduction, at least one question, and a conclusion",
			goerr.V("count", len(questions)))
	}
	return questions, nil
}

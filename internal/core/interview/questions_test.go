package interview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQuestions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadQuestions(t *testing.T) {
	path := writeQuestions(t, `[
		{"question": "Hello <participant's name>!", "timeLimit": 60},
		{"question": "Tell me about yourself.", "timeLimit": 300},
		{"question": "Anything else?", "timeLimit": 120}
	]`)

	questions, err := LoadQuestions(path)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, "Hello <participant's name>!", questions[0].Text)
	assert.Equal(t, 300, questions[1].TimeLimit)
}

func TestLoadQuestionsErrors(t *testing.T) {
	_, err := LoadQuestions(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadQuestions(writeQuestions(t, `{not json`))
	assert.Error(t, err)

	// Fewer than three entries cannot carry the intro + conclusion convention.
	_, err = LoadQuestions(writeQuestions(t, `[{"question": "only one", "timeLimit": 60}]`))
	assert.Error(t, err)
}

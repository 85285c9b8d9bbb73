package tasks

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronzipp/impostor-bot/internal/models"
)

func TestGenerateProducesValidTasks(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(1)))

	seen := make(map[models.TaskType]bool)
	ids := make(map[string]bool)
	for i := 0; i < 200; i++ {
		task := gen.Generate()

		assert.NotEmpty(t, task.ID)
		assert.False(t, ids[task.ID], "task id %q repeated", task.ID)
		ids[task.ID] = true

		assert.NotEmpty(t, task.Question)
		assert.NotEmpty(t, task.Answer)
		assert.False(t, task.Completed)
		assert.True(t, Validate(task, task.Answer), "canonical answer must validate for %q", task.Question)

		seen[task.Type] = true
	}

	// With 200 draws every generator should have fired.
	for _, typ := range taskTypes {
		assert.True(t, seen[typ], "generator %s never selected", typ)
	}
}

func TestPinTaskFormat(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(7)))
	pinRe := regexp.MustCompile(`^\d{4}$`)

	for i := 0; i < 50; i++ {
		task := gen.pin()
		require.Regexp(t, pinRe, task.Answer)
		assert.Contains(t, task.Question, task.Answer)
	}
}

func TestMathTaskAnswerIsCorrect(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(7)))

	for i := 0; i < 100; i++ {
		task := gen.math()

		var a, b int
		var op string
		_, err := fmt.Sscanf(task.Question, "Solve: %d %s %d", &a, &op, &b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a, 10)
		assert.LessOrEqual(t, a, 109)
		assert.GreaterOrEqual(t, b, 1)
		assert.LessOrEqual(t, b, 50)

		want := a + b
		if op == "-" {
			want = a - b
		}
		assert.Equal(t, strconv.Itoa(want), task.Answer)
	}
}

func TestCountTaskAnswerMatchesWordLength(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(3)))

	task := gen.count()
	start := strings.Index(task.Question, `"`)
	end := strings.LastIndex(task.Question, `"`)
	require.Greater(t, end, start)
	word := task.Question[start+1 : end]
	assert.Equal(t, strconv.Itoa(len(word)), task.Answer)
}

func TestValidateNormalizes(t *testing.T) {
	task := models.Task{Type: models.TaskWord, Answer: "protocol"}

	assert.True(t, Validate(task, "protocol"))
	assert.True(t, Validate(task, "  PROTOCOL  "))
	assert.True(t, Validate(task, "Protocol\n"))
	assert.False(t, Validate(task, "protocols"))
	assert.False(t, Validate(task, ""))
}

// Package tasks produces the puzzle challenges crew members solve during the
// task phase. Generation is pure aside from the injected random source; every
// task embeds its canonical answer at creation time.
package tasks

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aaronzipp/impostor-bot/internal/models"
)

var words = []string{
	"equilibrium",
	"xenolith",
	"protocol",
	"algorithm",
	"synthesis",
	"quantum",
	"momentum",
	"velocity",
	"architecture",
	"compilation",
}

var scrambledWords = []struct {
	scrambled string
	answer    string
}{
	{"PMUJ", "jump"},
	{"EKIB", "bike"},
	{"DOCE", "code"},
	{"RATS", "star"},
	{"NOOM", "moon"},
}

var taskTypes = []models.TaskType{
	models.TaskPIN,
	models.TaskWord,
	models.TaskMath,
	models.TaskUnscramble,
	models.TaskCount,
}

// Generator creates tasks from an injected random source so outcomes are
// reproducible under test.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate returns one task chosen uniformly at random from the five
// generators.
func (g *Generator) Generate() models.Task {
	switch taskTypes[g.rng.Intn(len(taskTypes))] {
	case models.TaskPIN:
		return g.pin()
	case models.TaskWord:
		return g.word()
	case models.TaskMath:
		return g.math()
	case models.TaskUnscramble:
		return g.unscramble()
	default:
		return g.count()
	}
}

func (g *Generator) pin() models.Task {
	pin := fmt.Sprintf("%04d", 1000+g.rng.Intn(9000))
	return models.Task{
		ID:       taskID(models.TaskPIN),
		Type:     models.TaskPIN,
		Question: fmt.Sprintf("Enter PIN: %s", pin),
		Answer:   pin,
	}
}

func (g *Generator) word() models.Task {
	word := words[g.rng.Intn(len(words))]
	return models.Task{
		ID:       taskID(models.TaskWord),
		Type:     models.TaskWord,
		Question: fmt.Sprintf("Type this word: %s", word),
		Answer:   strings.ToLower(word),
	}
}

func (g *Generator) math() models.Task {
	a := 10 + g.rng.Intn(100)
	b := 1 + g.rng.Intn(50)
	op := "+"
	answer := a + b
	if g.rng.Intn(2) == 0 {
		op = "-"
		answer = a - b
	}
	return models.Task{
		ID:       taskID(models.TaskMath),
		Type:     models.TaskMath,
		Question: fmt.Sprintf("Solve: %d %s %d", a, op, b),
		Answer:   fmt.Sprintf("%d", answer),
	}
}

func (g *Generator) unscramble() models.Task {
	pair := scrambledWords[g.rng.Intn(len(scrambledWords))]
	return models.Task{
		ID:       taskID(models.TaskUnscramble),
		Type:     models.TaskUnscramble,
		Question: fmt.Sprintf("Unscramble: %s", pair.scrambled),
		Answer:   pair.answer,
	}
}

func (g *Generator) count() models.Task {
	word := words[g.rng.Intn(len(words))]
	return models.Task{
		ID:       taskID(models.TaskCount),
		Type:     models.TaskCount,
		Question: fmt.Sprintf("How many letters are in %q?", word),
		Answer:   fmt.Sprintf("%d", len(word)),
	}
}

// Validate compares a submitted answer against the task's canonical answer,
// case-insensitively after trimming whitespace.
func Validate(task models.Task, answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(task.Answer))
}

// taskID builds an id unique within a game session, so multiple tasks
// assigned to the same player stay distinguishable.
func taskID(t models.TaskType) string {
	return fmt.Sprintf("%s-%d-%s", strings.ToLower(string(t)), time.Now().UnixMilli(), uuid.NewString()[:8])
}

package models

// TaskType identifies which of the task generators produced a task.
type TaskType string

const (
	TaskPIN        TaskType = "PIN"
	TaskWord       TaskType = "WORD"
	TaskMath       TaskType = "MATH"
	TaskUnscramble TaskType = "UNSCRAMBLE"
	TaskCount      TaskType = "COUNT"
)

// Task is a single puzzle assigned to a player. The canonical answer is
// embedded at creation time; comparison is case-insensitive.
type Task struct {
	ID        string
	Type      TaskType
	Question  string
	Answer    string
	Completed bool
}

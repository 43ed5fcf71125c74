// Package habit holds the task-list / completed-counter state machine.
//
// The counter means: number of tasks ever completed and not since deleted
// while completed. Both the remote habit document and the local mirror row
// move through the same table, so they cannot drift by applying different
// rules to the same operation.
package habit

import (
	"fmt"
	"strings"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
)

// Op is a habit mutation.
type Op int

const (
	OpAdd Op = iota + 1
	OpComplete
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpComplete:
		return "complete"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// listChange describes what a transition does to the task list.
type listChange int

const (
	keepList listChange = iota
	appendTask
	removeTask
)

type rule struct {
	list  listChange
	delta int
}

type key struct {
	op      Op
	present bool
}

// table is the single source of truth for counter accounting.
var table = map[key]rule{
	{OpAdd, false}:      {list: appendTask, delta: 0},
	{OpAdd, true}:       {list: appendTask, delta: 0},
	{OpComplete, true}:  {list: removeTask, delta: +1},
	{OpComplete, false}: {list: keepList, delta: 0},
	{OpDelete, true}:    {list: removeTask, delta: -1},
	{OpDelete, false}:   {list: keepList, delta: 0},
}

// Outcome reports what Apply did.
type Outcome struct {
	Present bool // task was in the list before the transition
	Delta   int  // applied change to CompletedTasks
}

// Apply runs op for task against h and returns the new state. h is not
// modified. Removal drops every occurrence of task. The counter never goes
// below zero.
func Apply(h model.Habit, op Op, task string) (model.Habit, Outcome, error) {
	if strings.TrimSpace(task) == "" {
		return h, Outcome{}, fmt.Errorf("%w: empty task", errs.ErrInvalid)
	}

	present := contains(h.Tasks, task)
	r, ok := table[key{op, present}]
	if !ok {
		return h, Outcome{}, fmt.Errorf("%w: unknown habit op %v", errs.ErrInvalid, op)
	}

	next := model.Habit{UID: h.UID, CompletedTasks: h.CompletedTasks}
	switch r.list {
	case appendTask:
		next.Tasks = append(append(make([]string, 0, len(h.Tasks)+1), h.Tasks...), task)
	case removeTask:
		next.Tasks = remove(h.Tasks, task)
	default:
		next.Tasks = append(make([]string, 0, len(h.Tasks)), h.Tasks...)
	}

	applied := r.delta
	if next.CompletedTasks+applied < 0 {
		applied = -next.CompletedTasks
	}
	next.CompletedTasks += applied

	return next, Outcome{Present: present, Delta: applied}, nil
}

func contains(tasks []string, task string) bool {
	for _, t := range tasks {
		if t == task {
			return true
		}
	}
	return false
}

func remove(tasks []string, task string) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t != task {
			out = append(out, t)
		}
	}
	return out
}

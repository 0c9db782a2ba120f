// Package notebook serves notebook reads and writes, memoizing the
// unfiltered list queries in named cache slots.
package notebook

import (
	"strings"
	"unicode/utf8"

	"github.com/jmgilman/go/errors"
)

// Notebook is the flat view of a notebook row.
type Notebook struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	TaskID  *int64  `json:"taskId"`
	TagIDs  []int64 `json:"tagIds"`
}

// Tag is a label attached to notebooks.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TaskRef is the task a notebook belongs to.
type TaskRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Full is a notebook with its task and tags resolved.
type Full struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Task    *TaskRef `json:"task"`
	Tags    []Tag    `json:"tags"`
}

// Input is the body of a create or update request.
type Input struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	TaskID  *int64  `json:"taskId"`
	TagIDs  []int64 `json:"tagIds"`
}

const (
	minTitleLen = 3
	maxTitleLen = 255
)

// Validate reports every problem with in as one CodeInvalidInput error.
func (in Input) Validate() error {
	var problems []string

	title := strings.TrimSpace(in.Title)
	switch n := utf8.RuneCountInString(title); {
	case n == 0:
		problems = append(problems, "title cannot be empty")
	case n < minTitleLen || n > maxTitleLen:
		problems = append(problems, "title must be between 3 and 255 characters")
	}
	if strings.TrimSpace(in.Content) == "" {
		problems = append(problems, "content cannot be empty")
	}

	if len(problems) > 0 {
		return errors.New(errors.CodeInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

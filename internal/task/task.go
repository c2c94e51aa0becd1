package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/task-dashboard/internal/auth"
	taskDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/task"
	"gorm.io/datatypes"
)

// Status is the canonical task workflow state. Any status may move to any
// other status.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"

	InitialStatus = StatusTodo
)

// LegacyStatusMapping translates the creation-form and board vocabularies
// into the canonical enum.
var LegacyStatusMapping = map[string]Status{
	"pending":     StatusTodo,
	"in-progress": StatusInProgress,
	"completed":   StatusDone,

	"To Do":       StatusTodo,
	"In Progress": StatusInProgress,
	"In Review":   StatusInReview,
	"Done":        StatusDone,
}

func AllStatuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone}
}

func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

// Label is the board column name.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusInReview:
		return "In Review"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// ParseStatus accepts canonical values and the legacy vocabularies.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if st := Status(s); st.IsValid() {
		return st, nil
	}
	if st, ok := LegacyStatusMapping[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", fmt.Errorf("unknown task priority %q", s)
}

type AssigneeType string

const (
	AssigneeIndividual AssigneeType = "individual"
	AssigneeDivision   AssigneeType = "division"
)

type Assignee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       Status       `json:"status"`
	Priority     Priority     `json:"priority"`
	DueDate      time.Time    `json:"due_date"`
	Division     string       `json:"division"`
	AssigneeType AssigneeType `json:"assignee_type"`
	Assignees    []Assignee   `json:"assignees"`
	Project      string       `json:"project,omitempty"`
	Sprint       string       `json:"sprint,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (t *Task) AssigneeIDs() []string {
	ids := make([]string, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		ids = append(ids, a.ID)
	}
	return ids
}

func (t *Task) Scope() auth.TaskScope {
	return auth.TaskScope{Division: t.Division, AssigneeIDs: t.AssigneeIDs()}
}

type Comment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

func encodeTags(tags []string) datatypes.JSON {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	return datatypes.JSON(b)
}

func decodeTags(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}

func ToDataModel(t *Task) *taskDatamodel.Task {
	assignees := make([]taskDatamodel.TaskAssignee, 0, len(t.Assignees))
	for i, a := range t.Assignees {
		assignees = append(assignees, taskDatamodel.TaskAssignee{
			TaskID:   t.ID,
			UserID:   a.ID,
			UserName: a.Name,
			Position: i,
		})
	}
	return &taskDatamodel.Task{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		DueDate:      t.DueDate,
		Division:     t.Division,
		AssigneeType: string(t.AssigneeType),
		Project:      t.Project,
		Sprint:       t.Sprint,
		Tags:         encodeTags(t.Tags),
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		Assignees:    assignees,
	}
}

func FromDataModel(t *taskDatamodel.Task) *Task {
	assignees := make([]Assignee, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		assignees = append(assignees, Assignee{ID: a.UserID, Name: a.UserName})
	}
	return &Task{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       Status(t.Status),
		Priority:     Priority(t.Priority),
		DueDate:      t.DueDate.UTC(),
		Division:     t.Division,
		AssigneeType: AssigneeType(t.AssigneeType),
		Assignees:    assignees,
		Project:      t.Project,
		Sprint:       t.Sprint,
		Tags:         decodeTags(t.Tags),
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func CommentToDataModel(c *Comment) *taskDatamodel.Comment {
	return &taskDatamodel.Comment{
		ID:         c.ID,
		TaskID:     c.TaskID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Text:       c.Text,
		CreatedAt:  c.CreatedAt,
	}
}

func CommentFromDataModel(c *taskDatamodel.Comment) *Comment {
	return &Comment{
		ID:         c.ID,
		TaskID:     c.TaskID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Text:       c.Text,
		CreatedAt:  c.CreatedAt,
	}
}

package task

import (
	"strings"
	"time"

	errors "github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/core/common/validation"
)

type CreateTaskDTO struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	DueDate      string   `json:"due_date"`
	Priority     string   `json:"priority"`
	Division     string   `json:"division"`
	AssigneeType string   `json:"assignee_type"`
	AssigneeIDs  []string `json:"assignee_ids,omitempty"`
	Project      string   `json:"project,omitempty"`
	Sprint       string   `json:"sprint,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

func (d *CreateTaskDTO) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Division = strings.TrimSpace(d.Division)
	d.Project = strings.TrimSpace(d.Project)
	d.Sprint = strings.TrimSpace(d.Sprint)
	if d.AssigneeType == "" {
		d.AssigneeType = string(AssigneeIndividual)
	}
	d.AssigneeIDs = dedupe(d.AssigneeIDs)
	d.Tags = dedupe(d.Tags)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func dateField(value interface{}) *errors.AppError {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if _, err := validation.ParseDate(s); err != nil {
		return errors.NewValidationFieldError("due_date", "Due date must be a date (YYYY-MM-DD)", errors.ErrCodeInvalidDate)
	}
	return nil
}

func notPast(now time.Time) func(interface{}) *errors.AppError {
	return func(value interface{}) *errors.AppError {
		s, _ := value.(string)
		t, err := validation.ParseDate(s)
		if err != nil {
			return nil
		}
		if validation.StartOfDay(t).Before(validation.StartOfDay(now)) {
			return errors.NewValidationFieldError("due_date", "Due date cannot be in the past", errors.ErrCodeInvalidDate)
		}
		return nil
	}
}

func priorityField(value interface{}) *errors.AppError {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := ParsePriority(s); err != nil {
		return errors.NewValidationFieldError("priority", "Priority must be one of: low, medium, high", errors.ErrCodeInvalidPriority)
	}
	return nil
}

// Validate checks every field against now; due dates are compared by UTC
// calendar day so today is allowed.
func (d CreateTaskDTO) Validate(now time.Time) *errors.AppError {
	v := validation.NewValidator()
	v.Field("title", d.Title).RequiredMsg("Task title is required").MaxLength(200)
	v.Field("description", d.Description).Label("Description").Required().MaxLength(5000)
	v.Field("due_date", d.DueDate).Label("Due date").Required().Custom(dateField).Custom(notPast(now))
	v.Field("priority", d.Priority).Label("Priority").Required().Custom(priorityField)
	v.Field("division", d.Division).RequiredMsg("Please select a division")
	v.Field("assignee_type", d.AssigneeType).Label("Assignee type").
		OneOf([]string{string(AssigneeIndividual), string(AssigneeDivision)}, errors.ErrCodeInvalidAssignee)
	if d.AssigneeType == string(AssigneeIndividual) {
		v.Field("assignee_ids", d.AssigneeIDs).RequiredMsg("Please select at least one team member")
	}
	return v.Validate()
}

// DueDateValue returns the parsed due date truncated to its UTC day. Call
// after Validate.
func (d CreateTaskDTO) DueDateValue() time.Time {
	t, _ := validation.ParseDate(d.DueDate)
	return validation.StartOfDay(t)
}

func (d CreateTaskDTO) PriorityValue() Priority {
	p, _ := ParsePriority(d.Priority)
	return p
}

type UpdateStatusDTO struct {
	Status string `json:"status"`
}

func (d UpdateStatusDTO) Parse() (Status, *errors.AppError) {
	if strings.TrimSpace(d.Status) == "" {
		return "", errors.NewValidationFieldError("status", "Status is required", errors.ErrCodeValidationFailed)
	}
	st, err := ParseStatus(d.Status)
	if err != nil {
		return "", errors.NewValidationFieldError("status", "Status must be one of: todo, in_progress, in_review, done", errors.ErrCodeInvalidStatus)
	}
	return st, nil
}

// UpdateTaskDTO edits task fields; nil fields are left untouched. Division,
// assignees and status are not editable here.
type UpdateTaskDTO struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	DueDate     *string   `json:"due_date,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Project     *string   `json:"project,omitempty"`
	Sprint      *string   `json:"sprint,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

func (d UpdateTaskDTO) Validate(now time.Time) *errors.AppError {
	v := validation.NewValidator()
	if d.Title != nil {
		v.Field("title", strings.TrimSpace(*d.Title)).RequiredMsg("Task title is required").MaxLength(200)
	}
	if d.Description != nil {
		v.Field("description", strings.TrimSpace(*d.Description)).Label("Description").Required().MaxLength(5000)
	}
	if d.DueDate != nil {
		v.Field("due_date", *d.DueDate).Label("Due date").Required().Custom(dateField).Custom(notPast(now))
	}
	if d.Priority != nil {
		v.Field("priority", *d.Priority).Label("Priority").Required().Custom(priorityField)
	}
	return v.Validate()
}

// Apply copies the set fields onto t. Call after Validate.
func (d UpdateTaskDTO) Apply(t *Task) {
	if d.Title != nil {
		t.Title = strings.TrimSpace(*d.Title)
	}
	if d.Description != nil {
		t.Description = strings.TrimSpace(*d.Description)
	}
	if d.DueDate != nil {
		due, _ := validation.ParseDate(*d.DueDate)
		t.DueDate = validation.StartOfDay(due)
	}
	if d.Priority != nil {
		t.Priority, _ = ParsePriority(*d.Priority)
	}
	if d.Project != nil {
		t.Project = strings.TrimSpace(*d.Project)
	}
	if d.Sprint != nil {
		t.Sprint = strings.TrimSpace(*d.Sprint)
	}
	if d.Tags != nil {
		t.Tags = dedupe(*d.Tags)
	}
}

type CreateCommentDTO struct {
	Text string `json:"text"`
}

func (d CreateCommentDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("text", strings.TrimSpace(d.Text)).RequiredMsg("Comment cannot be empty").MaxLength(2000)
	return v.Validate()
}

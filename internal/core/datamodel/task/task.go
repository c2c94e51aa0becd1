package task

import (
	"time"

	"gorm.io/datatypes"
)

type Task struct {
	ID           string         `gorm:"primaryKey;size:36"`
	Title        string         `gorm:"column:title;not null"`
	Description  string         `gorm:"column:description;not null"`
	Status       string         `gorm:"column:status;not null;index"`
	Priority     string         `gorm:"column:priority;not null"`
	DueDate      time.Time      `gorm:"column:due_date;not null;index"`
	Division     string         `gorm:"column:division;not null;index"`
	AssigneeType string         `gorm:"column:assignee_type;not null"`
	Project      string         `gorm:"column:project"`
	Sprint       string         `gorm:"column:sprint"`
	Tags         datatypes.JSON `gorm:"column:tags"`
	CreatedBy    string         `gorm:"column:created_by;not null"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`

	Assignees []TaskAssignee `gorm:"foreignKey:TaskID"`
}

func (Task) TableName() string {
	return "tasks"
}

type TaskAssignee struct {
	TaskID   string `gorm:"primaryKey;size:36"`
	UserID   string `gorm:"primaryKey;size:36"`
	UserName string `gorm:"column:user_name;not null"`
	Position int    `gorm:"column:position;not null;default:0"`
}

func (TaskAssignee) TableName() string {
	return "task_assignees"
}

type Comment struct {
	ID         string    `gorm:"primaryKey;size:36"`
	TaskID     string    `gorm:"column:task_id;not null;index"`
	AuthorID   string    `gorm:"column:author_id;not null"`
	AuthorName string    `gorm:"column:author_name;not null"`
	Text       string    `gorm:"column:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (Comment) TableName() string {
	return "task_comments"
}

package emailgateway

import (
	"errors"
)

// TemplateParams are the variables the assignment template renders.
type TemplateParams struct {
	ToName          string `json:"to_name"`
	ToEmail         string `json:"to_email"`
	TaskTitle       string `json:"task_title"`
	TaskDescription string `json:"task_description"`
	TaskPriority    string `json:"task_priority"`
	TaskDueDate     string `json:"task_due_date"`
	AssignedBy      string `json:"assigned_by"`
	FromName        string `json:"from_name"`
	ReplyTo         string `json:"reply_to"`
}

func (p *TemplateParams) Validate() error {
	if p.ToEmail == "" {
		return errors.New("to_email is required")
	}
	if p.TaskTitle == "" {
		return errors.New("task_title is required")
	}
	return nil
}

type SendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams TemplateParams `json:"template_params"`
}

func (r *SendRequest) Validate() error {
	if r.ServiceID == "" {
		return errors.New("service_id is required")
	}
	if r.TemplateID == "" {
		return errors.New("template_id is required")
	}
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	return r.TemplateParams.Validate()
}

package task

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/task-dashboard/internal"
	taskDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/task"
	"github.com/frahmantamala/task-dashboard/internal/core/events"
	"github.com/google/uuid"
)

// RepositoryAPI persists tasks with their assignees and comments. Lookups
// return (nil, nil) when absent; mutations report whether a row matched.
type RepositoryAPI interface {
	Create(ctx context.Context, t *taskDatamodel.Task) error
	GetByID(ctx context.Context, id string) (*taskDatamodel.Task, error)
	ListByDivision(ctx context.Context, division string) ([]*taskDatamodel.Task, error)
	UpdateStatus(ctx context.Context, id, status string, at time.Time) (bool, error)
	Update(ctx context.Context, t *taskDatamodel.Task) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	AddComment(ctx context.Context, c *taskDatamodel.Comment) error
	ListComments(ctx context.Context, taskID string) ([]*taskDatamodel.Comment, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service is the task store. Authorization happens in the workflow layer.
type Service struct {
	repo      RepositoryAPI
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) publish(ctx context.Context, eventType, taskID, division, actorID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewTaskChangedEvent(eventType, taskID, division, actorID)); err != nil {
		s.logger.WarnContext(ctx, "failed to publish task event", "event_type", eventType, "task_id", taskID, "error", err)
	}
}

func storeErr(msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewTransportError(msg, err)
}

// CreateTask validates and persists a new task in the initial status.
func (s *Service) CreateTask(ctx context.Context, dto CreateTaskDTO, assignees []Assignee, createdBy string) (*Task, error) {
	dto.Normalize()
	now := s.now().UTC()
	if appErr := dto.Validate(now); appErr != nil {
		return nil, appErr
	}

	t := &Task{
		ID:           uuid.NewString(),
		Title:        dto.Title,
		Description:  dto.Description,
		Status:       InitialStatus,
		Priority:     dto.PriorityValue(),
		DueDate:      dto.DueDateValue(),
		Division:     dto.Division,
		AssigneeType: AssigneeType(dto.AssigneeType),
		Assignees:    assignees,
		Project:      dto.Project,
		Sprint:       dto.Sprint,
		Tags:         dto.Tags,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, ToDataModel(t)); err != nil {
		return nil, storeErr("failed to create task", err)
	}

	s.logger.InfoContext(ctx, "task created", "task_id", t.ID, "division", t.Division, "assignees", len(t.Assignees))
	s.publish(ctx, events.EventTypeTaskCreated, t.ID, t.Division, createdBy)
	return t, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Task, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to load task", err)
	}
	if row == nil {
		return nil, internal.ErrTaskNotFound
	}
	return FromDataModel(row), nil
}

// ListByDivision returns the division's tasks, newest first. Division names
// match case-insensitively.
func (s *Service) ListByDivision(ctx context.Context, division string) ([]*Task, error) {
	rows, err := s.repo.ListByDivision(ctx, strings.TrimSpace(division))
	if err != nil {
		return nil, storeErr("failed to list tasks", err)
	}
	tasks := make([]*Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, FromDataModel(row))
	}
	return tasks, nil
}

// UpdateTaskStatus overwrites the status. No transition is refused.
func (s *Service) UpdateTaskStatus(ctx context.Context, id string, status Status, actorID string) (*Task, error) {
	if !status.IsValid() {
		return nil, internal.NewValidationFieldError("status", "Status must be one of: todo, in_progress, in_review, done", internal.ErrCodeInvalidStatus)
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ok, err := s.repo.UpdateStatus(ctx, id, string(status), now)
	if err != nil {
		return nil, storeErr("failed to update task status", err)
	}
	if !ok {
		return nil, internal.ErrTaskNotFound
	}

	from := t.Status
	t.Status = status
	t.UpdatedAt = now

	s.logger.InfoContext(ctx, "task status updated", "task_id", id, "from", from, "to", status, "actor_id", actorID)
	s.publish(ctx, events.EventTypeTaskUpdated, t.ID, t.Division, actorID)
	return t, nil
}

func (s *Service) UpdateTask(ctx context.Context, id string, dto UpdateTaskDTO, actorID string) (*Task, error) {
	now := s.now().UTC()
	if appErr := dto.Validate(now); appErr != nil {
		return nil, appErr
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto.Apply(t)
	t.UpdatedAt = now

	ok, err := s.repo.Update(ctx, ToDataModel(t))
	if err != nil {
		return nil, storeErr("failed to update task", err)
	}
	if !ok {
		return nil, internal.ErrTaskNotFound
	}

	s.logger.InfoContext(ctx, "task updated", "task_id", id, "actor_id", actorID)
	s.publish(ctx, events.EventTypeTaskUpdated, t.ID, t.Division, actorID)
	return t, nil
}

// DeleteTask removes the task with its assignees and comments. Deleting an
// already deleted task reports ErrTaskNotFound.
func (s *Service) DeleteTask(ctx context.Context, id, actorID string) error {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storeErr("failed to delete task", err)
	}
	if !ok {
		return internal.ErrTaskNotFound
	}

	s.logger.InfoContext(ctx, "task deleted", "task_id", id, "actor_id", actorID)
	s.publish(ctx, events.EventTypeTaskDeleted, id, t.Division, actorID)
	return nil
}

// AddComment appends a comment. Comments are never edited.
func (s *Service) AddComment(ctx context.Context, taskID string, author Assignee, dto CreateCommentDTO) (*Comment, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if _, err := s.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	c := &Comment{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Text:       strings.TrimSpace(dto.Text),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.AddComment(ctx, CommentToDataModel(c)); err != nil {
		return nil, storeErr("failed to add comment", err)
	}
	return c, nil
}

// ListComments returns the task's comments oldest first.
func (s *Service) ListComments(ctx context.Context, taskID string) ([]*Comment, error) {
	if _, err := s.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListComments(ctx, taskID)
	if err != nil {
		return nil, storeErr("failed to list comments", err)
	}
	comments := make([]*Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, CommentFromDataModel(row))
	}
	return comments, nil
}

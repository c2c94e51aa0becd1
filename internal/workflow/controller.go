package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/auth"
	"github.com/frahmantamala/task-dashboard/internal/core/common/validation"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/notification"
	"github.com/frahmantamala/task-dashboard/internal/task"
	"github.com/frahmantamala/task-dashboard/internal/user"
)

type TaskStore interface {
	CreateTask(ctx context.Context, dto task.CreateTaskDTO, assignees []task.Assignee, createdBy string) (*task.Task, error)
	GetByID(ctx context.Context, id string) (*task.Task, error)
	ListByDivision(ctx context.Context, division string) ([]*task.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status task.Status, actorID string) (*task.Task, error)
	UpdateTask(ctx context.Context, id string, dto task.UpdateTaskDTO, actorID string) (*task.Task, error)
	DeleteTask(ctx context.Context, id, actorID string) error
	AddComment(ctx context.Context, taskID string, author task.Assignee, dto task.CreateCommentDTO) (*task.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]*task.Comment, error)
}

// Directory resolves assignees. ListByDivision returns active users only.
type Directory interface {
	GetByIDs(ctx context.Context, ids []string) ([]*user.User, error)
	ListByDivision(ctx context.Context, division string) ([]*user.User, error)
}

type Divisions interface {
	CanonicalName(ctx context.Context, name string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, t *task.Task, recipients []notification.Recipient, assignedBy string) notification.DispatchResult
}

type Feed interface {
	SubscribeByDivision(ctx context.Context, division string, callback task.SnapshotFunc) (func(), error)
}

type Dependencies struct {
	Tasks     TaskStore
	Directory Directory
	Divisions Divisions
	Notifier  Notifier
	Feed      Feed
}

// CreateTaskResult is the combined outcome of a task creation: the task is
// persisted whatever the notification status says.
type CreateTaskResult struct {
	TaskID       string                      `json:"task_id"`
	Task         *task.Task                  `json:"task"`
	Notification notification.DispatchResult `json:"notification"`
}

type CalendarDay struct {
	Date  string       `json:"date"`
	Tasks []*task.Task `json:"tasks"`
}

type CalendarMonth struct {
	Month string        `json:"month"`
	Days  []CalendarDay `json:"days"`
}

// Controller coordinates the task workflow: authorization, assignee
// resolution, persistence and the notification side effect.
type Controller struct {
	tasks     TaskStore
	directory Directory
	divisions Divisions
	notifier  Notifier
	feed      Feed
	policy    *auth.Policy
	logger    *slog.Logger
	now       func() time.Time
}

func NewController(deps Dependencies, logger *slog.Logger) *Controller {
	return &Controller{
		tasks:     deps.Tasks,
		directory: deps.Directory,
		divisions: deps.Divisions,
		notifier:  deps.Notifier,
		feed:      deps.Feed,
		policy:    auth.NewPolicy(),
		logger:    logger,
		now:       time.Now,
	}
}

func transportErr(msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewTransportError(msg, err)
}

// CreateTask authorizes, validates, resolves recipients, persists and then
// notifies. Nothing is written unless every earlier step succeeds.
func (c *Controller) CreateTask(ctx context.Context, actor *coreuser.Principal, dto task.CreateTaskDTO) (*CreateTaskResult, error) {
	if err := auth.Require(c.policy.CanCreateAnyTask(actor)); err != nil {
		return nil, err
	}

	dto.Normalize()
	if dto.Division == "" {
		dto.Division = actor.Division
	}
	if appErr := dto.Validate(c.now().UTC()); appErr != nil {
		return nil, appErr
	}

	division, err := c.canonicalDivision(ctx, dto.Division)
	if err != nil {
		return nil, err
	}
	dto.Division = division

	if err := auth.Require(c.policy.CanCreateTask(actor, division)); err != nil {
		return nil, err
	}

	members, err := c.resolveAssignees(ctx, dto)
	if err != nil {
		return nil, err
	}

	assignees := make([]task.Assignee, 0, len(members))
	recipients := make([]notification.Recipient, 0, len(members))
	for _, m := range members {
		assignees = append(assignees, task.Assignee{ID: m.ID, Name: m.Name})
		recipients = append(recipients, notification.Recipient{ID: m.ID, Name: m.Name, Email: m.Email})
	}

	t, err := c.tasks.CreateTask(ctx, dto, assignees, actor.ID)
	if err != nil {
		return nil, err
	}

	result := &CreateTaskResult{TaskID: t.ID, Task: t}
	result.Notification = c.notifier.Notify(context.WithoutCancel(ctx), t, recipients, assignedBy(actor))
	if result.Notification.Status == notification.DispatchStatusError {
		c.logger.WarnContext(ctx, "task created but notification failed",
			"task_id", t.ID,
			"failed", result.Notification.Failed,
			"attempted", result.Notification.Attempted)
	}
	return result, nil
}

func assignedBy(actor *coreuser.Principal) string {
	if actor.DisplayName != "" {
		return actor.DisplayName
	}
	return actor.Email
}

func (c *Controller) canonicalDivision(ctx context.Context, name string) (string, error) {
	canonical, err := c.divisions.CanonicalName(ctx, name)
	if err != nil {
		if errors.Is(err, internal.ErrDivisionNotFound) {
			return "", internal.NewValidationFieldError("division", "Division does not exist", internal.ErrCodeDivisionNotFound)
		}
		return "", transportErr("failed to resolve division", err)
	}
	return canonical, nil
}

// resolveAssignees expands a division assignment to its active members, or
// checks that every individually selected user exists, is active and
// belongs to the task's division.
func (c *Controller) resolveAssignees(ctx context.Context, dto task.CreateTaskDTO) ([]*user.User, error) {
	if task.AssigneeType(dto.AssigneeType) == task.AssigneeDivision {
		members, err := c.directory.ListByDivision(ctx, dto.Division)
		if err != nil {
			return nil, transportErr("failed to load division members", err)
		}
		return members, nil
	}

	users, err := c.directory.GetByIDs(ctx, dto.AssigneeIDs)
	if err != nil {
		return nil, transportErr("failed to load assignees", err)
	}
	if len(users) != len(dto.AssigneeIDs) {
		return nil, internal.NewValidationFieldError("assignee_ids", "Selected team member does not exist", internal.ErrCodeInvalidAssignee)
	}
	for _, u := range users {
		if !u.IsActive() || !strings.EqualFold(u.Division, dto.Division) {
			return nil, internal.NewValidationFieldError("assignee_ids",
				u.Name+" is not an active member of "+dto.Division, internal.ErrCodeInvalidAssignee)
		}
	}
	return users, nil
}

// GetTask returns the task when the actor may view its division.
func (c *Controller) GetTask(ctx context.Context, actor *coreuser.Principal, id string) (*task.Task, error) {
	t, err := c.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Require(c.policy.CanViewTask(actor, t.Scope())); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Controller) ListDivisionTasks(ctx context.Context, actor *coreuser.Principal, division string) ([]*task.Task, error) {
	if err := auth.Require(c.policy.CanViewDivision(actor, division)); err != nil {
		return nil, err
	}
	return c.tasks.ListByDivision(ctx, division)
}

// MoveTask applies a board drop. Every status may follow every other.
func (c *Controller) MoveTask(ctx context.Context, actor *coreuser.Principal, id string, dto task.UpdateStatusDTO) (*task.Task, error) {
	status, appErr := dto.Parse()
	if appErr != nil {
		return nil, appErr
	}

	t, err := c.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Require(c.policy.CanUpdateTaskStatus(actor, t.Scope())); err != nil {
		return nil, err
	}
	if t.Status == status {
		return t, nil
	}
	return c.tasks.UpdateTaskStatus(ctx, id, status, actor.ID)
}

func (c *Controller) UpdateTask(ctx context.Context, actor *coreuser.Principal, id string, dto task.UpdateTaskDTO) (*task.Task, error) {
	t, err := c.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Require(c.policy.CanEditTask(actor, t.Scope())); err != nil {
		return nil, err
	}
	return c.tasks.UpdateTask(ctx, id, dto, actor.ID)
}

// DeleteTask requires an explicit confirmation from the caller.
func (c *Controller) DeleteTask(ctx context.Context, actor *coreuser.Principal, id string, confirmed bool) error {
	if !confirmed {
		return internal.ErrConfirmationRequired
	}

	t, err := c.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Require(c.policy.CanDeleteTask(actor, t.Scope())); err != nil {
		return err
	}
	return c.tasks.DeleteTask(ctx, id, actor.ID)
}

func (c *Controller) AddComment(ctx context.Context, actor *coreuser.Principal, id string, dto task.CreateCommentDTO) (*task.Comment, error) {
	t, err := c.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Require(c.policy.CanComment(actor, t.Scope())); err != nil {
		return nil, err
	}
	return c.tasks.AddComment(ctx, id, task.Assignee{ID: actor.ID, Name: assignedBy(actor)}, dto)
}

func (c *Controller) ListComments(ctx context.Context, actor *coreuser.Principal, id string) ([]*task.Comment, error) {
	if _, err := c.GetTask(ctx, actor, id); err != nil {
		return nil, err
	}
	return c.tasks.ListComments(ctx, id)
}

// Deadlines lists open tasks due today or later, soonest first, ties broken
// by title. A limit of zero returns all of them.
func (c *Controller) Deadlines(ctx context.Context, actor *coreuser.Principal, division string, limit int) ([]*task.Task, error) {
	tasks, err := c.ListDivisionTasks(ctx, actor, division)
	if err != nil {
		return nil, err
	}

	today := validation.StartOfDay(c.now())
	upcoming := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == task.StatusDone || validation.StartOfDay(t.DueDate).Before(today) {
			continue
		}
		upcoming = append(upcoming, t)
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		di, dj := validation.StartOfDay(upcoming[i].DueDate), validation.StartOfDay(upcoming[j].DueDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return upcoming[i].Title < upcoming[j].Title
	})

	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming, nil
}

// Calendar groups the division's tasks of one month (YYYY-MM, default the
// current month) by due day.
func (c *Controller) Calendar(ctx context.Context, actor *coreuser.Principal, division, month string) (*CalendarMonth, error) {
	start := validation.StartOfDay(c.now())
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	if month = strings.TrimSpace(month); month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return nil, internal.NewValidationFieldError("month", "Month must be formatted as YYYY-MM", internal.ErrCodeInvalidDate)
		}
		start = parsed
	}
	end := start.AddDate(0, 1, 0)

	tasks, err := c.ListDivisionTasks(ctx, actor, division)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]*task.Task)
	for _, t := range tasks {
		due := validation.StartOfDay(t.DueDate)
		if due.Before(start) || !due.Before(end) {
			continue
		}
		key := due.Format("2006-01-02")
		byDay[key] = append(byDay[key], t)
	}

	cal := &CalendarMonth{Month: start.Format("2006-01"), Days: make([]CalendarDay, 0, len(byDay))}
	for date, dayTasks := range byDay {
		sort.SliceStable(dayTasks, func(i, j int) bool { return dayTasks[i].Title < dayTasks[j].Title })
		cal.Days = append(cal.Days, CalendarDay{Date: date, Tasks: dayTasks})
	}
	sort.Slice(cal.Days, func(i, j int) bool { return cal.Days[i].Date < cal.Days[j].Date })
	return cal, nil
}

// Subscribe opens the division live feed for a viewer of that division.
func (c *Controller) Subscribe(ctx context.Context, actor *coreuser.Principal, division string, callback task.SnapshotFunc) (func(), error) {
	if err := auth.Require(c.policy.CanViewDivision(actor, division)); err != nil {
		return nil, err
	}
	return c.feed.SubscribeByDivision(ctx, division, callback)
}

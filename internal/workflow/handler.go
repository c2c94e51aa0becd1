package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/task"
	"github.com/frahmantamala/task-dashboard/internal/transport"
	"github.com/frahmantamala/task-dashboard/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateTask(ctx context.Context, actor *coreuser.Principal, dto task.CreateTaskDTO) (*CreateTaskResult, error)
	GetTask(ctx context.Context, actor *coreuser.Principal, id string) (*task.Task, error)
	ListDivisionTasks(ctx context.Context, actor *coreuser.Principal, division string) ([]*task.Task, error)
	MoveTask(ctx context.Context, actor *coreuser.Principal, id string, dto task.UpdateStatusDTO) (*task.Task, error)
	UpdateTask(ctx context.Context, actor *coreuser.Principal, id string, dto task.UpdateTaskDTO) (*task.Task, error)
	DeleteTask(ctx context.Context, actor *coreuser.Principal, id string, confirmed bool) error
	AddComment(ctx context.Context, actor *coreuser.Principal, id string, dto task.CreateCommentDTO) (*task.Comment, error)
	ListComments(ctx context.Context, actor *coreuser.Principal, id string) ([]*task.Comment, error)
	Deadlines(ctx context.Context, actor *coreuser.Principal, division string, limit int) ([]*task.Task, error)
	Calendar(ctx context.Context, actor *coreuser.Principal, division, month string) (*CalendarMonth, error)
	Subscribe(ctx context.Context, actor *coreuser.Principal, division string, callback task.SnapshotFunc) (func(), error)
}

type TasksResponse struct {
	Tasks []*task.Task `json:"tasks"`
}

type CommentsResponse struct {
	Comments []*task.Comment `json:"comments"`
}

const (
	defaultDeadlineLimit = 10
	streamHeartbeat      = 25 * time.Second
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	var dto task.CreateTaskDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	result, err := h.Service.CreateTask(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	t, err := h.Service.GetTask(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	var dto task.UpdateTaskDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	t, err := h.Service.UpdateTask(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	var dto task.UpdateStatusDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	t, err := h.Service.MoveTask(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	if err := h.Service.DeleteTask(r.Context(), actor, chi.URLParam(r, "id"), confirmed); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	comments, err := h.Service.ListComments(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CommentsResponse{Comments: comments})
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	var dto task.CreateCommentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	c, err := h.Service.AddComment(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListDivisionTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	tasks, err := h.Service.ListDivisionTasks(r.Context(), actor, chi.URLParam(r, "name"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TasksResponse{Tasks: tasks})
}

func (h *Handler) Deadlines(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	limit, err := h.QueryInt(r, "limit", defaultDeadlineLimit)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	tasks, err := h.Service.Deadlines(r.Context(), actor, chi.URLParam(r, "name"), limit)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TasksResponse{Tasks: tasks})
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	cal, err := h.Service.Calendar(r.Context(), actor, chi.URLParam(r, "name"), r.URL.Query().Get("month"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, cal)
}

// StreamDivisionTasks serves the division feed as Server-Sent Events, one
// snapshot event per delivery. Slow readers only see the latest snapshot.
func (h *Handler) StreamDivisionTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	updates := make(chan []*task.Task, 1)
	unsubscribe, err := h.Service.Subscribe(ctx, actor, chi.URLParam(r, "name"), func(tasks []*task.Task) {
		select {
		case <-updates:
		default:
		}
		updates <- tasks
	})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.From(ctx).Warn("streaming not supported", "error", err)
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case tasks := <-updates:
			data, err := json.Marshal(TasksResponse{Tasks: tasks})
			if err != nil {
				logger.From(ctx).Error("failed to encode snapshot", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

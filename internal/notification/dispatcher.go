package notification

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/frahmantamala/task-dashboard/internal"
	emailgatewaytypes "github.com/frahmantamala/task-dashboard/internal/core/datamodel/emailgateway"
	"github.com/frahmantamala/task-dashboard/internal/task"
	"golang.org/x/sync/errgroup"
)

type DispatchStatus string

const (
	DispatchStatusIdle  DispatchStatus = "idle"
	DispatchStatusSent  DispatchStatus = "sent"
	DispatchStatusError DispatchStatus = "error"
)

// DispatchResult is the aggregate outcome of one notify call. A single
// failed send makes the whole result an error.
type DispatchResult struct {
	Status    DispatchStatus `json:"status"`
	Attempted int            `json:"attempted"`
	Failed    int            `json:"failed"`
}

type Recipient struct {
	ID    string
	Name  string
	Email string
}

type Sender interface {
	Send(ctx context.Context, params emailgatewaytypes.TemplateParams) error
}

const defaultMaxConcurrent = 8

type Dispatcher struct {
	sender        Sender
	enabled       bool
	fromName      string
	replyTo       string
	maxConcurrent int
	logger        *slog.Logger
}

func NewDispatcher(sender Sender, cfg internal.NotificationConfig, logger *slog.Logger) *Dispatcher {
	fromName := cfg.FromName
	if fromName == "" {
		fromName = internal.DefaultFromName
	}
	replyTo := cfg.ReplyTo
	if replyTo == "" {
		replyTo = internal.DefaultReplyTo
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	return &Dispatcher{
		sender:        sender,
		enabled:       cfg.Enabled && sender != nil,
		fromName:      fromName,
		replyTo:       replyTo,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Notify sends one assignment email per distinct recipient. Sends run
// concurrently and are never retried.
func (d *Dispatcher) Notify(ctx context.Context, t *task.Task, recipients []Recipient, assignedBy string) DispatchResult {
	unique := dedupe(recipients)
	if len(unique) == 0 {
		d.logger.InfoContext(ctx, "no recipients to notify", "task_id", t.ID)
		return DispatchResult{Status: DispatchStatusIdle}
	}
	if !d.enabled {
		d.logger.InfoContext(ctx, "notifications disabled, skipping", "task_id", t.ID, "recipients", len(unique))
		return DispatchResult{Status: DispatchStatusIdle}
	}

	var failed atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(d.maxConcurrent)

	for _, r := range unique {
		params := d.params(t, r, assignedBy)
		g.Go(func() error {
			if err := d.sender.Send(ctx, params); err != nil {
				failed.Add(1)
				d.logger.WarnContext(ctx, "notification send failed", "task_id", t.ID, "recipient", params.ToEmail, "error", err)
				return err
			}
			return nil
		})
	}

	result := DispatchResult{Status: DispatchStatusSent, Attempted: len(unique)}
	if err := g.Wait(); err != nil {
		result.Status = DispatchStatusError
		result.Failed = int(failed.Load())
	}

	d.logger.InfoContext(ctx, "task notifications dispatched",
		"task_id", t.ID,
		"status", result.Status,
		"attempted", result.Attempted,
		"failed", result.Failed)
	return result
}

func (d *Dispatcher) params(t *task.Task, r Recipient, assignedBy string) emailgatewaytypes.TemplateParams {
	return emailgatewaytypes.TemplateParams{
		ToName:          r.Name,
		ToEmail:         r.Email,
		TaskTitle:       t.Title,
		TaskDescription: t.Description,
		TaskPriority:    string(t.Priority),
		TaskDueDate:     t.DueDate.Format("2006-01-02"),
		AssignedBy:      assignedBy,
		FromName:        d.fromName,
		ReplyTo:         d.replyTo,
	}
}

// dedupe drops recipients without an address and repeats of an id or email.
func dedupe(recipients []Recipient) []Recipient {
	seen := make(map[string]bool, len(recipients)*2)
	out := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		email := strings.ToLower(strings.TrimSpace(r.Email))
		if email == "" {
			continue
		}
		if seen["email:"+email] || (r.ID != "" && seen["id:"+r.ID]) {
			continue
		}
		seen["email:"+email] = true
		if r.ID != "" {
			seen["id:"+r.ID] = true
		}
		r.Email = email
		out = append(out, r)
	}
	return out
}

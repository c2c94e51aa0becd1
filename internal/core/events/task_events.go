package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTaskCreated = "task.created"
	EventTypeTaskUpdated = "task.updated"
	EventTypeTaskDeleted = "task.deleted"
)

// TaskEventTypes lists every event that changes a division's task set.
var TaskEventTypes = []string{EventTypeTaskCreated, EventTypeTaskUpdated, EventTypeTaskDeleted}

type TaskChangedEvent struct {
	BaseEvent
	TaskID   string `json:"task_id"`
	Division string `json:"division"`
	ActorID  string `json:"actor_id,omitempty"`
}

func NewTaskChangedEvent(eventType, taskID, division, actorID string) *TaskChangedEvent {
	return &TaskChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"task_id":  taskID,
				"division": division,
				"actor_id": actorID,
			},
		},
		TaskID:   taskID,
		Division: division,
		ActorID:  actorID,
	}
}

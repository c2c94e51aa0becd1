package postgres

import (
	"context"
	"errors"
	"time"

	taskDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/task"
	"github.com/frahmantamala/task-dashboard/internal/task"
	"gorm.io/gorm"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) task.RepositoryAPI {
	return &TaskRepository{db: db}
}

func withAssignees(db *gorm.DB) *gorm.DB {
	return db.Preload("Assignees", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func (r *TaskRepository) Create(ctx context.Context, t *taskDatamodel.Task) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*taskDatamodel.Task, error) {
	var t taskDatamodel.Task
	err := withAssignees(r.db.WithContext(ctx)).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) ListByDivision(ctx context.Context, division string) ([]*taskDatamodel.Task, error) {
	var tasks []*taskDatamodel.Task
	err := withAssignees(r.db.WithContext(ctx)).
		Where("LOWER(division) = LOWER(?)", division).
		Order("created_at DESC").Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id, status string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&taskDatamodel.Task{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Update writes the editable columns; assignees are fixed at creation.
func (r *TaskRepository) Update(ctx context.Context, t *taskDatamodel.Task) (bool, error) {
	row := *t
	row.Assignees = nil
	res := r.db.WithContext(ctx).Model(&taskDatamodel.Task{}).Where("id = ?", t.ID).
		Select("title", "description", "priority", "due_date", "project", "sprint", "tags", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&taskDatamodel.TaskAssignee{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&taskDatamodel.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&taskDatamodel.Task{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (r *TaskRepository) AddComment(ctx context.Context, c *taskDatamodel.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *TaskRepository) ListComments(ctx context.Context, taskID string) ([]*taskDatamodel.Comment, error) {
	var comments []*taskDatamodel.Comment
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error
	return comments, err
}

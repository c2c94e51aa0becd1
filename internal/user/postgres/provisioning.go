package postgres

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/user"
	"github.com/frahmantamala/task-dashboard/internal/user"
	"gorm.io/gorm"
)

type ProvisioningRepository struct {
	db *gorm.DB
}

func NewProvisioningRepository(db *gorm.DB) user.ProvisioningRepository {
	return &ProvisioningRepository{db: db}
}

func (r *ProvisioningRepository) Create(ctx context.Context, p *userDatamodel.Provisioning) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update writes the mutable state columns only; the captured profile is fixed
// at creation.
func (r *ProvisioningRepository) Update(ctx context.Context, p *userDatamodel.Provisioning) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.Provisioning{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"state":       p.State,
			"identity_id": p.IdentityID,
			"last_error":  p.LastError,
			"attempts":    p.Attempts,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *ProvisioningRepository) GetByID(ctx context.Context, id string) (*userDatamodel.Provisioning, error) {
	var p userDatamodel.Provisioning
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProvisioningRepository) ListByState(ctx context.Context, state string, limit int) ([]*userDatamodel.Provisioning, error) {
	q := r.db.WithContext(ctx).Where("state = ?", state).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []*userDatamodel.Provisioning
	err := q.Find(&runs).Error
	return runs, err
}

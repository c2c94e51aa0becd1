package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/task-dashboard/internal"
	divisionDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/division"
	"github.com/frahmantamala/task-dashboard/internal/division"
	"gorm.io/gorm"
)

type DivisionRepository struct {
	db *gorm.DB
}

func NewDivisionRepository(db *gorm.DB) division.RepositoryAPI {
	return &DivisionRepository{db: db}
}

func (r *DivisionRepository) GetAll(ctx context.Context) ([]*divisionDatamodel.Division, error) {
	var divisions []*divisionDatamodel.Division
	err := r.db.WithContext(ctx).Order("name ASC").Find(&divisions).Error
	return divisions, err
}

func (r *DivisionRepository) GetByName(ctx context.Context, name string) (*divisionDatamodel.Division, error) {
	var d divisionDatamodel.Division
	err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DivisionRepository) Create(ctx context.Context, d *divisionDatamodel.Division) error {
	err := r.db.WithContext(ctx).Create(d).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return internal.ErrDuplicateName
	}
	return err
}

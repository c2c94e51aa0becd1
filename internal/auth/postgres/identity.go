package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/auth"
	identityDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/identity"
	"gorm.io/gorm"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) auth.IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(ctx context.Context, ident *identityDatamodel.Identity) error {
	err := r.db.WithContext(ctx).Create(ident).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return internal.ErrDuplicateEmail
	}
	return err
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*identityDatamodel.Identity, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*identityDatamodel.Identity, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *IdentityRepository) first(ctx context.Context, query string, arg interface{}) (*identityDatamodel.Identity, error) {
	var ident identityDatamodel.Identity
	err := r.db.WithContext(ctx).Where(query, arg).First(&ident).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ident, nil
}

func (r *IdentityRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return r.db.WithContext(ctx).
		Model(&identityDatamodel.Identity{}).
		Where("id = ?", id).
		Update("disabled", disabled).Error
}

func (r *IdentityRepository) UpdateProfile(ctx context.Context, id, displayName, photoURL string) error {
	return r.db.WithContext(ctx).
		Model(&identityDatamodel.Identity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"display_name": displayName,
			"photo_url":    photoURL,
		}).Error
}

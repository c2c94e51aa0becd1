package division

import (
	"strings"

	errors "github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/core/common/validation"
)

type CreateDivisionDTO struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (d *CreateDivisionDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
}

func (d CreateDivisionDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Label("Division name").Required().MinLength(2).MaxLength(50)
	v.Field("description", d.Description).Label("Description").MaxLength(200)
	return v.Validate()
}

type DivisionsResponse struct {
	Divisions []*Division `json:"divisions"`
}

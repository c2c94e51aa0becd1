package user

import (
	"strings"

	errors "github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/auth"
	"github.com/frahmantamala/task-dashboard/internal/core/common/validation"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
)

type CreateUserDTO struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	Division  string `json:"division"`
	Specialty string `json:"specialty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (d *CreateUserDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Division = strings.TrimSpace(d.Division)
	d.Specialty = strings.TrimSpace(d.Specialty)
}

func roleField(value interface{}) *errors.AppError {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if _, err := coreuser.ParseRole(s); err != nil {
		return errors.NewValidationFieldError("role", "Role must be one of: Admin, Team Lead, Team Member", errors.ErrCodeInvalidRole)
	}
	return nil
}

func statusField(value interface{}) *errors.AppError {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if _, err := coreuser.ParseStatus(s); err != nil {
		return errors.NewValidationFieldError("status", "Status must be active or inactive", errors.ErrCodeValidationFailed)
	}
	return nil
}

// Validate checks the profile fields first; the password policy is reported
// separately as a weak credential.
func (d CreateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Label("Name").Required().MinLength(2)
	v.Field("email", d.Email).Label("Email").Required().Email()
	v.Field("password", d.Password).Label("Password").Required()
	v.Field("role", d.Role).Label("Role").Required().Custom(roleField)
	v.Field("division", d.Division).RequiredMsg("Please select a division")
	v.Field("specialty", d.Specialty).Label("Specialty").Required()
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}

	if len(d.Password) < auth.MinPasswordLength {
		return errors.ErrWeakCredential
	}
	return nil
}

func (d CreateUserDTO) ParsedRole() coreuser.Role {
	r, _ := coreuser.ParseRole(d.Role)
	return r
}

// UpdateUserDTO is a partial update; nil fields are left untouched.
type UpdateUserDTO struct {
	Name      *string `json:"name,omitempty"`
	Specialty *string `json:"specialty,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Role      *string `json:"role,omitempty"`
	Division  *string `json:"division,omitempty"`
	Status    *string `json:"status,omitempty"`
}

// TouchesAdminFields reports whether the update changes anything only an
// admin may change.
func (d UpdateUserDTO) TouchesAdminFields() bool {
	return d.Role != nil || d.Division != nil || d.Status != nil
}

func (d UpdateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", *d.Name).Label("Name").Required().MinLength(2)
	}
	if d.Specialty != nil {
		v.Field("specialty", *d.Specialty).Label("Specialty").Required()
	}
	if d.Role != nil {
		v.Field("role", *d.Role).Label("Role").Required().Custom(roleField)
	}
	if d.Division != nil {
		v.Field("division", *d.Division).RequiredMsg("Please select a division")
	}
	if d.Status != nil {
		v.Field("status", *d.Status).Label("Status").Required().Custom(statusField)
	}
	return v.Validate()
}

// ListFilter narrows listUsers. Empty fields match everything.
type ListFilter struct {
	Division string
	Role     coreuser.Role
	Status   coreuser.Status
	Limit    int
}

func ParseListFilter(division, role, status string, limit int) (ListFilter, *errors.AppError) {
	f := ListFilter{Division: strings.TrimSpace(division), Limit: limit}

	v := validation.NewValidator()
	v.Field("role", role).Custom(roleField)
	v.Field("status", status).Custom(statusField)
	if appErr := v.Validate(); appErr != nil {
		return f, appErr
	}

	if role != "" {
		f.Role, _ = coreuser.ParseRole(role)
	}
	if status != "" {
		f.Status, _ = coreuser.ParseStatus(status)
	}
	return f, nil
}

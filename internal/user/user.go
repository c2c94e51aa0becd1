package user

import (
	"fmt"
	"time"

	userDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
)

// User is a directory record. ID is the identity id issued at provisioning.
type User struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      coreuser.Role   `json:"role"`
	Division  string          `json:"division,omitempty"`
	Specialty string          `json:"specialty"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	Status    coreuser.Status `json:"status"`
	JoinedAt  time.Time       `json:"joined_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u.Status == coreuser.StatusActive
}

type ProvisioningState string

const (
	ProvisioningStarted          ProvisioningState = "started"
	ProvisioningIdentityCreated  ProvisioningState = "identity_created"
	ProvisioningDirectoryWritten ProvisioningState = "directory_written"
	ProvisioningFailed           ProvisioningState = "failed"
)

var provisioningTransitions = map[ProvisioningState][]ProvisioningState{
	ProvisioningStarted:         {ProvisioningIdentityCreated, ProvisioningFailed},
	ProvisioningIdentityCreated: {ProvisioningDirectoryWritten, ProvisioningFailed},
}

func (s ProvisioningState) CanTransitionTo(next ProvisioningState) bool {
	for _, allowed := range provisioningTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Provisioning is the persisted marker for one createUser run. The profile is
// kept so a later reconcile can finish the directory write.
type Provisioning struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	Name       string            `json:"name"`
	Role       coreuser.Role     `json:"role"`
	Division   string            `json:"division,omitempty"`
	Specialty  string            `json:"specialty"`
	AvatarURL  string            `json:"avatar_url,omitempty"`
	State      ProvisioningState `json:"state"`
	IdentityID string            `json:"identity_id,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	Attempts   int               `json:"attempts"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (p *Provisioning) Advance(next ProvisioningState) error {
	if !p.State.CanTransitionTo(next) {
		return fmt.Errorf("illegal provisioning transition %s -> %s", p.State, next)
	}
	p.State = next
	return nil
}

// DirectoryRecord builds the user row this provisioning run is meant to write.
func (p *Provisioning) DirectoryRecord(joinedAt time.Time) *User {
	return &User{
		ID:        p.IdentityID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role,
		Division:  p.Division,
		Specialty: p.Specialty,
		AvatarURL: p.AvatarURL,
		Status:    coreuser.StatusActive,
		JoinedAt:  joinedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Division:  nullable(u.Division),
		Specialty: u.Specialty,
		AvatarURL: u.AvatarURL,
		Status:    string(u.Status),
		JoinedAt:  u.JoinedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// FromDataModel keeps unknown stored roles as-is; callers that authorize on
// the role go through coreuser.Role.IsValid.
func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      coreuser.Role(u.Role),
		Division:  deref(u.Division),
		Specialty: u.Specialty,
		AvatarURL: u.AvatarURL,
		Status:    coreuser.Status(u.Status),
		JoinedAt:  u.JoinedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func ProvisioningToDataModel(p *Provisioning) *userDatamodel.Provisioning {
	return &userDatamodel.Provisioning{
		ID:         p.ID,
		Email:      p.Email,
		Name:       p.Name,
		Role:       string(p.Role),
		Division:   nullable(p.Division),
		Specialty:  p.Specialty,
		AvatarURL:  p.AvatarURL,
		State:      string(p.State),
		IdentityID: nullable(p.IdentityID),
		LastError:  p.LastError,
		Attempts:   p.Attempts,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func ProvisioningFromDataModel(p *userDatamodel.Provisioning) *Provisioning {
	return &Provisioning{
		ID:         p.ID,
		Email:      p.Email,
		Name:       p.Name,
		Role:       coreuser.Role(p.Role),
		Division:   deref(p.Division),
		Specialty:  p.Specialty,
		AvatarURL:  p.AvatarURL,
		State:      ProvisioningState(p.State),
		IdentityID: deref(p.IdentityID),
		LastError:  p.LastError,
		Attempts:   p.Attempts,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

package auth

import (
	"github.com/frahmantamala/task-dashboard/internal"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
)

// TaskScope is the part of a task the policy needs.
type TaskScope struct {
	Division    string
	AssigneeIDs []string
}

func (t TaskScope) IsAssigned(userID string) bool {
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Policy holds the role and division rules. Every check fails closed for
// principals without a directory record.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

func (Policy) CanManageDirectory(p *coreuser.Principal) bool {
	return p.IsAdmin()
}

func (Policy) CanManageDivisions(p *coreuser.Principal) bool {
	return p.IsAdmin()
}

// CanCreateTask allows admins anywhere and team leads inside their own division.
func (Policy) CanCreateTask(p *coreuser.Principal, division string) bool {
	if !p.HasDirectoryRecord() {
		return false
	}
	switch p.Role {
	case coreuser.RoleAdmin:
		return true
	case coreuser.RoleTeamLead:
		return p.InDivision(division)
	}
	return false
}

// CanCreateAnyTask reports whether the role may create tasks at all.
func (Policy) CanCreateAnyTask(p *coreuser.Principal) bool {
	return p.HasDirectoryRecord() && (p.Role == coreuser.RoleAdmin || p.Role == coreuser.RoleTeamLead)
}

func (Policy) CanViewDivision(p *coreuser.Principal, division string) bool {
	if !p.HasDirectoryRecord() {
		return false
	}
	return p.IsAdmin() || p.InDivision(division)
}

func (pol Policy) CanViewTask(p *coreuser.Principal, t TaskScope) bool {
	return pol.CanViewDivision(p, t.Division)
}

func (Policy) CanEditTask(p *coreuser.Principal, t TaskScope) bool {
	if !p.HasDirectoryRecord() {
		return false
	}
	return p.IsAdmin() || (p.Role == coreuser.RoleTeamLead && p.InDivision(t.Division))
}

// CanUpdateTaskStatus lets team members move only the tasks assigned to them.
func (pol Policy) CanUpdateTaskStatus(p *coreuser.Principal, t TaskScope) bool {
	if pol.CanEditTask(p, t) {
		return true
	}
	return p.HasDirectoryRecord() &&
		p.Role == coreuser.RoleTeamMember &&
		p.InDivision(t.Division) &&
		t.IsAssigned(p.ID)
}

func (pol Policy) CanDeleteTask(p *coreuser.Principal, t TaskScope) bool {
	return pol.CanEditTask(p, t)
}

func (pol Policy) CanComment(p *coreuser.Principal, t TaskScope) bool {
	return pol.CanViewTask(p, t)
}

// CanEditUser allows admins and the user themself.
func (Policy) CanEditUser(p *coreuser.Principal, userID string) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || p.ID == userID
}

// Require converts a policy decision into internal.ErrForbidden.
func Require(allowed bool) error {
	if !allowed {
		return internal.ErrForbidden
	}
	return nil
}

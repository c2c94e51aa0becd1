package user

import (
	"fmt"
	"strings"
)

// Role is the closed set of directory roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTeamLead   Role = "team_lead"
	RoleTeamMember Role = "team_member"
)

// roleAliases maps the display labels used by older clients onto the enum.
var roleAliases = map[string]Role{
	"admin":       RoleAdmin,
	"team_lead":   RoleTeamLead,
	"team_member": RoleTeamMember,
	"Admin":       RoleAdmin,
	"Team Lead":   RoleTeamLead,
	"Team Member": RoleTeamMember,
}

func ParseRole(s string) (Role, error) {
	if r, ok := roleAliases[strings.TrimSpace(s)]; ok {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeamLead, RoleTeamMember:
		return true
	}
	return false
}

func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleTeamLead:
		return "Team Lead"
	case RoleTeamMember:
		return "Team Member"
	}
	return string(r)
}

func ValidRoles() []Role {
	return []Role{RoleAdmin, RoleTeamLead, RoleTeamMember}
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	}
	return "", fmt.Errorf("unknown user status %q", s)
}

// Principal is the authenticated caller: the identity session joined with its
// directory record. Role is empty when no directory record exists.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Role        Role   `json:"role,omitempty"`
	Division    string `json:"division,omitempty"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (p *Principal) HasDirectoryRecord() bool {
	return p != nil && p.Role.IsValid()
}

// InDivision compares division names case-insensitively.
func (p *Principal) InDivision(division string) bool {
	if p == nil || p.Division == "" {
		return false
	}
	return strings.EqualFold(p.Division, division)
}

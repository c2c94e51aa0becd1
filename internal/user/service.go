package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/auth"
	userDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/google/uuid"
)

// RepositoryAPI is the directory table. Lookups return (nil, nil) when absent.
type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	List(ctx context.Context, filter ListFilter) ([]*userDatamodel.User, error)
	Update(ctx context.Context, u *userDatamodel.User) error
	Delete(ctx context.Context, id string) (bool, error)
}

type ProvisioningRepository interface {
	Create(ctx context.Context, p *userDatamodel.Provisioning) error
	Update(ctx context.Context, p *userDatamodel.Provisioning) error
	GetByID(ctx context.Context, id string) (*userDatamodel.Provisioning, error)
	ListByState(ctx context.Context, state string, limit int) ([]*userDatamodel.Provisioning, error)
}

// IdentityProvider creates and manages login accounts.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password, displayName string) (string, error)
	DisableIdentity(ctx context.Context, id string) error
	UpdateIdentityProfile(ctx context.Context, id, displayName, photoURL string) error
}

// DivisionLookup resolves a division name case-insensitively to its stored
// spelling, or returns internal.ErrDivisionNotFound.
type DivisionLookup interface {
	CanonicalName(ctx context.Context, name string) (string, error)
}

type AvatarStore interface {
	Save(ctx context.Context, ownerID string, r io.Reader) (string, error)
}

type Dependencies struct {
	Users         RepositoryAPI
	Provisionings ProvisioningRepository
	Identities    IdentityProvider
	Divisions     DivisionLookup
	Avatars       AvatarStore
}

type ReconcileResult struct {
	Examined  int      `json:"examined"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Pending   []string `json:"pending,omitempty"`
}

type Service struct {
	repo          RepositoryAPI
	provisionings ProvisioningRepository
	identities    IdentityProvider
	divisions     DivisionLookup
	avatars       AvatarStore
	policy        *auth.Policy
	config        internal.DirectoryConfig
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(deps Dependencies, cfg internal.DirectoryConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:          deps.Users,
		provisionings: deps.Provisionings,
		identities:    deps.Identities,
		divisions:     deps.Divisions,
		avatars:       deps.Avatars,
		policy:        auth.NewPolicy(),
		config:        cfg,
		logger:        logger,
		now:           time.Now,
	}
}

func transportErr(msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewTransportError(msg, err)
}

func (s *Service) canonicalDivision(ctx context.Context, name string) (string, error) {
	if s.divisions == nil {
		return name, nil
	}
	canonical, err := s.divisions.CanonicalName(ctx, name)
	if err != nil {
		if errors.Is(err, internal.ErrDivisionNotFound) {
			return "", internal.NewValidationFieldError("division", "Division does not exist", internal.ErrCodeDivisionNotFound)
		}
		return "", transportErr("failed to resolve division", err)
	}
	return canonical, nil
}

// CreateUser provisions an identity and then writes the directory record,
// persisting each step. A failed directory write leaves the run in
// identity_created and reports ErrProvisioningIncomplete.
func (s *Service) CreateUser(ctx context.Context, actor *coreuser.Principal, dto CreateUserDTO) (*User, error) {
	if err := auth.Require(s.policy.CanManageDirectory(actor)); err != nil {
		return nil, err
	}

	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	division, err := s.canonicalDivision(ctx, dto.Division)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByEmail(ctx, dto.Email)
	if err != nil {
		return nil, transportErr("failed to check email", err)
	}
	if existing != nil {
		return nil, internal.ErrDuplicateEmail
	}

	run := &Provisioning{
		ID:        uuid.NewString(),
		Email:     dto.Email,
		Name:      dto.Name,
		Role:      dto.ParsedRole(),
		Division:  division,
		Specialty: dto.Specialty,
		AvatarURL: dto.AvatarURL,
		State:     ProvisioningStarted,
		Attempts:  1,
	}
	if err := s.provisionings.Create(ctx, ProvisioningToDataModel(run)); err != nil {
		return nil, transportErr("failed to record provisioning", err)
	}

	identityID, err := s.identities.CreateIdentity(ctx, dto.Email, dto.Password, dto.Name)
	if err != nil {
		s.fail(ctx, run, err)
		return nil, transportErr("failed to create identity", err)
	}

	run.IdentityID = identityID
	if err := s.advance(ctx, run, ProvisioningIdentityCreated); err != nil {
		// The next persisted transition carries this state too.
		s.logger.WarnContext(ctx, "failed to persist provisioning step", "provisioning_id", run.ID, "error", err)
	}

	u, err := s.writeDirectoryRecord(ctx, run)
	if err != nil {
		return nil, s.incomplete(ctx, run, err)
	}

	s.logger.InfoContext(ctx, "user provisioned", "user_id", u.ID, "provisioning_id", run.ID, "role", u.Role)
	return u, nil
}

func (s *Service) writeDirectoryRecord(ctx context.Context, run *Provisioning) (*User, error) {
	u := run.DirectoryRecord(s.now().UTC())
	row := ToDataModel(u)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}
	u = FromDataModel(row)

	run.LastError = ""
	if err := s.advance(ctx, run, ProvisioningDirectoryWritten); err != nil {
		s.logger.WarnContext(ctx, "directory written but provisioning marker not updated", "provisioning_id", run.ID, "error", err)
	}
	return u, nil
}

func (s *Service) advance(ctx context.Context, run *Provisioning, next ProvisioningState) error {
	if err := run.Advance(next); err != nil {
		return err
	}
	return s.provisionings.Update(ctx, ProvisioningToDataModel(run))
}

func (s *Service) fail(ctx context.Context, run *Provisioning, cause error) {
	run.LastError = cause.Error()
	if err := s.advance(ctx, run, ProvisioningFailed); err != nil {
		s.logger.WarnContext(ctx, "failed to mark provisioning failed", "provisioning_id", run.ID, "error", err)
	}
}

func (s *Service) incomplete(ctx context.Context, run *Provisioning, cause error) error {
	run.LastError = cause.Error()
	if err := s.provisionings.Update(ctx, ProvisioningToDataModel(run)); err != nil {
		s.logger.WarnContext(ctx, "failed to record provisioning error", "provisioning_id", run.ID, "error", err)
	}

	s.logger.ErrorContext(ctx, "identity created without directory record",
		"provisioning_id", run.ID, "identity_id", run.IdentityID, "error", cause)

	return internal.ErrProvisioningIncomplete.
		WithDetails(map[string]string{"provisioning_id": run.ID, "identity_id": run.IdentityID}).
		WithCause(cause)
}

// Reconcile retries the directory write for runs stuck in identity_created.
// Runs whose record already exists are closed without writing again.
func (s *Service) Reconcile(ctx context.Context, limit int) (ReconcileResult, error) {
	var result ReconcileResult

	rows, err := s.provisionings.ListByState(ctx, string(ProvisioningIdentityCreated), limit)
	if err != nil {
		return result, transportErr("failed to list provisioning runs", err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Examined++

		run := ProvisioningFromDataModel(row)
		run.Attempts++

		existing, err := s.repo.GetByID(ctx, run.IdentityID)
		if err == nil && existing != nil {
			if err := s.advance(ctx, run, ProvisioningDirectoryWritten); err != nil {
				s.logger.WarnContext(ctx, "failed to close provisioning run", "provisioning_id", run.ID, "error", err)
			}
			result.Completed++
			continue
		}
		if err == nil {
			_, err = s.writeDirectoryRecord(ctx, run)
		}
		if err != nil {
			run.LastError = err.Error()
			if uerr := s.provisionings.Update(ctx, ProvisioningToDataModel(run)); uerr != nil {
				s.logger.WarnContext(ctx, "failed to record reconcile error", "provisioning_id", run.ID, "error", uerr)
			}
			result.Failed++
			result.Pending = append(result.Pending, run.ID)
			continue
		}
		result.Completed++
	}

	s.logger.InfoContext(ctx, "provisioning reconciled",
		"examined", result.Examined, "completed", result.Completed, "failed", result.Failed)
	return result, nil
}

// ReconcileAs is Reconcile behind the admin check.
func (s *Service) ReconcileAs(ctx context.Context, actor *coreuser.Principal, limit int) (ReconcileResult, error) {
	if err := auth.Require(s.policy.CanManageDirectory(actor)); err != nil {
		return ReconcileResult{}, err
	}
	return s.Reconcile(ctx, limit)
}

func (s *Service) GetProvisioning(ctx context.Context, id string) (*Provisioning, error) {
	row, err := s.provisionings.GetByID(ctx, id)
	if err != nil {
		return nil, transportErr("failed to load provisioning run", err)
	}
	if row == nil {
		return nil, internal.ErrProvisioningNotFound
	}
	return ProvisioningFromDataModel(row), nil
}

// ListUsers returns directory records newest first. Non-admins only see
// their own division.
func (s *Service) ListUsers(ctx context.Context, actor *coreuser.Principal, filter ListFilter) ([]*User, error) {
	if !actor.HasDirectoryRecord() {
		return nil, internal.ErrForbidden
	}
	if !actor.IsAdmin() {
		if filter.Division != "" && !actor.InDivision(filter.Division) {
			return nil, internal.ErrForbidden
		}
		filter.Division = actor.Division
	}
	return s.list(ctx, filter)
}

// ListByDivision is the unscoped lookup used for recipient expansion.
func (s *Service) ListByDivision(ctx context.Context, division string) ([]*User, error) {
	return s.list(ctx, ListFilter{Division: division, Status: coreuser.StatusActive})
}

func (s *Service) list(ctx context.Context, filter ListFilter) ([]*User, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, transportErr("failed to list users", err)
	}
	users := make([]*User, 0, len(rows))
	for _, row := range rows {
		users = append(users, FromDataModel(row))
	}
	return users, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, transportErr("failed to load user", err)
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	return FromDataModel(row), nil
}

// GetByIDs resolves ids in request order, dropping unknown and duplicate ids.
func (s *Service) GetByIDs(ctx context.Context, ids []string) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, transportErr("failed to load users", err)
	}

	byID := make(map[string]*userDatamodel.User, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	seen := make(map[string]bool, len(ids))
	users := make([]*User, 0, len(rows))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		users = append(users, FromDataModel(row))
	}
	return users, nil
}

func (s *Service) GetUser(ctx context.Context, actor *coreuser.Principal, id string) (*User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != u.ID && !actor.IsAdmin() && !(actor.HasDirectoryRecord() && actor.InDivision(u.Division)) {
		return nil, internal.ErrForbidden
	}
	return u, nil
}

// GetUserByEmail returns internal.ErrUserNotFound when no record matches.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, transportErr("failed to load user", err)
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	return FromDataModel(row), nil
}

// LookupRole resolves the directory role for an identity. Inactive records
// and unparseable roles resolve to no role.
func (s *Service) LookupRole(ctx context.Context, userID string) (coreuser.Role, string, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if !u.IsActive() {
		s.logger.WarnContext(ctx, "inactive directory record", "user_id", userID)
		return "", u.Division, nil
	}
	role, err := coreuser.ParseRole(string(u.Role))
	if err != nil {
		s.logger.WarnContext(ctx, "directory record has unknown role", "user_id", userID, "role", u.Role)
		return "", u.Division, nil
	}
	return role, u.Division, nil
}

func (s *Service) UpdateUser(ctx context.Context, actor *coreuser.Principal, id string, dto UpdateUserDTO) (*User, error) {
	if err := auth.Require(s.policy.CanEditUser(actor, id)); err != nil {
		return nil, err
	}
	if dto.TouchesAdminFields() && !s.policy.CanManageDirectory(actor) {
		return nil, internal.ErrForbidden
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, transportErr("failed to load user", err)
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	u := FromDataModel(row)
	profileChanged := false

	if dto.Name != nil {
		u.Name = strings.TrimSpace(*dto.Name)
		profileChanged = true
	}
	if dto.Specialty != nil {
		u.Specialty = strings.TrimSpace(*dto.Specialty)
	}
	if dto.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*dto.AvatarURL)
		profileChanged = true
	}
	if dto.Role != nil {
		u.Role, _ = coreuser.ParseRole(*dto.Role)
	}
	if dto.Status != nil {
		u.Status, _ = coreuser.ParseStatus(*dto.Status)
	}
	if dto.Division != nil {
		if u.Division, err = s.canonicalDivision(ctx, strings.TrimSpace(*dto.Division)); err != nil {
			return nil, err
		}
	}

	if err := s.save(ctx, u, profileChanged); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user updated", "user_id", u.ID, "actor_id", actor.ID)
	return u, nil
}

func (s *Service) save(ctx context.Context, u *User, profileChanged bool) error {
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, ToDataModel(u)); err != nil {
		return transportErr("failed to update user", err)
	}
	if profileChanged && s.identities != nil {
		if err := s.identities.UpdateIdentityProfile(ctx, u.ID, u.Name, u.AvatarURL); err != nil {
			s.logger.WarnContext(ctx, "identity profile not synced", "user_id", u.ID, "error", err)
		}
	}
	return nil
}

// UploadAvatar stores the image in the avatar bucket and points the user
// record at its public URL.
func (s *Service) UploadAvatar(ctx context.Context, actor *coreuser.Principal, id string, r io.Reader) (*User, error) {
	if err := auth.Require(s.policy.CanEditUser(actor, id)); err != nil {
		return nil, err
	}
	if s.avatars == nil {
		return nil, internal.NewInternalError("avatar storage is not configured", nil)
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.avatars.Save(ctx, u.ID, r)
	if err != nil {
		return nil, transportErr("failed to store avatar", err)
	}

	u.AvatarURL = url
	if err := s.save(ctx, u, true); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes the directory record. The identity account is disabled
// only when the directory is configured to revoke on delete.
func (s *Service) DeleteUser(ctx context.Context, actor *coreuser.Principal, id string) error {
	if err := auth.Require(s.policy.CanManageDirectory(actor)); err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return transportErr("failed to delete user", err)
	}
	if !deleted {
		return internal.ErrUserNotFound
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "actor_id", actor.ID)

	if !s.config.RevokeIdentityOnDelete || s.identities == nil {
		return nil
	}
	if err := s.identities.DisableIdentity(ctx, id); err != nil {
		return internal.NewTransportError("user deleted but identity revocation failed", err)
	}
	return nil
}

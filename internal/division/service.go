package division

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/auth"
	divisionDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/division"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/google/uuid"
)

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*divisionDatamodel.Division, error)
	// GetByName matches case-insensitively and returns (nil, nil) when absent.
	GetByName(ctx context.Context, name string) (*divisionDatamodel.Division, error)
	Create(ctx context.Context, d *divisionDatamodel.Division) error
}

type Service struct {
	repo   RepositoryAPI
	policy *auth.Policy
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: auth.NewPolicy(),
		logger: logger,
	}
}

// CreateDivision rejects names that match an existing division ignoring
// case. The unique index on lower(name) backs this up for concurrent creators.
func (s *Service) CreateDivision(ctx context.Context, actor *coreuser.Principal, dto CreateDivisionDTO) (*Division, error) {
	if err := auth.Require(s.policy.CanManageDivisions(actor)); err != nil {
		return nil, err
	}

	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	existing, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, internal.NewTransportError("failed to load divisions", err)
	}
	for _, d := range existing {
		if strings.EqualFold(d.Name, dto.Name) {
			return nil, internal.ErrDuplicateName
		}
	}

	row := ToDataModel(&Division{
		ID:          uuid.NewString(),
		Name:        dto.Name,
		Description: dto.Description,
	})
	if err := s.repo.Create(ctx, row); err != nil {
		if errors.Is(err, internal.ErrDuplicateName) {
			return nil, internal.ErrDuplicateName
		}
		return nil, internal.NewTransportError("failed to create division", err)
	}

	s.logger.InfoContext(ctx, "division created", "division_id", row.ID, "name", row.Name)
	return FromDataModel(row), nil
}

// ListDivisions returns every division sorted by name.
func (s *Service) ListDivisions(ctx context.Context) ([]*Division, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, internal.NewTransportError("failed to load divisions", err)
	}

	divisions := make([]*Division, 0, len(rows))
	for _, row := range rows {
		divisions = append(divisions, FromDataModel(row))
	}
	sort.SliceStable(divisions, func(i, j int) bool {
		return strings.ToLower(divisions[i].Name) < strings.ToLower(divisions[j].Name)
	})
	return divisions, nil
}

// CanonicalName returns the stored spelling of a division name.
func (s *Service) CanonicalName(ctx context.Context, name string) (string, error) {
	row, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return "", internal.NewTransportError("failed to load division", err)
	}
	if row == nil {
		return "", internal.ErrDivisionNotFound
	}
	return row.Name, nil
}

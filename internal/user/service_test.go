package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/auth"
	userDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

type mockRepository struct {
	users      map[string]*userDatamodel.User
	failCreate bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: map[string]*userDatamodel.User{}}
}

func (m *mockRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	if m.failCreate {
		return errors.New("write timeout")
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) GetByIDs(ctx context.Context, ids []string) ([]*userDatamodel.User, error) {
	var out []*userDatamodel.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]*userDatamodel.User, error) {
	var out []*userDatamodel.User
	for _, u := range m.users {
		if filter.Division != "" && (u.Division == nil || !strings.EqualFold(*u.Division, filter.Division)) {
			continue
		}
		if filter.Role != "" && u.Role != string(filter.Role) {
			continue
		}
		if filter.Status != "" && u.Status != string(filter.Status) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

type mockProvisionings struct {
	runs map[string]*userDatamodel.Provisioning
}

func (m *mockProvisionings) Create(ctx context.Context, p *userDatamodel.Provisioning) error {
	cp := *p
	m.runs[p.ID] = &cp
	return nil
}

func (m *mockProvisionings) Update(ctx context.Context, p *userDatamodel.Provisioning) error {
	cp := *p
	m.runs[p.ID] = &cp
	return nil
}

func (m *mockProvisionings) GetByID(ctx context.Context, id string) (*userDatamodel.Provisioning, error) {
	return m.runs[id], nil
}

func (m *mockProvisionings) ListByState(ctx context.Context, state string, limit int) ([]*userDatamodel.Provisioning, error) {
	var out []*userDatamodel.Provisioning
	for _, p := range m.runs {
		if p.State == state {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockIdentities struct {
	emails   map[string]string
	disabled map[string]bool
	profiles map[string]string
	next     int
}

func newMockIdentities() *mockIdentities {
	return &mockIdentities{emails: map[string]string{}, disabled: map[string]bool{}, profiles: map[string]string{}}
}

func (m *mockIdentities) CreateIdentity(ctx context.Context, email, password, displayName string) (string, error) {
	if _, taken := m.emails[email]; taken {
		return "", internal.ErrDuplicateEmail
	}
	m.next++
	id := fmt.Sprintf("ident-%d", m.next)
	m.emails[email] = id
	return id, nil
}

func (m *mockIdentities) DisableIdentity(ctx context.Context, id string) error {
	m.disabled[id] = true
	return nil
}

func (m *mockIdentities) UpdateIdentityProfile(ctx context.Context, id, displayName, photoURL string) error {
	m.profiles[id] = displayName + "|" + photoURL
	return nil
}

type mockDivisions []string

func (m mockDivisions) CanonicalName(ctx context.Context, name string) (string, error) {
	for _, d := range m {
		if strings.EqualFold(d, name) {
			return d, nil
		}
	}
	return "", internal.ErrDivisionNotFound
}

type mockAvatars struct{ saved int }

func (m *mockAvatars) Save(ctx context.Context, ownerID string, r io.Reader) (string, error) {
	m.saved++
	return "/storage/profile/" + ownerID + "/a.png", nil
}

var _ = Describe("Directory Service", func() {
	var (
		ctx           = context.Background()
		repo          *mockRepository
		provisionings *mockProvisionings
		identities    *mockIdentities
		avatars       *mockAvatars
		service       *Service
		admin         = &coreuser.Principal{ID: "admin", Role: coreuser.RoleAdmin, Division: "Ops"}
		lead          = &coreuser.Principal{ID: "lead", Role: coreuser.RoleTeamLead, Division: "Eng"}
		validDTO      CreateUserDTO
	)

	newService := func(cfg internal.DirectoryConfig) *Service {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		return NewService(Dependencies{
			Users:         repo,
			Provisionings: provisionings,
			Identities:    identities,
			Divisions:     mockDivisions{"Eng", "Ops"},
			Avatars:       avatars,
		}, cfg, logger)
	}

	BeforeEach(func() {
		repo = newMockRepository()
		provisionings = &mockProvisionings{runs: map[string]*userDatamodel.Provisioning{}}
		identities = newMockIdentities()
		avatars = &mockAvatars{}
		service = newService(internal.DirectoryConfig{})
		validDTO = CreateUserDTO{
			Name:      "Nia Nakamura",
			Email:     " Nia@Example.com ",
			Password:  "secret1",
			Role:      "Team Member",
			Division:  "eng",
			Specialty: "Backend",
		}
	})

	Describe("CreateUser", func() {
		It("provisions identity and directory record together", func() {
			u, err := service.CreateUser(ctx, admin, validDTO)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ID).To(Equal("ident-1"))
			Expect(u.Email).To(Equal("nia@example.com"))
			Expect(u.Role).To(Equal(coreuser.RoleTeamMember))
			Expect(u.Division).To(Equal("Eng"))
			Expect(u.Status).To(Equal(coreuser.StatusActive))

			Expect(provisionings.runs).To(HaveLen(1))
			for _, run := range provisionings.runs {
				Expect(run.State).To(Equal(string(ProvisioningDirectoryWritten)))
				Expect(*run.IdentityID).To(Equal("ident-1"))
			}
		})

		It("is admin only", func() {
			_, err := service.CreateUser(ctx, lead, validDTO)
			Expect(err).To(MatchError(internal.ErrForbidden))
			Expect(identities.emails).To(BeEmpty())
		})

		It("reports weak passwords without provisioning", func() {
			validDTO.Password = "12345"
			_, err := service.CreateUser(ctx, admin, validDTO)
			Expect(errors.Is(err, internal.ErrWeakCredential)).To(BeTrue())
			Expect(provisionings.runs).To(BeEmpty())
		})

		It("accepts passwords at the login minimum", func() {
			validDTO.Password = strings.Repeat("p", auth.MinPasswordLength)
			Expect(validDTO.Validate()).To(BeNil())

			validDTO.Password = strings.Repeat("p", auth.MinPasswordLength-1)
			Expect(errors.Is(validDTO.Validate(), internal.ErrWeakCredential)).To(BeTrue())
		})

		It("reports field errors for malformed input", func() {
			validDTO.Name = "N"
			validDTO.Email = "nope"
			validDTO.Division = ""
			_, err := service.CreateUser(ctx, admin, validDTO)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			details := appErr.Details.(internal.ValidationErrors)
			fields := []string{}
			for _, e := range details.Errors {
				fields = append(fields, e.Field)
			}
			Expect(fields).To(ConsistOf("name", "email", "division"))
		})

		It("rejects free-form role strings", func() {
			validDTO.Role = "user"
			_, err := service.CreateUser(ctx, admin, validDTO)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Details.(internal.ValidationErrors).Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidRole)))
		})

		It("rejects unknown divisions", func() {
			validDTO.Division = "Marketing"
			_, err := service.CreateUser(ctx, admin, validDTO)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("surfaces duplicate emails from the identity provider and marks the run failed", func() {
			identities.emails["nia@example.com"] = "old"
			_, err := service.CreateUser(ctx, admin, validDTO)
			Expect(errors.Is(err, internal.ErrDuplicateEmail)).To(BeTrue())
			for _, run := range provisionings.runs {
				Expect(run.State).To(Equal(string(ProvisioningFailed)))
			}
		})

		It("surfaces the orphaned identity state when the directory write fails", func() {
			repo.failCreate = true
			_, err := service.CreateUser(ctx, admin, validDTO)
			Expect(errors.Is(err, internal.ErrProvisioningIncomplete)).To(BeTrue())

			Expect(provisionings.runs).To(HaveLen(1))
			for _, run := range provisionings.runs {
				Expect(run.State).To(Equal(string(ProvisioningIdentityCreated)))
				Expect(run.LastError).To(ContainSubstring("write timeout"))
			}
		})
	})

	Describe("Reconcile", func() {
		It("finishes runs left in identity_created", func() {
			repo.failCreate = true
			_, err := service.CreateUser(ctx, admin, validDTO)
			Expect(err).To(HaveOccurred())

			repo.failCreate = false
			result, err := service.Reconcile(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Examined).To(Equal(1))
			Expect(result.Completed).To(Equal(1))

			u, err := service.GetUserByEmail(ctx, "nia@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ID).To(Equal("ident-1"))

			result, err = service.Reconcile(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Examined).To(Equal(0))
		})

		It("keeps failing runs pending", func() {
			repo.failCreate = true
			_, _ = service.CreateUser(ctx, admin, validDTO)

			result, err := service.Reconcile(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Failed).To(Equal(1))
			Expect(result.Pending).To(HaveLen(1))
			Expect(provisionings.runs[result.Pending[0]].Attempts).To(Equal(2))
		})
	})

	Describe("ListUsers", func() {
		BeforeEach(func() {
			eng, ops := "Eng", "Ops"
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			repo.users["u1"] = &userDatamodel.User{ID: "u1", Email: "a@x.io", Role: "team_member", Division: &eng, Status: "active", JoinedAt: base}
			repo.users["u2"] = &userDatamodel.User{ID: "u2", Email: "b@x.io", Role: "team_lead", Division: &eng, Status: "active", JoinedAt: base.Add(time.Hour)}
			repo.users["u3"] = &userDatamodel.User{ID: "u3", Email: "c@x.io", Role: "admin", Division: &ops, Status: "active", JoinedAt: base.Add(2 * time.Hour)}
		})

		It("orders by join date descending", func() {
			users, err := service.ListUsers(ctx, admin, ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(3))
			Expect(users[0].ID).To(Equal("u3"))
			Expect(users[2].ID).To(Equal("u1"))
		})

		It("filters by role", func() {
			users, err := service.ListUsers(ctx, admin, ListFilter{Role: coreuser.RoleTeamLead})
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			Expect(users[0].ID).To(Equal("u2"))
		})

		It("scopes non-admins to their division", func() {
			users, err := service.ListUsers(ctx, lead, ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))

			_, err = service.ListUsers(ctx, lead, ListFilter{Division: "Ops"})
			Expect(err).To(MatchError(internal.ErrForbidden))
		})

		It("resolves ids in order without duplicates", func() {
			users, err := service.GetByIDs(ctx, []string{"u2", "missing", "u1", "u2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))
			Expect(users[0].ID).To(Equal("u2"))
			Expect(users[1].ID).To(Equal("u1"))
		})

		It("looks up roles and fails closed for inactive records", func() {
			role, division, err := service.LookupRole(ctx, "u2")
			Expect(err).NotTo(HaveOccurred())
			Expect(role).To(Equal(coreuser.RoleTeamLead))
			Expect(division).To(Equal("Eng"))

			repo.users["u2"].Status = "inactive"
			role, _, err = service.LookupRole(ctx, "u2")
			Expect(err).NotTo(HaveOccurred())
			Expect(role).To(BeEmpty())

			_, _, err = service.LookupRole(ctx, "ghost")
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})
	})

	Describe("UpdateUser", func() {
		BeforeEach(func() {
			eng := "Eng"
			repo.users["lead"] = &userDatamodel.User{ID: "lead", Name: "Lee", Email: "lee@x.io", Role: "team_lead", Division: &eng, Status: "active"}
		})

		It("lets owners edit their profile and syncs the identity", func() {
			name := "Lee Park"
			u, err := service.UpdateUser(ctx, lead, "lead", UpdateUserDTO{Name: &name})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Name).To(Equal("Lee Park"))
			Expect(identities.profiles["lead"]).To(Equal("Lee Park|"))
		})

		It("keeps role changes admin only", func() {
			role := "Admin"
			_, err := service.UpdateUser(ctx, lead, "lead", UpdateUserDTO{Role: &role})
			Expect(err).To(MatchError(internal.ErrForbidden))

			u, err := service.UpdateUser(ctx, admin, "lead", UpdateUserDTO{Role: &role})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Role).To(Equal(coreuser.RoleAdmin))
		})

		It("stores uploaded avatars", func() {
			u, err := service.UploadAvatar(ctx, lead, "lead", strings.NewReader("img"))
			Expect(err).NotTo(HaveOccurred())
			Expect(u.AvatarURL).To(Equal("/storage/profile/lead/a.png"))
			Expect(avatars.saved).To(Equal(1))
		})
	})

	Describe("DeleteUser", func() {
		BeforeEach(func() {
			repo.users["u1"] = &userDatamodel.User{ID: "u1", Email: "a@x.io", Role: "team_member", Status: "active"}
		})

		It("removes the record and reports NotFound afterwards", func() {
			Expect(service.DeleteUser(ctx, admin, "u1")).To(Succeed())
			Expect(service.DeleteUser(ctx, admin, "u1")).To(MatchError(internal.ErrUserNotFound))
			Expect(identities.disabled).To(BeEmpty())
		})

		It("revokes the identity when configured", func() {
			service = newService(internal.DirectoryConfig{RevokeIdentityOnDelete: true})
			Expect(service.DeleteUser(ctx, admin, "u1")).To(Succeed())
			Expect(identities.disabled["u1"]).To(BeTrue())
		})

		It("is admin only", func() {
			Expect(service.DeleteUser(ctx, lead, "u1")).To(MatchError(internal.ErrForbidden))
			Expect(repo.users).To(HaveKey("u1"))
		})
	})
})

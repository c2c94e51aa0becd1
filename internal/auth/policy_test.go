package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/task-dashboard/internal"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var (
	admin  = &coreuser.Principal{ID: "a", Role: coreuser.RoleAdmin, Division: "Ops"}
	lead   = &coreuser.Principal{ID: "l", Role: coreuser.RoleTeamLead, Division: "Eng"}
	member = &coreuser.Principal{ID: "m", Role: coreuser.RoleTeamMember, Division: "Eng"}
	orphan = &coreuser.Principal{ID: "o"}
)

var _ = ginkgo.Describe("Policy", func() {
	pol := NewPolicy()
	engTask := TaskScope{Division: "Eng", AssigneeIDs: []string{"m"}}
	otherTask := TaskScope{Division: "Eng", AssigneeIDs: []string{"x"}}
	qaTask := TaskScope{Division: "QA"}

	ginkgo.It("lets admins create tasks anywhere", func() {
		gomega.Expect(pol.CanCreateTask(admin, "QA")).To(gomega.BeTrue())
	})

	ginkgo.It("limits team leads to their own division", func() {
		gomega.Expect(pol.CanCreateTask(lead, "eng")).To(gomega.BeTrue())
		gomega.Expect(pol.CanCreateTask(lead, "QA")).To(gomega.BeFalse())
	})

	ginkgo.It("never lets team members create tasks", func() {
		gomega.Expect(pol.CanCreateTask(member, "Eng")).To(gomega.BeFalse())
		gomega.Expect(pol.CanCreateAnyTask(member)).To(gomega.BeFalse())
	})

	ginkgo.It("lets team members move only their assigned tasks", func() {
		gomega.Expect(pol.CanUpdateTaskStatus(member, engTask)).To(gomega.BeTrue())
		gomega.Expect(pol.CanUpdateTaskStatus(member, otherTask)).To(gomega.BeFalse())
		gomega.Expect(pol.CanViewTask(member, otherTask)).To(gomega.BeTrue())
		gomega.Expect(pol.CanDeleteTask(member, engTask)).To(gomega.BeFalse())
	})

	ginkgo.It("scopes views by division", func() {
		gomega.Expect(pol.CanViewTask(lead, qaTask)).To(gomega.BeFalse())
		gomega.Expect(pol.CanViewTask(admin, qaTask)).To(gomega.BeTrue())
	})

	ginkgo.It("fails closed without a directory record", func() {
		gomega.Expect(pol.CanViewDivision(orphan, "")).To(gomega.BeFalse())
		gomega.Expect(pol.CanCreateAnyTask(orphan)).To(gomega.BeFalse())
		gomega.Expect(pol.CanEditUser(orphan, "o")).To(gomega.BeTrue())
	})

	ginkgo.It("converts denials into Forbidden", func() {
		gomega.Expect(Require(false)).To(gomega.MatchError(internal.ErrForbidden))
		gomega.Expect(Require(true)).To(gomega.Succeed())
	})
})

type fakeScopes map[string]*TaskScope

func (f fakeScopes) TaskScope(ctx context.Context, id string) (*TaskScope, error) {
	return f[id], nil
}

var _ = ginkgo.Describe("RBACAuthorization", func() {
	var router *chi.Mux

	serve := func(p *coreuser.Principal, method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		if p != nil {
			req = req.WithContext(internal.ContextWithPrincipal(req.Context(), p))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	ginkgo.BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		rbac := NewRBACAuthorization(NewPolicy(), fakeScopes{"t1": {Division: "Eng"}}, logger)
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

		router = chi.NewRouter()
		router.With(rbac.RequireAdmin()).Get("/admin", ok)
		router.With(rbac.RequireTaskCreator()).Post("/tasks", ok)
		router.With(rbac.RequireDivisionAccess("name")).Get("/divisions/{name}", ok)
		router.With(rbac.RequireTaskAccess("id")).Get("/tasks/{id}", ok)
	})

	ginkgo.It("returns 401 without a principal", func() {
		gomega.Expect(serve(nil, http.MethodGet, "/admin")).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("guards admin routes", func() {
		gomega.Expect(serve(admin, http.MethodGet, "/admin")).To(gomega.Equal(http.StatusOK))
		gomega.Expect(serve(lead, http.MethodGet, "/admin")).To(gomega.Equal(http.StatusForbidden))
	})

	ginkgo.It("rejects team members before task creation reaches a handler", func() {
		gomega.Expect(serve(member, http.MethodPost, "/tasks")).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(serve(lead, http.MethodPost, "/tasks")).To(gomega.Equal(http.StatusOK))
	})

	ginkgo.It("scopes division routes", func() {
		gomega.Expect(serve(member, http.MethodGet, "/divisions/Eng")).To(gomega.Equal(http.StatusOK))
		gomega.Expect(serve(member, http.MethodGet, "/divisions/QA")).To(gomega.Equal(http.StatusForbidden))
	})

	ginkgo.It("returns 404 for unknown tasks and 403 for foreign ones", func() {
		gomega.Expect(serve(member, http.MethodGet, "/tasks/t1")).To(gomega.Equal(http.StatusOK))
		gomega.Expect(serve(member, http.MethodGet, "/tasks/missing")).To(gomega.Equal(http.StatusNotFound))
		outsider := &coreuser.Principal{ID: "q", Role: coreuser.RoleTeamMember, Division: "QA"}
		gomega.Expect(serve(outsider, http.MethodGet, "/tasks/t1")).To(gomega.Equal(http.StatusForbidden))
	})
})

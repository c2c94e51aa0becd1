package division_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/task-dashboard/internal"
	divisionDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/division"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/division"
	divisionPostgres "github.com/frahmantamala/task-dashboard/internal/division/postgres"
	"github.com/frahmantamala/task-dashboard/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("Division Handler Integration", func() {
	var (
		service *division.Service
		handler *division.Handler
		admin   = &coreuser.Principal{ID: "a", Role: coreuser.RoleAdmin, Division: "Ops"}
		lead    = &coreuser.Principal{ID: "l", Role: coreuser.RoleTeamLead, Division: "Eng"}
	)

	create := func(p *coreuser.Principal, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/divisions", bytes.NewBufferString(body))
		req = req.WithContext(internal.ContextWithPrincipal(req.Context(), p))
		w := httptest.NewRecorder()
		handler.CreateDivision(w, req)
		return w
	}

	list := func() []*division.Division {
		req := httptest.NewRequest(http.MethodGet, "/divisions", nil)
		w := httptest.NewRecorder()
		handler.ListDivisions(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp division.DivisionsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp.Divisions
	}

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&divisionDatamodel.Division{})).To(Succeed())

		service = division.NewService(divisionPostgres.NewDivisionRepository(db), slogger)
		handler = division.NewHandler(&transport.BaseHandler{Logger: slogger}, service)
	})

	It("round-trips a division", func() {
		w := create(admin, `{"name":"QA","description":"desc"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		divisions := list()
		Expect(divisions).To(HaveLen(1))
		Expect(divisions[0].Name).To(Equal("QA"))
		Expect(divisions[0].Description).To(Equal("desc"))
	})

	It("dedupes names case-insensitively", func() {
		Expect(create(admin, `{"name":"Engineering"}`).Code).To(Equal(http.StatusCreated))

		w := create(admin, `{"name":"engineering"}`)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("DUPLICATE_NAME"))
		Expect(list()).To(HaveLen(1))
	})

	It("lists divisions sorted by name", func() {
		for _, name := range []string{"Sales", "design", "Engineering"} {
			Expect(create(admin, `{"name":"`+name+`"}`).Code).To(Equal(http.StatusCreated))
		}

		var names []string
		for _, d := range list() {
			names = append(names, d.Name)
		}
		Expect(names).To(Equal([]string{"design", "Engineering", "Sales"}))
	})

	It("validates name and description lengths", func() {
		w := create(admin, `{"name":"Q"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("at least 2 characters"))

		long := make([]byte, 201)
		for i := range long {
			long[i] = 'x'
		}
		w = create(admin, `{"name":"QA","description":"`+string(long)+`"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("is admin only", func() {
		Expect(create(lead, `{"name":"QA"}`).Code).To(Equal(http.StatusForbidden))
		Expect(list()).To(BeEmpty())
	})

	It("resolves canonical names", func() {
		Expect(create(admin, `{"name":"Eng"}`).Code).To(Equal(http.StatusCreated))

		name, err := service.CanonicalName(context.Background(), " eNg ")
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("Eng"))

		_, err = service.CanonicalName(context.Background(), "Nope")
		Expect(err).To(MatchError(internal.ErrDivisionNotFound))
	})
})

package workflow_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/task-dashboard/internal"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/transport"
	"github.com/frahmantamala/task-dashboard/internal/workflow"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Workflow Handler", func() {
	var (
		f      *fixture
		router chi.Router
		actor  *coreuser.Principal
	)

	BeforeEach(func() {
		f = newFixture()
		actor = engLead

		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		h := workflow.NewHandler(transport.NewBaseHandler(slogger), f.controller)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithPrincipal(r.Context(), actor)))
			})
		})
		router.Post("/tasks", h.CreateTask)
		router.Get("/tasks/{id}", h.GetTask)
		router.Patch("/tasks/{id}/status", h.UpdateTaskStatus)
		router.Delete("/tasks/{id}", h.DeleteTask)
		router.Get("/divisions/{name}/tasks/stream", h.StreamDivisionTasks)
		router.Get("/divisions/{name}/deadlines", h.Deadlines)
	})

	AfterEach(func() {
		f.bus.Wait()
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	createBody := `{"title":"Ship","description":"now","due_date":"` + day(1) + `","priority":"high","division":"Eng","assignee_type":"individual","assignee_ids":["e1"]}`

	It("creates a task and reports the notification status", func() {
		w := do(http.MethodPost, "/tasks", createBody)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var result workflow.CreateTaskResult
		Expect(json.NewDecoder(w.Body).Decode(&result)).To(Succeed())
		Expect(result.TaskID).NotTo(BeEmpty())
		Expect(string(result.Notification.Status)).To(Equal("sent"))

		w = do(http.MethodGet, "/tasks/"+result.TaskID, "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("answers 403 for team members", func() {
		actor = engMember
		w := do(http.MethodPost, "/tasks", createBody)
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("requires confirm=true to delete", func() {
		w := do(http.MethodPost, "/tasks", createBody)
		var result workflow.CreateTaskResult
		Expect(json.NewDecoder(w.Body).Decode(&result)).To(Succeed())

		w = do(http.MethodDelete, "/tasks/"+result.TaskID, "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("CONFIRMATION_REQUIRED"))

		Expect(do(http.MethodDelete, "/tasks/"+result.TaskID+"?confirm=true", "").Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodDelete, "/tasks/"+result.TaskID+"?confirm=true", "").Code).To(Equal(http.StatusNotFound))
	})

	It("moves tasks through the status endpoint", func() {
		w := do(http.MethodPost, "/tasks", createBody)
		var result workflow.CreateTaskResult
		Expect(json.NewDecoder(w.Body).Decode(&result)).To(Succeed())

		w = do(http.MethodPatch, "/tasks/"+result.TaskID+"/status", `{"status":"completed"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"status":"done"`))
	})

	It("rejects a malformed deadline limit", func() {
		Expect(do(http.MethodGet, "/divisions/Eng/deadlines?limit=x", "").Code).To(Equal(http.StatusBadRequest))
	})

	It("streams snapshots as server-sent events", func() {
		server := httptest.NewServer(router)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/divisions/Eng/tasks/stream", nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

		reader := bufio.NewReader(resp.Body)
		readEvent := func() string {
			var lines []string
			for {
				line, err := reader.ReadString('\n')
				Expect(err).NotTo(HaveOccurred())
				line = strings.TrimRight(line, "\n")
				if line == "" {
					return strings.Join(lines, "\n")
				}
				lines = append(lines, line)
			}
		}

		Expect(readEvent()).To(Equal("event: snapshot\ndata: {\"tasks\":[]}"))

		Expect(do(http.MethodPost, "/tasks", createBody).Code).To(Equal(http.StatusCreated))
		next := readEvent()
		Expect(next).To(HavePrefix("event: snapshot"))
		Expect(next).To(ContainSubstring(`"title":"Ship"`))
	})

	It("refuses streams for other divisions", func() {
		actor = qaMember
		Expect(do(http.MethodGet, "/divisions/Eng/tasks/stream", "").Code).To(Equal(http.StatusForbidden))
	})
})

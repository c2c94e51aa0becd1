package task_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/frahmantamala/task-dashboard/internal"
	taskDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/task"
	"github.com/frahmantamala/task-dashboard/internal/core/events"
	"github.com/frahmantamala/task-dashboard/internal/task"
	taskPostgres "github.com/frahmantamala/task-dashboard/internal/task/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type snapshots struct {
	mu   sync.Mutex
	sets [][]*task.Task
}

func (s *snapshots) record(tasks []*task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, tasks)
}

func (s *snapshots) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}

func (s *snapshots) last() []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[len(s.sets)-1]
}

func day(offset int) string {
	return time.Now().UTC().AddDate(0, 0, offset).Format("2006-01-02")
}

var _ = Describe("Task Service", func() {
	var (
		ctx     = context.Background()
		bus     *events.EventBus
		service *task.Service
		feed    *task.Feed
	)

	newDTO := func(title, division string) task.CreateTaskDTO {
		return task.CreateTaskDTO{
			Title:        title,
			Description:  "details",
			DueDate:      day(1),
			Priority:     "high",
			Division:     division,
			AssigneeType: "individual",
			AssigneeIDs:  []string{"u1"},
			Tags:         []string{"backend"},
		}
	}

	create := func(title, division string) *task.Task {
		t, err := service.CreateTask(ctx, newDTO(title, division), []task.Assignee{{ID: "u1", Name: "Uma"}}, "lead")
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&taskDatamodel.Task{}, &taskDatamodel.TaskAssignee{}, &taskDatamodel.Comment{})).To(Succeed())

		bus = events.NewEventBus(slogger)
		service = task.NewService(taskPostgres.NewTaskRepository(db), bus, slogger)
		feed = task.NewFeed(service, bus, slogger)
	})

	AfterEach(func() {
		bus.Wait()
	})

	Describe("CreateTask", func() {
		It("persists the task in the initial status with assignees and tags", func() {
			t := create("Ship", "Eng")
			Expect(t.Status).To(Equal(task.StatusTodo))

			got, err := service.GetByID(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Ship"))
			Expect(got.Priority).To(Equal(task.PriorityHigh))
			Expect(got.Assignees).To(Equal([]task.Assignee{{ID: "u1", Name: "Uma"}}))
			Expect(got.Tags).To(Equal([]string{"backend"}))
			Expect(got.DueDate.Format("2006-01-02")).To(Equal(day(1)))
		})

		It("rejects a due date of yesterday before persisting", func() {
			dto := newDTO("Late", "Eng")
			dto.DueDate = day(-1)
			_, err := service.CreateTask(ctx, dto, nil, "lead")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))

			tasks, err := service.ListByDivision(ctx, "Eng")
			Expect(err).NotTo(HaveOccurred())
			Expect(tasks).To(BeEmpty())
		})
	})

	Describe("UpdateTaskStatus", func() {
		It("allows any transition including Done back to Todo", func() {
			t := create("Loop", "Eng")
			for _, st := range []task.Status{task.StatusDone, task.StatusTodo, task.StatusInReview, task.StatusInProgress} {
				_, err := service.UpdateTaskStatus(ctx, t.ID, st, "m")
				Expect(err).NotTo(HaveOccurred())

				got, err := service.GetByID(ctx, t.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Status).To(Equal(st))
			}
		})

		It("reports NotFound for unknown tasks", func() {
			_, err := service.UpdateTaskStatus(ctx, "nope", task.StatusDone, "m")
			Expect(err).To(MatchError(internal.ErrTaskNotFound))
		})
	})

	Describe("UpdateTask", func() {
		It("edits fields without touching status or assignees", func() {
			t := create("Draft", "Eng")
			title, priority := "Final", "low"
			_, err := service.UpdateTask(ctx, t.ID, task.UpdateTaskDTO{Title: &title, Priority: &priority}, "lead")
			Expect(err).NotTo(HaveOccurred())

			got, err := service.GetByID(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Final"))
			Expect(got.Priority).To(Equal(task.PriorityLow))
			Expect(got.Status).To(Equal(task.StatusTodo))
			Expect(got.Assignees).To(HaveLen(1))
		})
	})

	Describe("DeleteTask", func() {
		It("returns NotFound on the second call", func() {
			t := create("Gone", "Eng")
			_, err := service.AddComment(ctx, t.ID, task.Assignee{ID: "u1", Name: "Uma"}, task.CreateCommentDTO{Text: "bye"})
			Expect(err).NotTo(HaveOccurred())

			Expect(service.DeleteTask(ctx, t.ID, "lead")).To(Succeed())
			Expect(service.DeleteTask(ctx, t.ID, "lead")).To(MatchError(internal.ErrTaskNotFound))
		})
	})

	Describe("Comments", func() {
		It("appends comments in order", func() {
			t := create("Talk", "Eng")
			for _, text := range []string{"first", "second"} {
				_, err := service.AddComment(ctx, t.ID, task.Assignee{ID: "u1", Name: "Uma"}, task.CreateCommentDTO{Text: text})
				Expect(err).NotTo(HaveOccurred())
				time.Sleep(2 * time.Millisecond)
			}

			comments, err := service.ListComments(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(comments).To(HaveLen(2))
			Expect(comments[0].Text).To(Equal("first"))
			Expect(comments[1].AuthorName).To(Equal("Uma"))
		})

		It("rejects empty comments and unknown tasks", func() {
			t := create("Quiet", "Eng")
			_, err := service.AddComment(ctx, t.ID, task.Assignee{ID: "u1"}, task.CreateCommentDTO{Text: "  "})
			Expect(err).To(HaveOccurred())

			_, err = service.AddComment(ctx, "nope", task.Assignee{ID: "u1"}, task.CreateCommentDTO{Text: "hi"})
			Expect(err).To(MatchError(internal.ErrTaskNotFound))
		})
	})

	Describe("Feed", func() {
		It("delivers the initial snapshot synchronously", func() {
			create("Existing", "Eng")

			var got snapshots
			unsubscribe, err := feed.SubscribeByDivision(ctx, "eng", got.record)
			Expect(err).NotTo(HaveOccurred())
			defer unsubscribe()

			Expect(got.count()).To(Equal(1))
			Expect(got.last()).To(HaveLen(1))
		})

		It("redelivers the full snapshot on every change in scope", func() {
			var got snapshots
			unsubscribe, err := feed.SubscribeByDivision(ctx, "Eng", got.record)
			Expect(err).NotTo(HaveOccurred())
			defer unsubscribe()

			t := create("One", "Eng")
			Eventually(got.count).Should(Equal(2))
			Expect(got.last()).To(HaveLen(1))
			Expect(got.last()[0].ID).To(Equal(t.ID))

			create("Two", "Eng")
			Eventually(got.count).Should(Equal(3))
			Expect(got.last()).To(HaveLen(2))

			_, err = service.UpdateTaskStatus(ctx, t.ID, task.StatusDone, "m")
			Expect(err).NotTo(HaveOccurred())
			Eventually(got.count).Should(Equal(4))

			Expect(service.DeleteTask(ctx, t.ID, "lead")).To(Succeed())
			Eventually(got.count).Should(Equal(5))
			Expect(got.last()).To(HaveLen(1))
		})

		It("ignores other divisions", func() {
			var got snapshots
			unsubscribe, err := feed.SubscribeByDivision(ctx, "Eng", got.record)
			Expect(err).NotTo(HaveOccurred())
			defer unsubscribe()

			create("Elsewhere", "QA")
			bus.Wait()
			Consistently(got.count, 100*time.Millisecond).Should(Equal(1))
		})

		It("stops after unsubscribe", func() {
			var got snapshots
			unsubscribe, err := feed.SubscribeByDivision(ctx, "Eng", got.record)
			Expect(err).NotTo(HaveOccurred())
			unsubscribe()
			unsubscribe()

			Expect(bus.HandlerCount(events.EventTypeTaskCreated)).To(Equal(0))
			create("Late", "Eng")
			bus.Wait()
			Expect(got.count()).To(Equal(1))
		})

		It("stops when the context ends", func() {
			subCtx, cancel := context.WithCancel(ctx)
			var got snapshots
			_, err := feed.SubscribeByDivision(subCtx, "Eng", got.record)
			Expect(err).NotTo(HaveOccurred())

			cancel()
			Eventually(func() int { return bus.HandlerCount(events.EventTypeTaskUpdated) }).Should(Equal(0))
		})
	})
})

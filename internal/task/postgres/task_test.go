package postgres_test

import (
	"context"
	"testing"
	"time"

	taskDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/task"
	"github.com/frahmantamala/task-dashboard/internal/task"
	taskPostgres "github.com/frahmantamala/task-dashboard/internal/task/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestTaskPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Task Postgres Suite")
}

func openDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(&taskDatamodel.Task{}, &taskDatamodel.TaskAssignee{}, &taskDatamodel.Comment{})).To(Succeed())
	return db
}

var _ = Describe("TaskRepository", func() {
	var (
		repo task.RepositoryAPI
		ctx  = context.Background()
		base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	)

	seed := func(id, division string, created time.Time, assignees ...string) {
		row := &taskDatamodel.Task{
			ID: id, Title: "Task " + id, Description: "d", Status: "todo", Priority: "medium",
			DueDate: base.Add(72 * time.Hour), Division: division, AssigneeType: "individual",
			Tags: datatypes.JSON(`["api"]`), CreatedBy: "lead", CreatedAt: created, UpdatedAt: created,
		}
		for i, a := range assignees {
			row.Assignees = append(row.Assignees, taskDatamodel.TaskAssignee{TaskID: id, UserID: a, UserName: a, Position: i})
		}
		Expect(repo.Create(ctx, row)).To(Succeed())
	}

	comment := func(id, taskID string, at time.Time) {
		Expect(repo.AddComment(ctx, &taskDatamodel.Comment{
			ID: id, TaskID: taskID, AuthorID: "u1", AuthorName: "Ana", Text: "note " + id, CreatedAt: at,
		})).To(Succeed())
	}

	BeforeEach(func() {
		repo = taskPostgres.NewTaskRepository(openDB())
		seed("t1", "Eng", base, "u2", "u1")
		seed("t2", "eng", base.Add(time.Hour))
		seed("t3", "Ops", base.Add(2*time.Hour))
	})

	It("loads a task with ordered assignees", func() {
		t, err := repo.GetByID(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Title).To(Equal("Task t1"))
		Expect(t.Assignees).To(HaveLen(2))
		Expect(t.Assignees[0].UserID).To(Equal("u2"))
		Expect(t.Assignees[1].UserID).To(Equal("u1"))
	})

	It("returns nil for unknown tasks", func() {
		t, err := repo.GetByID(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeNil())
	})

	It("lists a division case-insensitively, newest first", func() {
		tasks, err := repo.ListByDivision(ctx, "ENG")
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0].ID).To(Equal("t2"))
		Expect(tasks[1].ID).To(Equal("t1"))
		Expect(tasks[1].Assignees).To(HaveLen(2))

		none, err := repo.ListByDivision(ctx, "Design")
		Expect(err).NotTo(HaveOccurred())
		Expect(none).To(BeEmpty())
	})

	It("updates status and reports unknown ids", func() {
		at := base.Add(5 * time.Hour)
		ok, err := repo.UpdateStatus(ctx, "t1", "done", at)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		t, _ := repo.GetByID(ctx, "t1")
		Expect(t.Status).To(Equal("done"))
		Expect(t.UpdatedAt.Equal(at)).To(BeTrue())

		ok, err = repo.UpdateStatus(ctx, "missing", "done", at)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("updates editable fields without touching assignees or division", func() {
		t, _ := repo.GetByID(ctx, "t1")
		t.Title = "Renamed"
		t.Division = "Ops"
		t.Assignees = nil
		ok, err := repo.Update(ctx, t)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		got, _ := repo.GetByID(ctx, "t1")
		Expect(got.Title).To(Equal("Renamed"))
		Expect(got.Division).To(Equal("Eng"))
		Expect(got.Assignees).To(HaveLen(2))
	})

	It("lists comments oldest first", func() {
		comment("c2", "t1", base.Add(2*time.Minute))
		comment("c1", "t1", base.Add(time.Minute))
		comment("c3", "t2", base.Add(time.Minute))

		comments, err := repo.ListComments(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(comments).To(HaveLen(2))
		Expect(comments[0].ID).To(Equal("c1"))
		Expect(comments[1].ID).To(Equal("c2"))
	})

	It("deletes a task with its assignees and comments", func() {
		comment("c1", "t1", base.Add(time.Minute))
		comment("c2", "t2", base.Add(time.Minute))

		ok, err := repo.Delete(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		t, err := repo.GetByID(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeNil())

		comments, err := repo.ListComments(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(comments).To(BeEmpty())

		others, _ := repo.ListComments(ctx, "t2")
		Expect(others).To(HaveLen(1))

		ok, err = repo.Delete(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("drops assignee rows of deleted tasks", func() {
		_, err := repo.Delete(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())

		// Re-creating the id with the same assignees hits no stale primary keys.
		seed("t1", "Eng", base, "u2", "u1")
		t, _ := repo.GetByID(ctx, "t1")
		Expect(t.Assignees).To(HaveLen(2))
	})
})

package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/frahmantamala/task-dashboard/internal"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/division"
	"github.com/frahmantamala/task-dashboard/internal/user"
	"github.com/spf13/cobra"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed an admin account, starter divisions and a team lead for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initializeDependencies()
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		ctx := context.Background()
		if clearData {
			if err := clearSeedTables(deps); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			deps.Logger.Info("cleared existing data")
		}

		// The first admin has nobody to create it, so seeding acts as one.
		seeder := &coreuser.Principal{ID: "seeder", Email: seedAdminEmail, Role: coreuser.RoleAdmin}

		divisions := []division.CreateDivisionDTO{
			{Name: "Engineering", Description: "Builds and runs the product"},
			{Name: "Design", Description: "Product and brand design"},
			{Name: "Marketing", Description: "Campaigns and communications"},
		}
		for _, dto := range divisions {
			_, err := deps.Divisions.CreateDivision(ctx, seeder, dto)
			switch {
			case err == nil:
				deps.Logger.Info("seeded division", "name", dto.Name)
			case errors.Is(err, internal.ErrDuplicateName):
				deps.Logger.Info("division already exists", "name", dto.Name)
			default:
				log.Fatalf("failed to seed division %s: %v", dto.Name, err)
			}
		}

		users := []user.CreateUserDTO{
			{Name: "Admin", Email: seedAdminEmail, Password: seedAdminPassword, Role: string(coreuser.RoleAdmin), Division: "Engineering", Specialty: "Administration"},
			{Name: "Erin Lead", Email: "lead@crooked9ine.com", Password: seedAdminPassword, Role: string(coreuser.RoleTeamLead), Division: "Engineering", Specialty: "Backend"},
			{Name: "Milo Member", Email: "member@crooked9ine.com", Password: seedAdminPassword, Role: string(coreuser.RoleTeamMember), Division: "Engineering", Specialty: "Frontend"},
		}
		for _, dto := range users {
			if _, err := deps.Users.GetUserByEmail(ctx, dto.Email); err == nil {
				deps.Logger.Info("user already exists", "email", dto.Email)
				continue
			} else if !errors.Is(err, internal.ErrUserNotFound) {
				log.Fatalf("failed to look up %s: %v", dto.Email, err)
			}

			u, err := deps.Users.CreateUser(ctx, seeder, dto)
			if err != nil {
				log.Fatalf("failed to seed user %s: %v", dto.Email, err)
			}
			deps.Logger.Info("seeded user", "email", u.Email, "role", u.Role)
		}
	},
}

func clearSeedTables(deps *Dependencies) error {
	tables := []string{"task_comments", "task_assignees", "tasks", "provisionings", "users", "identities", "divisions"}
	for _, table := range tables {
		if err := deps.Gorm.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@crooked9ine.com", "Email of the seeded admin")
	seedCmd.Flags().StringVar(&seedAdminPassword, "password", "password", "Password for every seeded account")
}

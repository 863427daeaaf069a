// Package main seeds the timetrack database with reference roles and
// sample accounts for development.
package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tempora-hq/timetrack-api/internal/config"
	"github.com/tempora-hq/timetrack-api/internal/models"
)

var roles = []models.Role{
	{
		ID:          "admin",
		Name:        "Administrator",
		Description: "Full system access",
		Permissions: []string{
			"read:own_time", "read:department_time", "read:all_time",
			"write:time_logs", "write:projects", "write:tasks", "write:expenses",
			"admin:users", "admin:reports", "admin:audit",
		},
	},
	{
		ID:          "manager",
		Name:        "Manager",
		Description: "Team and project management",
		Permissions: []string{
			"read:own_time", "read:department_time", "write:time_logs",
			"write:projects", "write:tasks", "read:department_expenses",
			"admin:department",
		},
	},
	{
		ID:          "developer",
		Name:        "Developer",
		Description: "Developer access",
		Permissions: []string{
			"read:own_time", "write:time_logs", "read:projects",
			"read:tasks", "write:own_expenses",
		},
	},
	{
		ID:          "guest",
		Name:        "Guest",
		Description: "Limited read-only access",
		Permissions: []string{"read:own_time", "read:projects"},
	},
	{
		ID:          "employee",
		Name:        "Employee",
		Description: "Default role for provisioned accounts, no permissions",
		Permissions: []string{},
	},
}

type seedUser struct {
	id         string
	username   string
	email      string
	password   string
	role       string
	department string
	hired      string
	consents   []string
}

var users = []seedUser{
	{
		id: "admin-user", username: "admin", email: "admin@example.com",
		password: "admin123", role: "admin", department: "Management",
		hired:    "2020-01-15",
		consents: []string{models.ConsentTimeTracking, models.ConsentExpenseProcessing},
	},
	{
		id: "dev-florian", username: "florian", email: "florian@example.com",
		password: "florian123", role: "developer", department: "Engineering",
		hired:    "2021-06-01",
		consents: []string{models.ConsentTimeTracking},
	},
	{
		id: "dev-alice", username: "alice", email: "alice@example.com",
		password: "alice123", role: "developer", department: "Engineering",
		hired:    "2022-03-15",
		consents: []string{models.ConsentTimeTracking},
	},
	{
		id: "manager-bob", username: "bob", email: "bob@example.com",
		password: "bob123", role: "manager", department: "Management",
		hired:    "2019-01-10",
		consents: []string{models.ConsentTimeTracking, models.ConsentExpenseProcessing},
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.ConsentRecord{}, &models.Role{},
		&models.UserRole{}, &models.TimeLog{}, &models.AuditLog{},
	); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	for _, role := range roles {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&role).Error; err != nil {
			log.Fatal().Err(err).Str("role", role.ID).Msg("failed to seed role")
		}
		log.Info().Str("role", role.ID).Msg("seeded role")
	}

	now := time.Now()
	for _, seed := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to hash password")
		}
		hired, _ := time.Parse("2006-01-02", seed.hired)

		user := models.User{
			ID:           seed.id,
			Username:     seed.username,
			Email:        seed.email,
			PasswordHash: string(hash),
			Department:   seed.department,
			HireDate:     &hired,
		}
		for _, consentType := range seed.consents {
			user.Consents = append(user.Consents, models.ConsentRecord{
				Type:    consentType,
				Granted: true,
				Date:    now,
				Version: "1.0",
			})
		}

		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			log.Fatal().Err(err).Str("user", seed.email).Msg("failed to seed user")
		}

		assignment := models.UserRole{UserID: seed.id, RoleID: seed.role, CreatedAt: now}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment).Error; err != nil {
			log.Fatal().Err(err).Str("user", seed.email).Msg("failed to assign role")
		}
		log.Info().Str("user", seed.email).Str("role", seed.role).Msg("seeded user")
	}
}

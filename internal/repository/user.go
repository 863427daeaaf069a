// Package repository provides the data access layer for the timetrack service.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tempora-hq/timetrack-api/internal/models"
)

// ErrNotFound is returned when a lookup does not resolve to a record.
var ErrNotFound = errors.New("record not found")

// UserRepository defines the interface for user data operations,
// including the role-grant traversal used to build claim sets.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	GetRoleGrants(ctx context.Context, userID string) ([]models.RoleGrant, error)
	ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error
	HasConsent(ctx context.Context, userID, consentType string) (bool, error)
	SetConsent(ctx context.Context, userID, consentType string, granted bool, version string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Consents").Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email %s: %w", email, err)
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Consents").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by id %s: %w", id, err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user id %s: %w", user.ID, err)
	}
	return nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
	if err != nil {
		return fmt.Errorf("failed to update last login for user %s: %w", id, err)
	}
	return nil
}

// GetRoleGrants walks the user_roles relation outward from the user and
// returns each assigned role together with its permission strings.
func (r *userRepository) GetRoleGrants(ctx context.Context, userID string) ([]models.RoleGrant, error) {
	var roles []models.Role
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get role grants for user %s: %w", userID, err)
	}

	grants := make([]models.RoleGrant, 0, len(roles))
	for _, role := range roles {
		grants = append(grants, models.RoleGrant{
			RoleID:      role.ID,
			Permissions: role.Permissions,
		})
	}
	return grants, nil
}

// ReplaceRoles swaps the user's entire role set in one transaction.
func (r *userRepository) ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			assignment := models.UserRole{UserID: userID, RoleID: roleID, CreatedAt: time.Now()}
			if err := tx.Create(&assignment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace roles for user %s: %w", userID, err)
	}
	return nil
}

func (r *userRepository) HasConsent(ctx context.Context, userID, consentType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConsentRecord{}).
		Where("user_id = ? AND type = ? AND granted = ?", userID, consentType, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check %s consent for user %s: %w", consentType, userID, err)
	}
	return count > 0, nil
}

func (r *userRepository) SetConsent(ctx context.Context, userID, consentType string, granted bool, version string) error {
	record := models.ConsentRecord{
		UserID:  userID,
		Type:    consentType,
		Granted: granted,
		Date:    time.Now(),
		Version: version,
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, consentType).
		Assign(map[string]interface{}{"granted": granted, "date": record.Date, "version": version}).
		FirstOrCreate(&record).Error
	if err != nil {
		return fmt.Errorf("failed to set %s consent for user %s: %w", consentType, userID, err)
	}
	return nil
}

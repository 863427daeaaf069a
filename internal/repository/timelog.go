package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tempora-hq/timetrack-api/internal/models"
	"github.com/tempora-hq/timetrack-api/internal/rbac"
)

// TimeLogFilter narrows a time log listing. Zero values mean "no filter".
type TimeLogFilter struct {
	ProjectID string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// TimeLogRepository defines data operations on time logs. List applies
// the caller's resolved visibility scope so that no broader query can
// be expressed by handlers.
type TimeLogRepository interface {
	List(ctx context.Context, scope rbac.Scope, userID, department string, filter TimeLogFilter) ([]models.TimeLog, int64, error)
	FindByID(ctx context.Context, id string) (*models.TimeLog, error)
	Create(ctx context.Context, log *models.TimeLog) error
	Update(ctx context.Context, log *models.TimeLog) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, userID string, start, end time.Time) ([]models.TimeSummary, error)
}

type timeLogRepository struct {
	db *gorm.DB
}

// NewTimeLogRepository creates a new TimeLogRepository instance.
func NewTimeLogRepository(db *gorm.DB) TimeLogRepository {
	return &timeLogRepository{db: db}
}

func (r *timeLogRepository) List(ctx context.Context, scope rbac.Scope, userID, department string, filter TimeLogFilter) ([]models.TimeLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TimeLog{})

	switch scope {
	case rbac.ScopeAll:
		// No narrowing.
	case rbac.ScopeDepartment:
		query = query.
			Joins("JOIN users ON users.id = time_logs.user_id").
			Where("users.department = ?", department)
	default:
		query = query.Where("time_logs.user_id = ?", userID)
	}

	if filter.ProjectID != "" {
		query = query.Where("time_logs.project_id = ?", filter.ProjectID)
	}
	if filter.StartDate != nil {
		query = query.Where("time_logs.start_time >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("time_logs.start_time <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count time logs: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var logs []models.TimeLog
	err := query.
		Order("time_logs.start_time DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list time logs: %w", err)
	}
	return logs, total, nil
}

func (r *timeLogRepository) FindByID(ctx context.Context, id string) (*models.TimeLog, error) {
	var log models.TimeLog
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find time log %s: %w", id, err)
	}
	return &log, nil
}

func (r *timeLogRepository) Create(ctx context.Context, log *models.TimeLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create time log: %w", err)
	}
	return nil
}

func (r *timeLogRepository) Update(ctx context.Context, log *models.TimeLog) error {
	if err := r.db.WithContext(ctx).Save(log).Error; err != nil {
		return fmt.Errorf("failed to update time log %s: %w", log.ID, err)
	}
	return nil
}

func (r *timeLogRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.TimeLog{}).Error; err != nil {
		return fmt.Errorf("failed to delete time log %s: %w", id, err)
	}
	return nil
}

// Summary aggregates a user's time logs per entry type over a window.
func (r *timeLogRepository) Summary(ctx context.Context, userID string, start, end time.Time) ([]models.TimeSummary, error) {
	var summaries []models.TimeSummary
	err := r.db.WithContext(ctx).
		Model(&models.TimeLog{}).
		Select("type, SUM(duration) AS total_minutes, COUNT(*) AS count, COALESCE(SUM(CASE WHEN billable THEN duration ELSE 0 END), 0) AS billable_minutes").
		Where("user_id = ? AND start_time >= ? AND start_time <= ?", userID, start, end).
		Group("type").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize time logs for user %s: %w", userID, err)
	}
	return summaries, nil
}

// Package models contains data models for the timetrack service.
package models

import "time"

// Time log entry types.
const (
	TimeLogWork    = "work"
	TimeLogTravel  = "travel"
	TimeLogHoliday = "holiday"
	TimeLogSick    = "sick"
)

// TimeLog is a single tracked block of time booked by a user against a
// project and optionally a task. Duration is minutes.
type TimeLog struct {
	ID          string     `json:"id" gorm:"primaryKey;size:64"`
	UserID      string     `json:"user_id" gorm:"index;size:64;not null"`
	ProjectID   string     `json:"project_id" gorm:"index;size:64;not null"`
	TaskID      string     `json:"task_id,omitempty" gorm:"size:64"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time" gorm:"index;not null"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    int        `json:"duration" gorm:"not null"`
	Type        string     `json:"type" gorm:"not null;default:work"`
	Billable    bool       `json:"billable" gorm:"not null;default:false"`
	Tags        []string   `json:"tags" gorm:"serializer:json"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for the TimeLog model.
func (TimeLog) TableName() string {
	return "time_logs"
}

// TimeSummary is a per-type aggregate over a user's time logs.
type TimeSummary struct {
	Type            string `json:"type"`
	TotalMinutes    int64  `json:"total_minutes"`
	Count           int64  `json:"count"`
	BillableMinutes int64  `json:"billable_minutes"`
}

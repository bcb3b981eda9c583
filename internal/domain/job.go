package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobStatus is the lifecycle of a Job, mutated only by the poll-updates
// use case (pending -> completed).
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
)

// Job is a service request created on behalf of a homeowner by a
// technician at the requesting company.
type Job struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`

	Summary string `gorm:"not null"`

	Street  string `gorm:"not null"`
	City    string `gorm:"not null"`
	State   string `gorm:"not null;size:2"`
	ZipCode string `gorm:"column:zip_code;not null"`

	HomeownerName  string `gorm:"column:homeowner_name;not null"`
	HomeownerPhone string `gorm:"column:homeowner_phone"`
	HomeownerEmail string `gorm:"column:homeowner_email"`

	CreatedByCompanyID    uuid.UUID `gorm:"column:created_by_company_id;type:uuid;not null;index"`
	CreatedByTechnicianID uuid.UUID `gorm:"column:created_by_technician_id;type:uuid;not null"`

	RequiredSkills datatypes.JSON `gorm:"column:required_skills"`
	SkillLevels    datatypes.JSON `gorm:"column:skill_levels"`
	Category       string         `gorm:"column:category"`

	Status      JobStatus  `gorm:"not null;default:pending"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	CreatedAt time.Time `gorm:"default:now()"`
	UpdatedAt time.Time `gorm:"default:now()"`

	Routings []JobRouting `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

func (Job) TableName() string { return "jobs" }

// IsRoutable reports whether the job has every field the create-job use
// case requires before it can be matched and routed.
func (j *Job) IsRoutable() bool {
	return j.Summary != "" &&
		j.Street != "" &&
		j.HomeownerName != "" &&
		j.CreatedByCompanyID != uuid.Nil &&
		j.CreatedByTechnicianID != uuid.Nil &&
		j.Status == JobStatusPending
}

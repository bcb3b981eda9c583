package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProviderType tags which external system a company is wired to.
type ProviderType string

const (
	ProviderTypeServiceTitan ProviderType = "servicetitan"
	ProviderTypeHousecallPro ProviderType = "housecallpro"
	ProviderTypeMock         ProviderType = "mock"
)

// Company is a receiving/requesting party in job routing. ProviderConfig
// holds provider-type-specific credentials as an opaque key/value map.
type Company struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Name           string         `gorm:"not null"`
	ProviderType   ProviderType   `gorm:"column:provider_type;not null"`
	ProviderConfig datatypes.JSON `gorm:"column:provider_config"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time      `gorm:"default:now()"`
	UpdatedAt      time.Time      `gorm:"default:now()"`

	Skills      []CompanySkill `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	Technicians []Technician   `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
}

func (Company) TableName() string { return "companies" }

// SkillLevel ranks a company's proficiency at a skill.
type SkillLevel string

const (
	SkillLevelBasic        SkillLevel = "basic"
	SkillLevelIntermediate SkillLevel = "intermediate"
	SkillLevelExpert       SkillLevel = "expert"
)

// SkillLevelValue maps a level to the numeric value §4.2's scoring
// formula uses (basic=1, intermediate=2, expert=3).
func SkillLevelValue(l SkillLevel) float64 {
	switch l {
	case SkillLevelBasic:
		return 1
	case SkillLevelIntermediate:
		return 2
	case SkillLevelExpert:
		return 3
	default:
		return 0
	}
}

// CompanySkill is one (company, skill) capability row. Unique per
// (company_id, skill_name).
type CompanySkill struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	CompanyID  uuid.UUID  `gorm:"column:company_id;type:uuid;not null;index:idx_company_skill_unique,unique,priority:1"`
	SkillName  string     `gorm:"column:skill_name;not null;index:idx_company_skill_unique,unique,priority:2"`
	SkillLevel SkillLevel `gorm:"column:skill_level;not null"`
	IsPrimary  bool       `gorm:"column:is_primary;not null;default:false"`
}

func (CompanySkill) TableName() string { return "company_skills" }

// Technician identifies the individual who created a job on behalf of a
// company. Invariant: CompanyID must reference an existing company.
type Technician struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Name      string    `gorm:"not null"`
	Phone     string
	Email     string
	CompanyID uuid.UUID `gorm:"column:company_id;type:uuid;not null;index"`
}

func (Technician) TableName() string { return "technicians" }

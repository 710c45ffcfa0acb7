package portfolio

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record holds the columns shared by every portfolio entity.
type Record struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	OrderIndex int       `gorm:"not null;default:0;index" json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (r *Record) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Company is an employer or client shown in the work history.
type Company struct {
	Record
	Name        string     `gorm:"size:200;not null" json:"name"`
	Role        string     `gorm:"size:200" json:"role"`
	Description string     `gorm:"type:text" json:"description"`
	Website     string     `gorm:"size:500" json:"website"`
	LogoURL     string     `gorm:"size:500" json:"logo_url"`
	Location    string     `gorm:"size:200" json:"location"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	IsCurrent   bool       `gorm:"not null;default:false" json:"is_current"`
}

func (Company) TableName() string { return "companies" }

// Project is a piece of work, optionally tied to a company.
type Project struct {
	Record
	Title        string                      `gorm:"size:200;not null" json:"title"`
	Slug         string                      `gorm:"size:200;not null;uniqueIndex:idx_projects_slug" json:"slug"`
	Summary      string                      `gorm:"size:500" json:"summary"`
	Description  string                      `gorm:"type:text" json:"description"`
	RepoURL      string                      `gorm:"size:500" json:"repo_url"`
	DemoURL      string                      `gorm:"size:500" json:"demo_url"`
	ImageURL     string                      `gorm:"size:500" json:"image_url"`
	Technologies datatypes.JSONSlice[string] `json:"technologies"`
	Featured     bool                        `gorm:"not null;default:false;index" json:"featured"`
	CompanyID    *string                     `gorm:"size:36;index" json:"company_id"`
	Company      *Company                    `gorm:"foreignKey:CompanyID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"company,omitempty"`
	StartDate    *time.Time                  `json:"start_date"`
	EndDate      *time.Time                  `json:"end_date"`
}

func (Project) TableName() string { return "projects" }

// Skill is a named competency; names are unique.
type Skill struct {
	Record
	Name            string  `gorm:"size:100;not null;uniqueIndex:idx_skills_name" json:"name"`
	Category        string  `gorm:"size:100;index" json:"category"`
	Proficiency     int     `gorm:"not null;default:0" json:"proficiency"`
	YearsExperience float64 `gorm:"not null;default:0" json:"years_experience"`
	Icon            string  `gorm:"size:200" json:"icon"`
}

func (Skill) TableName() string { return "skills" }

// Education is a degree, course, or certification programme.
type Education struct {
	Record
	Institution  string                      `gorm:"size:200;not null" json:"institution"`
	Degree       string                      `gorm:"size:200" json:"degree"`
	FieldOfStudy string                      `gorm:"size:200" json:"field_of_study"`
	Description  string                      `gorm:"type:text" json:"description"`
	Highlights   datatypes.JSONSlice[string] `json:"highlights"`
	StartDate    *time.Time                  `json:"start_date"`
	EndDate      *time.Time                  `json:"end_date"`
}

func (Education) TableName() string { return "education" }

// Document kinds.
const (
	DocumentKindResume      = "resume"
	DocumentKindCertificate = "certificate"
	DocumentKindPublication = "publication"
	DocumentKindOther       = "other"
)

// Document is a downloadable file referenced by URL.
type Document struct {
	Record
	Title       string `gorm:"size:200;not null" json:"title"`
	Kind        string `gorm:"size:50;not null;index" json:"kind"`
	URL         string `gorm:"size:1000;not null" json:"url"`
	Description string `gorm:"type:text" json:"description"`
	FileName    string `gorm:"size:255" json:"file_name"`
	MimeType    string `gorm:"size:100" json:"mime_type"`
	SizeBytes   int64  `gorm:"not null;default:0" json:"size_bytes"`
	IsPublic    bool   `gorm:"not null;index" json:"is_public"`
}

func (Document) TableName() string { return "documents" }

// Models lists every portfolio table for migrations.
func Models() []any {
	return []any{&Company{}, &Project{}, &Skill{}, &Education{}, &Document{}}
}

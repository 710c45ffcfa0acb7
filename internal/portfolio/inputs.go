package portfolio

import (
	"strings"
	"time"

	"portfolio/api/internal/validation"
)

// Input is a validated request body that can be applied onto an entity.
type Input[T any] interface {
	Apply(*T)
}

// checker is implemented by inputs with rules that span several fields.
type checker interface {
	Check() *validation.Error
}

// CompanyInput is the create/update schema for companies.
type CompanyInput struct {
	Name        string     `toml:"name" json:"name" validate:"notblank,max=200"`
	Role        string     `toml:"role" json:"role,omitempty" validate:"max=200"`
	Description string     `toml:"description" json:"description,omitempty" validate:"max=10000"`
	Website     string     `toml:"website" json:"website,omitempty" validate:"omitempty,url,max=500"`
	LogoURL     string     `toml:"logo_url" json:"logo_url,omitempty" validate:"omitempty,url,max=500"`
	Location    string     `toml:"location" json:"location,omitempty" validate:"max=200"`
	StartDate   *time.Time `toml:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time `toml:"end_date" json:"end_date,omitempty"`
	IsCurrent   bool       `toml:"is_current" json:"is_current,omitempty"`
	OrderIndex  int        `toml:"order_index" json:"order_index,omitempty" validate:"min=0"`
}

func (in CompanyInput) Check() *validation.Error {
	verr := checkDateRange(in.StartDate, in.EndDate)
	if in.IsCurrent && in.EndDate != nil {
		verr = verr.Merge(validation.Field("end_date", "must be empty for a current position"))
	}
	return verr
}

func (in CompanyInput) Apply(c *Company) {
	c.Name = strings.TrimSpace(in.Name)
	c.Role = strings.TrimSpace(in.Role)
	c.Description = strings.TrimSpace(in.Description)
	c.Website = strings.TrimSpace(in.Website)
	c.LogoURL = strings.TrimSpace(in.LogoURL)
	c.Location = strings.TrimSpace(in.Location)
	c.StartDate = in.StartDate
	c.EndDate = in.EndDate
	c.IsCurrent = in.IsCurrent
	c.OrderIndex = in.OrderIndex
}

// ProjectInput is the create/update schema for projects.
type ProjectInput struct {
	Title        string     `toml:"title" json:"title" validate:"notblank,max=200"`
	Slug         string     `toml:"slug" json:"slug,omitempty" validate:"max=200"`
	Summary      string     `toml:"summary" json:"summary,omitempty" validate:"max=500"`
	Description  string     `toml:"description" json:"description,omitempty" validate:"max=20000"`
	RepoURL      string     `toml:"repo_url" json:"repo_url,omitempty" validate:"omitempty,url,max=500"`
	DemoURL      string     `toml:"demo_url" json:"demo_url,omitempty" validate:"omitempty,url,max=500"`
	ImageURL     string     `toml:"image_url" json:"image_url,omitempty" validate:"omitempty,url,max=500"`
	Technologies []string   `toml:"technologies" json:"technologies,omitempty" validate:"max=50,dive,notblank,max=50"`
	Featured     bool       `toml:"featured" json:"featured,omitempty"`
	CompanyID    *string    `toml:"company_id" json:"company_id,omitempty" validate:"omitempty,uuid"`
	StartDate    *time.Time `toml:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time `toml:"end_date" json:"end_date,omitempty"`
	OrderIndex   int        `toml:"order_index" json:"order_index,omitempty" validate:"min=0"`
}

func (in ProjectInput) Check() *validation.Error {
	verr := checkDateRange(in.StartDate, in.EndDate)
	if in.Slug != "" && Slugify(in.Slug) != strings.TrimSpace(in.Slug) {
		verr = verr.Merge(validation.Field("slug", "must contain only lowercase letters, digits and hyphens"))
	}
	return verr
}

func (in ProjectInput) Apply(p *Project) {
	p.Title = strings.TrimSpace(in.Title)
	p.Slug = strings.TrimSpace(in.Slug)
	if p.Slug == "" {
		p.Slug = ProjectSlug(p.Title)
	}
	p.Summary = strings.TrimSpace(in.Summary)
	p.Description = strings.TrimSpace(in.Description)
	p.RepoURL = strings.TrimSpace(in.RepoURL)
	p.DemoURL = strings.TrimSpace(in.DemoURL)
	p.ImageURL = strings.TrimSpace(in.ImageURL)
	p.Technologies = trimAll(in.Technologies)
	p.Featured = in.Featured
	p.CompanyID = nil
	if in.CompanyID != nil && strings.TrimSpace(*in.CompanyID) != "" {
		id := strings.TrimSpace(*in.CompanyID)
		p.CompanyID = &id
	}
	p.Company = nil
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
	p.OrderIndex = in.OrderIndex
}

// SkillInput is the create/update schema for skills.
type SkillInput struct {
	Name            string  `toml:"name" json:"name" validate:"notblank,max=100"`
	Category        string  `toml:"category" json:"category,omitempty" validate:"max=100"`
	Proficiency     int     `toml:"proficiency" json:"proficiency,omitempty" validate:"min=0,max=100"`
	YearsExperience float64 `toml:"years_experience" json:"years_experience,omitempty" validate:"min=0,max=80"`
	Icon            string  `toml:"icon" json:"icon,omitempty" validate:"max=200"`
	OrderIndex      int     `toml:"order_index" json:"order_index,omitempty" validate:"min=0"`
}

func (in SkillInput) Apply(s *Skill) {
	s.Name = strings.TrimSpace(in.Name)
	s.Category = strings.TrimSpace(in.Category)
	s.Proficiency = in.Proficiency
	s.YearsExperience = in.YearsExperience
	s.Icon = strings.TrimSpace(in.Icon)
	s.OrderIndex = in.OrderIndex
}

// EducationInput is the create/update schema for education entries.
type EducationInput struct {
	Institution  string     `toml:"institution" json:"institution" validate:"notblank,max=200"`
	Degree       string     `toml:"degree" json:"degree,omitempty" validate:"max=200"`
	FieldOfStudy string     `toml:"field_of_study" json:"field_of_study,omitempty" validate:"max=200"`
	Description  string     `toml:"description" json:"description,omitempty" validate:"max=10000"`
	Highlights   []string   `toml:"highlights" json:"highlights,omitempty" validate:"max=50,dive,notblank,max=500"`
	StartDate    *time.Time `toml:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time `toml:"end_date" json:"end_date,omitempty"`
	OrderIndex   int        `toml:"order_index" json:"order_index,omitempty" validate:"min=0"`
}

func (in EducationInput) Check() *validation.Error {
	return checkDateRange(in.StartDate, in.EndDate)
}

func (in EducationInput) Apply(e *Education) {
	e.Institution = strings.TrimSpace(in.Institution)
	e.Degree = strings.TrimSpace(in.Degree)
	e.FieldOfStudy = strings.TrimSpace(in.FieldOfStudy)
	e.Description = strings.TrimSpace(in.Description)
	e.Highlights = trimAll(in.Highlights)
	e.StartDate = in.StartDate
	e.EndDate = in.EndDate
	e.OrderIndex = in.OrderIndex
}

// DocumentInput is the create/update schema for documents.
type DocumentInput struct {
	Title       string `toml:"title" json:"title" validate:"notblank,max=200"`
	Kind        string `toml:"kind" json:"kind" validate:"oneof=resume certificate publication other"`
	URL         string `toml:"url" json:"url" validate:"required,url,max=1000"`
	Description string `toml:"description" json:"description,omitempty" validate:"max=5000"`
	FileName    string `toml:"file_name" json:"file_name,omitempty" validate:"max=255"`
	MimeType    string `toml:"mime_type" json:"mime_type,omitempty" validate:"max=100"`
	SizeBytes   int64  `toml:"size_bytes" json:"size_bytes,omitempty" validate:"min=0"`
	IsPublic    *bool  `toml:"is_public" json:"is_public,omitempty"`
	OrderIndex  int    `toml:"order_index" json:"order_index,omitempty" validate:"min=0"`
}

func (in DocumentInput) Apply(d *Document) {
	d.Title = strings.TrimSpace(in.Title)
	d.Kind = in.Kind
	d.URL = strings.TrimSpace(in.URL)
	d.Description = strings.TrimSpace(in.Description)
	d.FileName = strings.TrimSpace(in.FileName)
	d.MimeType = strings.TrimSpace(in.MimeType)
	d.SizeBytes = in.SizeBytes
	d.IsPublic = true
	if in.IsPublic != nil {
		d.IsPublic = *in.IsPublic
	}
	d.OrderIndex = in.OrderIndex
}

func checkDateRange(start, end *time.Time) *validation.Error {
	if start != nil && end != nil && end.Before(*start) {
		return validation.Field("end_date", "must not be before start_date")
	}
	return nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

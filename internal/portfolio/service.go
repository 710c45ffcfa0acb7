package portfolio

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolio/api/internal/validation"
)

// Service groups the resource services backing the public portfolio.
type Service struct {
	Companies *Resource[Company, CompanyInput]
	Projects  *Resource[Project, ProjectInput]
	Skills    *Resource[Skill, SkillInput]
	Education *Resource[Education, EducationInput]
	Documents *Resource[Document, DocumentInput]
}

// Counts summarises how many records of each resource exist.
type Counts struct {
	Companies int64 `json:"companies"`
	Projects  int64 `json:"projects"`
	Skills    int64 `json:"skills"`
	Education int64 `json:"education"`
	Documents int64 `json:"documents"`
}

// NewService wires every portfolio resource against db.
func NewService(db *gorm.DB, logger *logrus.Logger, hub *sentry.Hub) (*Service, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	v := validation.New()

	companyRepo, err := NewRepository[Company](db, logger, "companies")
	if err != nil {
		return nil, err
	}
	projectRepo, err := NewRepository[Project](db, logger, "projects", "Company")
	if err != nil {
		return nil, err
	}
	skillRepo, err := NewRepository[Skill](db, logger, "skills")
	if err != nil {
		return nil, err
	}
	educationRepo, err := NewRepository[Education](db, logger, "education")
	if err != nil {
		return nil, err
	}
	documentRepo, err := NewRepository[Document](db, logger, "documents")
	if err != nil {
		return nil, err
	}

	svc := &Service{}

	if svc.Companies, err = NewResource[Company, CompanyInput]("companies", companyRepo, v, logger, hub); err != nil {
		return nil, err
	}
	if svc.Projects, err = NewResource[Project, ProjectInput]("projects", projectRepo, v, logger, hub); err != nil {
		return nil, err
	}
	if svc.Skills, err = NewResource[Skill, SkillInput]("skills", skillRepo, v, logger, hub); err != nil {
		return nil, err
	}
	if svc.Education, err = NewResource[Education, EducationInput]("education", educationRepo, v, logger, hub); err != nil {
		return nil, err
	}
	if svc.Documents, err = NewResource[Document, DocumentInput]("documents", documentRepo, v, logger, hub); err != nil {
		return nil, err
	}

	svc.Projects.beforeSave = func(ctx context.Context, p *Project) error {
		if p.CompanyID == nil {
			return nil
		}
		exists, err := companyRepo.Exists(ctx, *p.CompanyID)
		if err != nil {
			return err
		}
		if !exists {
			return validation.Field("company_id", "references an unknown company")
		}
		return nil
	}

	return svc, nil
}

// Counts returns per-resource totals. Documents count only public entries unless includePrivate is set.
func (s *Service) Counts(ctx context.Context, includePrivate bool) (Counts, error) {
	var (
		counts Counts
		err    error
	)

	if counts.Companies, err = s.Companies.Count(ctx, nil); err != nil {
		return Counts{}, err
	}
	if counts.Projects, err = s.Projects.Count(ctx, nil); err != nil {
		return Counts{}, err
	}
	if counts.Skills, err = s.Skills.Count(ctx, nil); err != nil {
		return Counts{}, err
	}
	if counts.Education, err = s.Education.Count(ctx, nil); err != nil {
		return Counts{}, err
	}

	var documentFilters map[string]any
	if !includePrivate {
		documentFilters = map[string]any{"is_public": true}
	}
	if counts.Documents, err = s.Documents.Count(ctx, documentFilters); err != nil {
		return Counts{}, err
	}

	return counts, nil
}

package portfolio

import (
	"context"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"portfolio/api/internal/validation"
)

// SeedData is the on-disk seed format. Projects reference companies by name.
type SeedData struct {
	Companies []CompanyInput   `toml:"companies"`
	Projects  []ProjectSeed    `toml:"projects"`
	Skills    []SkillInput     `toml:"skills"`
	Education []EducationInput `toml:"education"`
	Documents []DocumentInput  `toml:"documents"`
}

// ProjectSeed is a project entry whose company is given by name instead of id.
type ProjectSeed struct {
	ProjectInput
	Company string `toml:"company"`
}

// SeedReport counts what a seed run changed, keyed by resource name.
type SeedReport struct {
	Created map[string]int `json:"created"`
	Updated map[string]int `json:"updated"`
}

func newSeedReport() *SeedReport {
	return &SeedReport{Created: map[string]int{}, Updated: map[string]int{}}
}

// LoadSeedFile decodes a TOML seed file. Unknown keys are rejected.
func LoadSeedFile(path string) (*SeedData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "opening seed file %s", path)
	}
	defer file.Close()

	var data SeedData
	decoder := toml.NewDecoder(file).DisallowUnknownFields()
	if err := decoder.Decode(&data); err != nil {
		return nil, eris.Wrapf(err, "decoding seed file %s", path)
	}

	return &data, nil
}

// Seed inserts or updates every entry in data, matching existing rows by natural key:
// company name, project slug, skill name, institution and degree, document title.
func (s *Service) Seed(ctx context.Context, data *SeedData, logger *logrus.Logger) (*SeedReport, error) {
	if data == nil {
		return nil, eris.New("seed data is required")
	}

	report := newSeedReport()
	companyIDs := make(map[string]string, len(data.Companies))

	for i, input := range data.Companies {
		company, err := upsert(ctx, s.Companies, map[string]any{"name": strings.TrimSpace(input.Name)}, input, report)
		if err != nil {
			return report, eris.Wrapf(err, "seeding company %d (%s)", i, input.Name)
		}
		companyIDs[strings.ToLower(company.Name)] = company.ID
	}

	for i, entry := range data.Projects {
		input := entry.ProjectInput
		if name := strings.TrimSpace(entry.Company); name != "" {
			id, ok := companyIDs[strings.ToLower(name)]
			if !ok {
				existing, err := first(ctx, s.Companies, map[string]any{"name": name})
				if err != nil {
					return report, err
				}
				if existing == nil {
					return report, eris.Wrapf(validation.Field("company", "unknown company "+name), "seeding project %d (%s)", i, input.Title)
				}
				id = existing.ID
			}
			input.CompanyID = &id
		}

		slug := strings.TrimSpace(input.Slug)
		if slug == "" {
			slug = ProjectSlug(input.Title)
		}
		if _, err := upsert(ctx, s.Projects, map[string]any{"slug": slug}, input, report); err != nil {
			return report, eris.Wrapf(err, "seeding project %d (%s)", i, input.Title)
		}
	}

	for i, input := range data.Skills {
		if _, err := upsert(ctx, s.Skills, map[string]any{"name": strings.TrimSpace(input.Name)}, input, report); err != nil {
			return report, eris.Wrapf(err, "seeding skill %d (%s)", i, input.Name)
		}
	}

	for i, input := range data.Education {
		filters := map[string]any{
			"institution": strings.TrimSpace(input.Institution),
			"degree":      strings.TrimSpace(input.Degree),
		}
		if _, err := upsert(ctx, s.Education, filters, input, report); err != nil {
			return report, eris.Wrapf(err, "seeding education %d (%s)", i, input.Institution)
		}
	}

	for i, input := range data.Documents {
		if _, err := upsert(ctx, s.Documents, map[string]any{"title": strings.TrimSpace(input.Title)}, input, report); err != nil {
			return report, eris.Wrapf(err, "seeding document %d (%s)", i, input.Title)
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"component": "portfolio.seed",
			"created":   report.Created,
			"updated":   report.Updated,
		}).Info("seed complete")
	}

	return report, nil
}

func first[T any, I Input[T]](ctx context.Context, r *Resource[T, I], filters map[string]any) (*T, error) {
	items, err := r.List(ctx, ListOptions{Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func upsert[T any, I Input[T]](ctx context.Context, r *Resource[T, I], filters map[string]any, input I, report *SeedReport) (*T, error) {
	existing, err := first(ctx, r, filters)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		created, err := r.Create(ctx, input)
		if err != nil {
			return nil, err
		}
		report.Created[r.Name()]++
		return created, nil
	}

	updated, err := r.Update(ctx, recordID(existing), input)
	if err != nil {
		return nil, err
	}
	report.Updated[r.Name()]++
	return updated, nil
}

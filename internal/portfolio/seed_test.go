package portfolio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const seedFixture = `
[[companies]]
name = "Acme"
role = "Staff Engineer"
start_date = 2019-03-01T00:00:00Z
is_current = true

[[projects]]
title = "Road Runner Tracker"
company = "Acme"
technologies = ["Go", "PostgreSQL"]
featured = true

[[skills]]
name = "Go"
category = "Languages"
proficiency = 90

[[education]]
institution = "State University"
degree = "BSc"
highlights = ["Thesis on distributed caches"]

[[documents]]
title = "Resume"
kind = "resume"
url = "https://example.com/resume.pdf"
`

func writeSeed(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seed.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	return path
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	data, err := LoadSeedFile(writeSeed(t, seedFixture))
	if err != nil {
		t.Fatalf("LoadSeedFile returned error: %v", err)
	}

	report, err := svc.Seed(ctx, data, nil)
	if err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	for _, name := range []string{"companies", "projects", "skills", "education", "documents"} {
		if report.Created[name] != 1 {
			t.Fatalf("expected one %s created, got %v", name, report.Created)
		}
	}

	report, err = svc.Seed(ctx, data, nil)
	if err != nil {
		t.Fatalf("second Seed returned error: %v", err)
	}
	if len(report.Created) != 0 {
		t.Fatalf("expected nothing created on reseed, got %v", report.Created)
	}
	if report.Updated["projects"] != 1 {
		t.Fatalf("expected project to be updated on reseed, got %v", report.Updated)
	}

	projects, err := svc.Projects.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected exactly one project, got %d", len(projects))
	}
	if projects[0].Company == nil || projects[0].Company.Name != "Acme" {
		t.Fatalf("expected project linked to Acme, got %+v", projects[0].Company)
	}
	if projects[0].Slug != "road-runner-tracker" {
		t.Fatalf("expected derived slug, got %q", projects[0].Slug)
	}
}

func TestSeedRejectsUnknownCompany(t *testing.T) {
	t.Parallel()

	svc := setupService(t)

	data, err := LoadSeedFile(writeSeed(t, "[[projects]]\ntitle = \"Lonely\"\ncompany = \"Nowhere\"\n"))
	if err != nil {
		t.Fatalf("LoadSeedFile returned error: %v", err)
	}

	if _, err := svc.Seed(context.Background(), data, nil); err == nil {
		t.Fatalf("expected error for unknown company")
	}
}

func TestLoadSeedFileRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	if _, err := LoadSeedFile(writeSeed(t, "[[skills]]\nname = \"Go\"\nlevel = 3\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestSeedNonASCIIProjectTitlesAreIdempotent(t *testing.T) {
	t.Parallel()

	svc := setupService(t)
	ctx := context.Background()

	data, err := LoadSeedFile(writeSeed(t, "[[projects]]\ntitle = \"日本語\"\n\n[[projects]]\ntitle = \"中文项目\"\n"))
	if err != nil {
		t.Fatalf("LoadSeedFile returned error: %v", err)
	}

	for run := 1; run <= 2; run++ {
		if _, err := svc.Seed(ctx, data, nil); err != nil {
			t.Fatalf("Seed run %d returned error: %v", run, err)
		}
	}

	projects, err := svc.Projects.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected two projects after reseeding, got %d", len(projects))
	}
}

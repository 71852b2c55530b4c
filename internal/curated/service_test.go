package curated

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"resumate/internal/aiservice"
	"resumate/internal/database"
	"resumate/internal/errcode"
	"resumate/internal/master"
	"resumate/internal/testutil"
)

const draftResponse = `{
	"contactInfo": {"name": "Alice"},
	"skills": ["Go"],
	"experiences": [{
		"title": "Backend Engineer",
		"company": "Acme",
		"startDate": "2021-01",
		"endDate": "Present",
		"points": ["Built the billing service", "Introduced tracing across services"]
	}],
	"projects": [{"title": "Side Project", "date": "2023", "points": ["Shipped a CLI"]}],
	"education": [],
	"model": "gpt-test"
}`

func TestGenerateEndToEnd(t *testing.T) {
	ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(draftResponse))
	}))
	defer ai.Close()

	db := testutil.DB(t)
	user := testutil.SeedUser(t, db, "alice")
	item := testutil.SeedItem(t, db, user.ID, database.ItemTypeExperience, "Backend Engineer", "Acme", "Built the billing service")

	svc := NewService(aiservice.New(ai.URL, 5*time.Second), master.NewStore(db), NewStore(db), nil)
	ctx := context.Background()

	res, err := svc.Generate(ctx, user.ID, GenerateInput{
		JobDescription: "Senior Go engineer",
		JobTitle:       strPtr("Go Engineer"),
		Company:        strPtr("Globex"),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Title != "Go Engineer at Globex" || res.Status != database.StatusDraft || res.JobID == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Kind != "project" || res.Skipped[0].Title != "Side Project" {
		t.Fatalf("expected the unmatched project reported, got %+v", res.Skipped)
	}

	doc, err := svc.Store().Get(ctx, res.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(doc.Experiences) != 1 || len(doc.Projects) != 0 {
		t.Fatalf("unexpected sections %d/%d", len(doc.Experiences), len(doc.Projects))
	}
	exp := doc.Experiences[0]
	if exp.ResumeItemID != item.ID || exp.DisplayOrder != 0 || exp.TitleOverride != nil {
		t.Fatalf("unexpected experience %+v", exp)
	}
	if len(exp.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(exp.Points))
	}
	if exp.Points[0].OriginalPointID == nil || *exp.Points[0].OriginalPointID != item.Points[0].ID {
		t.Fatalf("first point not linked: %+v", exp.Points[0])
	}
	if exp.Points[1].OriginalPointID != nil || !exp.Points[1].WasAIGenerated {
		t.Fatalf("second point should be new: %+v", exp.Points[1])
	}
	if doc.ModelUsed == nil || *doc.ModelUsed != "gpt-test" {
		t.Fatalf("model not recorded: %v", doc.ModelUsed)
	}
	if doc.GenerationPrompt == nil || *doc.GenerationPrompt != "Senior Go engineer" {
		t.Fatalf("prompt not recorded: %v", doc.GenerationPrompt)
	}
}

type failingGenerator struct{ err error }

func (f failingGenerator) GenerateResume(context.Context, uint, string) (*aiservice.Draft, error) {
	return nil, f.err
}

func TestGenerateFailures(t *testing.T) {
	db := testutil.DB(t)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()

	upstream := &errcode.UpstreamError{Status: http.StatusBadGateway, Body: "down"}
	svc := NewService(failingGenerator{err: upstream}, master.NewStore(db), NewStore(db), nil)

	if _, err := svc.Generate(ctx, user.ID, GenerateInput{JobDescription: "   "}); !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Generate(ctx, user.ID, GenerateInput{JobDescription: "jd"}); !errors.Is(err, errcode.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if n := testutil.Count(t, db, &database.CuratedResume{}, ""); n != 0 {
		t.Fatalf("resume written after upstream failure")
	}
	if n := testutil.Count(t, db, &database.Job{}, ""); n != 0 {
		t.Fatalf("job written after upstream failure")
	}
}

func TestDefaultTitle(t *testing.T) {
	cases := []struct {
		in   GenerateInput
		want string
	}{
		{GenerateInput{Title: " Mine "}, "Mine"},
		{GenerateInput{JobTitle: strPtr("SRE"), Company: strPtr("Acme")}, "SRE at Acme"},
		{GenerateInput{JobTitle: strPtr("SRE")}, "SRE"},
		{GenerateInput{Company: strPtr("Acme")}, "Resume for Acme"},
		{GenerateInput{Company: strPtr(" ")}, "Tailored resume"},
	}
	for _, tc := range cases {
		if got := defaultTitle(tc.in); got != tc.want {
			t.Fatalf("defaultTitle(%+v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

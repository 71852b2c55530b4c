package curated

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"resumate/internal/aiservice"
	"resumate/internal/database"
	"resumate/internal/errcode"
	"resumate/internal/testutil"
)

// linked 构造指向已插入主简历条目的组装条目。
func linked(item *database.ResumeItem, bullets ...string) ComposedItem {
	id := item.ID
	kind := aiservice.ItemKind(item.ItemType)
	out := ComposedItem{Kind: kind, DraftTitle: item.Title, MasterItemID: &id}
	for _, b := range bullets {
		out.Points = append(out.Points, ComposedPoint{Content: b, WasAIGenerated: true})
	}
	return out
}

func seedDocument(t *testing.T, db *gorm.DB, userID uint) (Document, []*database.ResumeItem) {
	t.Helper()
	items := []*database.ResumeItem{
		testutil.SeedItem(t, db, userID, database.ItemTypeExperience, "Engineer", "Acme", "a1"),
		testutil.SeedItem(t, db, userID, database.ItemTypeExperience, "Intern", "Initech"),
		testutil.SeedItem(t, db, userID, database.ItemTypeProject, "P1", ""),
		testutil.SeedItem(t, db, userID, database.ItemTypeProject, "P2", ""),
		testutil.SeedItem(t, db, userID, database.ItemTypeProject, "P3", ""),
	}
	doc := Document{
		Title: "Go role",
		Job:   &JobInput{Description: "We need Go", Title: strPtr("Go Developer"), Company: strPtr("Acme")},
		// 项目排在前面，验证写入时仍是经历在先
		Items: []ComposedItem{
			linked(items[2], "p1a", "p1b"),
			linked(items[0], "e1a"),
			linked(items[3]),
			linked(items[1], "e2a"),
			linked(items[4], "p3a"),
		},
	}
	return doc, items
}

func TestSaveOrdersExperiencesBeforeProjects(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()
	doc, items := seedDocument(t, db, user.ID)

	res, err := store.Save(ctx, user.ID, doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Status != database.StatusDraft || res.JobID == nil || len(res.Skipped) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	var junctions []database.CuratedResumeItemJunction
	if err := db.Where("curated_resume_id = ?", res.ID).Order("display_order").Find(&junctions).Error; err != nil {
		t.Fatalf("load junctions: %v", err)
	}
	wantItems := []uint{items[0].ID, items[1].ID, items[2].ID, items[3].ID, items[4].ID}
	if len(junctions) != len(wantItems) {
		t.Fatalf("expected %d junctions, got %d", len(wantItems), len(junctions))
	}
	for i, j := range junctions {
		if j.DisplayOrder != i || j.ResumeItemID != wantItems[i] {
			t.Fatalf("junction %d: order %d item %d", i, j.DisplayOrder, j.ResumeItemID)
		}
	}

	var resume database.CuratedResume
	if err := db.First(&resume, res.ID).Error; err != nil {
		t.Fatalf("load resume: %v", err)
	}
	if !resume.IsAIGenerated || resume.Status != database.StatusDraft || resume.GenerationNotes != nil {
		t.Fatalf("unexpected resume row %+v", resume)
	}
}

func TestSaveSkipsUnlinkedItems(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	item := testutil.SeedItem(t, db, user.ID, database.ItemTypeExperience, "Engineer", "Acme")

	doc := Document{
		Title: "No job",
		Items: []ComposedItem{
			{Kind: aiservice.KindExperience, DraftTitle: "Astronaut", DraftOrganization: "NASA"},
			linked(item, "x"),
		},
	}
	res, err := store.Save(context.Background(), user.ID, doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.JobID != nil {
		t.Fatalf("expected no job without a description")
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Title != "Astronaut" || res.Skipped[0].Organization != "NASA" {
		t.Fatalf("unexpected skipped %+v", res.Skipped)
	}

	full, err := store.Get(context.Background(), res.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(full.Experiences) != 1 || full.Experiences[0].DisplayOrder != 0 {
		t.Fatalf("unexpected experiences %+v", full.Experiences)
	}
	if full.GenerationNotes == nil {
		t.Fatalf("expected generation notes to record the skipped item")
	}
}

func TestSaveRollsBackOnFailure(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	doc, _ := seedDocument(t, db, user.ID)

	inserts := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_third_point", func(tx *gorm.DB) {
		if tx.Statement.Table != "curated_resume_item_points" {
			return
		}
		inserts++
		if inserts == 3 {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = store.Save(context.Background(), user.ID, doc)
	if !errors.Is(err, errcode.ErrTransaction) {
		t.Fatalf("expected transaction error, got %v", err)
	}

	for name, model := range map[string]any{
		"jobs":        &database.Job{},
		"resumes":     &database.CuratedResume{},
		"junctions":   &database.CuratedResumeItemJunction{},
		"curated pts": &database.CuratedResumeItemPoint{},
	} {
		if n := testutil.Count(t, db, model, ""); n != 0 {
			t.Fatalf("%s: expected no rows after rollback, got %d", name, n)
		}
	}
	if n := testutil.Count(t, db, &database.ResumeItem{}, ""); n != 5 {
		t.Fatalf("master items touched: %d", n)
	}
}

func TestSaveRejectsForeignItems(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	alice := testutil.SeedUser(t, db, "alice")
	bob := testutil.SeedUser(t, db, "bob")
	bobs := testutil.SeedItem(t, db, bob.ID, database.ItemTypeExperience, "Engineer", "Acme")

	_, err := store.Save(context.Background(), alice.ID, Document{Title: "x", Items: []ComposedItem{linked(bobs)}})
	if !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := testutil.Count(t, db, &database.CuratedResume{}, ""); n != 0 {
		t.Fatalf("resume written for foreign item")
	}
}

func TestGetResolvesOverrides(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()

	exp := testutil.SeedItem(t, db, user.ID, database.ItemTypeExperience, "Engineer", "Acme", "original")
	proj := testutil.SeedItem(t, db, user.ID, database.ItemTypeProject, "Tool", "")

	withOverride := linked(exp, "original", "new")
	withOverride.TitleOverride = strPtr("Senior Engineer")
	withOverride.WasEditedByUser = true
	withOverride.Points[0].OriginalPointID = &exp.Points[0].ID

	res, err := store.Save(ctx, user.ID, Document{
		Title: "Tailored",
		Job:   &JobInput{Description: "jd", Company: strPtr("Globex")},
		Items: []ComposedItem{withOverride, linked(proj)},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	doc, err := store.Get(ctx, res.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Job == nil || doc.Job.Company == nil || *doc.Job.Company != "Globex" {
		t.Fatalf("unexpected job %+v", doc.Job)
	}
	if len(doc.Experiences) != 1 || len(doc.Projects) != 1 || len(doc.Achievements) != 0 {
		t.Fatalf("unexpected partition %d/%d/%d", len(doc.Experiences), len(doc.Projects), len(doc.Achievements))
	}
	e := doc.Experiences[0]
	if e.Title != "Senior Engineer" || e.Organization == nil || *e.Organization != "Acme" {
		t.Fatalf("override not resolved: %+v", e)
	}
	if len(e.Points) != 2 || e.Points[0].OriginalPointID == nil || e.Points[1].OriginalPointID != nil {
		t.Fatalf("unexpected points %+v", e.Points)
	}
	if p := doc.Projects[0]; p.Title != "Tool" || p.DisplayOrder != 1 || len(p.Points) != 0 {
		t.Fatalf("unexpected project %+v", p)
	}

	// 没有覆盖值时显示主简历的最新内容
	if err := db.Model(&database.ResumeItem{}).Where("id = ?", exp.ID).Update("organization", "Acme Inc").Error; err != nil {
		t.Fatalf("edit master: %v", err)
	}
	doc, err = store.Get(ctx, res.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e := doc.Experiences[0]; e.Title != "Senior Engineer" || *e.Organization != "Acme Inc" {
		t.Fatalf("unexpected effective values %+v", e)
	}

	other := testutil.SeedUser(t, db, "bob")
	if doc, err := store.Get(ctx, res.ID, other.ID); err != nil || doc != nil {
		t.Fatalf("expected nil for foreign user, got %+v, %v", doc, err)
	}
}

func TestUpdateStatusKeepsFinalizedAt(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return clock }

	res, err := store.Save(ctx, user.ID, Document{Title: "t"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := store.UpdateStatus(ctx, res.ID, user.ID, "published"); !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	s, err := store.UpdateStatus(ctx, res.ID, user.ID, database.StatusFinalized)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if s.Status != database.StatusFinalized || s.FinalizedAt == nil || !s.FinalizedAt.Equal(clock) {
		t.Fatalf("unexpected summary %+v", s)
	}

	clock = clock.Add(time.Hour)
	for _, status := range []string{database.StatusFinalized, database.StatusArchived, database.StatusDraft} {
		s, err = store.UpdateStatus(ctx, res.ID, user.ID, status)
		if err != nil {
			t.Fatalf("move to %s: %v", status, err)
		}
		if s.FinalizedAt == nil || !s.FinalizedAt.Equal(clock.Add(-time.Hour)) {
			t.Fatalf("finalized_at changed after %s: %v", status, s.FinalizedAt)
		}
	}

	if _, err := store.UpdateStatus(ctx, res.ID, user.ID+1, database.StatusArchived); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}

func TestDeleteKeepsMasterDataAndJob(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()
	doc, _ := seedDocument(t, db, user.ID)

	res, err := store.Save(ctx, user.ID, doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, res.ID, user.ID+1); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
	if err := store.Delete(ctx, res.ID, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if n := testutil.Count(t, db, &database.CuratedResumeItemJunction{}, ""); n != 0 {
		t.Fatalf("junctions left: %d", n)
	}
	if n := testutil.Count(t, db, &database.CuratedResumeItemPoint{}, ""); n != 0 {
		t.Fatalf("curated points left: %d", n)
	}
	if n := testutil.Count(t, db, &database.ResumeItem{}, ""); n != 5 {
		t.Fatalf("master items removed: %d left", n)
	}
	if n := testutil.Count(t, db, &database.ResumeItemPoint{}, ""); n != 1 {
		t.Fatalf("master points removed: %d left", n)
	}
	if n := testutil.Count(t, db, &database.Job{}, ""); n != 1 {
		t.Fatalf("job removed")
	}
	if err := store.Delete(ctx, res.ID, user.ID); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()

	first, err := store.Save(ctx, user.ID, Document{Title: "first"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := store.Save(ctx, user.ID, Document{
		Title: "second",
		Job:   &JobInput{Description: "jd", Title: strPtr("SRE"), Company: strPtr("Globex")},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	// 创建时间可能相同，显式指定顺序
	if err := db.Model(&database.CuratedResume{}).Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	list, err := store.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order %+v", list)
	}
	if list[0].JobTitle == nil || *list[0].JobTitle != "SRE" || list[1].JobTitle != nil {
		t.Fatalf("unexpected job columns %+v", list)
	}
	if !list[0].IsAIGenerated {
		t.Fatalf("expected ai generated flag")
	}

	other, err := store.List(ctx, user.ID+1)
	if err != nil || len(other) != 0 {
		t.Fatalf("expected empty list for other user, got %v, %v", other, err)
	}
}

func TestUpdateItemOverrides(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()
	item := testutil.SeedItem(t, db, user.ID, database.ItemTypeExperience, "Engineer", "Acme", "p")

	res, err := store.Save(ctx, user.ID, Document{Title: "t", Items: []ComposedItem{linked(item, "p")}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	doc, err := store.Get(ctx, res.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	junctionID := doc.Experiences[0].JunctionID

	v, err := store.UpdateItemOverrides(ctx, res.ID, junctionID, user.ID, OverrideInput{Title: strPtr("Lead Engineer"), Organization: strPtr("Acme")})
	if err != nil {
		t.Fatalf("update overrides: %v", err)
	}
	if v.Title != "Lead Engineer" || v.OrganizationOverride != nil || !v.WasEditedByUser || len(v.Points) != 1 {
		t.Fatalf("unexpected item %+v", v)
	}

	v, err = store.UpdateItemOverrides(ctx, res.ID, junctionID, user.ID, OverrideInput{Title: strPtr("")})
	if err != nil {
		t.Fatalf("clear override: %v", err)
	}
	if v.Title != "Engineer" || v.TitleOverride != nil || v.WasEditedByUser {
		t.Fatalf("override not cleared %+v", v)
	}

	if _, err := store.UpdateItemOverrides(ctx, res.ID, junctionID, user.ID+1, OverrideInput{Title: strPtr("x")}); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}

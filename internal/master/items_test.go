package master

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"resumate/internal/database"
	"resumate/internal/errcode"
	"resumate/internal/testutil"
)

func TestResumeItemPatchKeepsAbsentFields(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()

	item, err := store.CreateItem(ctx, user.ID, ResumeItemInput{
		ItemType:     "Experience",
		Title:        "Backend Engineer",
		Organization: strPtr("Acme"),
		StartDate:    strPtr("2021-03-01"),
		Technologies: []string{"Go", " ", "Postgres"},
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if item.ItemType != database.ItemTypeExperience || len(item.Technologies) != 2 {
		t.Fatalf("unexpected item %+v", item)
	}

	var patch ResumeItemPatch
	if err := json.Unmarshal([]byte(`{"description":"Built billing"}`), &patch); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	updated, err := store.UpdateItem(ctx, item.ID, user.ID, patch)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if updated.Title != "Backend Engineer" || updated.Organization == nil || *updated.Organization != "Acme" {
		t.Fatalf("absent fields changed: %+v", updated)
	}
	if updated.StartDate == nil || updated.StartDate.Format("2006-01-02") != "2021-03-01" {
		t.Fatalf("start date changed: %v", updated.StartDate)
	}
	if updated.Description == nil || *updated.Description != "Built billing" {
		t.Fatalf("description not written: %v", updated.Description)
	}

	var clearOrg ResumeItemPatch
	if err := json.Unmarshal([]byte(`{"organization":null}`), &clearOrg); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	if !clearOrg.Organization.Set || !clearOrg.Organization.Null || clearOrg.Title.Set {
		t.Fatalf("unexpected decoded patch %+v", clearOrg)
	}
	updated, err = store.UpdateItem(ctx, item.ID, user.ID, clearOrg)
	if err != nil {
		t.Fatalf("clear organization: %v", err)
	}
	if updated.Organization != nil {
		t.Fatalf("expected organization cleared, got %q", *updated.Organization)
	}
}

func TestResumeItemPatchValidation(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	item := testutil.SeedItem(t, db, user.ID, database.ItemTypeProject, "Compiler", "")
	ctx := context.Background()

	cases := []struct {
		name  string
		patch ResumeItemPatch
	}{
		{"empty", ResumeItemPatch{}},
		{"null title", ResumeItemPatch{Title: Null[string]()}},
		{"blank title", ResumeItemPatch{Title: Some("  ")}},
		{"bad type", ResumeItemPatch{ItemType: Some("hobby")}},
		{"bad date", ResumeItemPatch{EndDate: Some("soon")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.UpdateItem(ctx, item.ID, user.ID, tc.patch); !errors.Is(err, errcode.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := store.UpdateItem(ctx, item.ID, user.ID+1, ResumeItemPatch{Title: Some("x")}); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}

func TestListItemsFiltersAndOrders(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()

	mk := func(itemType, title string, start *string) uint {
		item, err := store.CreateItem(ctx, user.ID, ResumeItemInput{ItemType: itemType, Title: title, StartDate: start})
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		return item.ID
	}
	undated := mk("experience", "Volunteer", nil)
	old := mk("experience", "Junior", strPtr("2018-01-01"))
	recent := mk("experience", "Senior", strPtr("2022-01-01"))
	mk("project", "Side project", strPtr("2023-01-01"))

	items, err := store.ListItems(ctx, user.ID, "experience")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 3 || items[0].ID != recent || items[1].ID != old || items[2].ID != undated {
		t.Fatalf("unexpected order %+v", items)
	}

	if _, err := store.ListItems(ctx, user.ID, "hobby"); !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestDeleteItemCascadesToCuratedReferences(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()

	deleted := testutil.SeedItem(t, db, user.ID, database.ItemTypeExperience, "Engineer", "Acme", "Shipped A", "Shipped B")
	kept := testutil.SeedItem(t, db, user.ID, database.ItemTypeProject, "Tool", "", "Wrote C")

	resume := database.CuratedResume{UserID: user.ID, Title: "Tailored", Status: database.StatusDraft}
	if err := db.Create(&resume).Error; err != nil {
		t.Fatalf("seed curated resume: %v", err)
	}
	junction := database.CuratedResumeItemJunction{CuratedResumeID: resume.ID, ResumeItemID: deleted.ID, DisplayOrder: 0}
	keptJunction := database.CuratedResumeItemJunction{CuratedResumeID: resume.ID, ResumeItemID: kept.ID, DisplayOrder: 1}
	if err := db.Create(&junction).Error; err != nil {
		t.Fatalf("seed junction: %v", err)
	}
	if err := db.Create(&keptJunction).Error; err != nil {
		t.Fatalf("seed junction: %v", err)
	}
	// 保留条目上的一条要点，复制自被删除的条目
	crossLinked := database.CuratedResumeItemPoint{
		CuratedResumeItemJunctionID: keptJunction.ID,
		OriginalPointID:             &deleted.Points[0].ID,
		Content:                     "Shipped A",
	}
	ownPoint := database.CuratedResumeItemPoint{
		CuratedResumeItemJunctionID: junction.ID,
		OriginalPointID:             &deleted.Points[1].ID,
		Content:                     "Shipped B",
	}
	if err := db.Create(&crossLinked).Error; err != nil {
		t.Fatalf("seed curated point: %v", err)
	}
	if err := db.Create(&ownPoint).Error; err != nil {
		t.Fatalf("seed curated point: %v", err)
	}

	if err := store.DeleteItem(ctx, deleted.ID, user.ID+1); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
	if err := store.DeleteItem(ctx, deleted.ID, user.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}

	if n := testutil.Count(t, db, &database.ResumeItemPoint{}, "resume_item_id = ?", deleted.ID); n != 0 {
		t.Fatalf("expected points removed, %d remain", n)
	}
	if n := testutil.Count(t, db, &database.CuratedResumeItemJunction{}, "resume_item_id = ?", deleted.ID); n != 0 {
		t.Fatalf("expected junction removed, %d remain", n)
	}
	if n := testutil.Count(t, db, &database.CuratedResumeItemPoint{}, "id = ?", ownPoint.ID); n != 0 {
		t.Fatalf("expected curated point of removed junction deleted")
	}

	var survivor database.CuratedResumeItemPoint
	if err := db.First(&survivor, crossLinked.ID).Error; err != nil {
		t.Fatalf("cross-linked curated point lost: %v", err)
	}
	if survivor.OriginalPointID != nil {
		t.Fatalf("expected original point link cleared, got %d", *survivor.OriginalPointID)
	}
	if n := testutil.Count(t, db, &database.CuratedResume{}, ""); n != 1 {
		t.Fatalf("curated resume removed")
	}
	if n := testutil.Count(t, db, &database.ResumeItem{}, "id = ?", kept.ID); n != 1 {
		t.Fatalf("unrelated item removed")
	}
}

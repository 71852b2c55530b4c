package master

import (
	"context"
	"errors"
	"testing"

	"resumate/internal/database"
	"resumate/internal/errcode"
	"resumate/internal/testutil"
)

func TestDeleteDocumentUnlinksSkills(t *testing.T) {
	db := testutil.DB(t)
	store := NewStore(db)
	ctx := context.Background()
	alice := testutil.SeedUser(t, db, "alice")
	bob := testutil.SeedUser(t, db, "bob")

	doc := &database.SourceDocument{UserID: alice.ID, FileName: "cv.pdf", ObjectKey: "source-documents/1/a.pdf"}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	skill, err := store.CreateSkill(ctx, alice.ID, SkillInput{Name: "Go", SourcePdfID: &doc.ID})
	if err != nil {
		t.Fatalf("create skill: %v", err)
	}

	if _, err := store.DeleteDocument(ctx, doc.ID, bob.ID); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found for foreign delete, got %v", err)
	}

	deleted, err := store.DeleteDocument(ctx, doc.ID, alice.ID)
	if err != nil {
		t.Fatalf("delete document: %v", err)
	}
	if deleted.ObjectKey != doc.ObjectKey {
		t.Fatalf("expected object key returned, got %q", deleted.ObjectKey)
	}

	reloaded, err := store.GetSkill(ctx, skill.ID, alice.ID)
	if err != nil {
		t.Fatalf("skill should survive: %v", err)
	}
	if reloaded.SourcePdfID != nil {
		t.Fatalf("expected source cleared, got %v", *reloaded.SourcePdfID)
	}

	docs, err := store.ListDocuments(ctx, alice.ID)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected no documents, got %v %v", docs, err)
	}
}

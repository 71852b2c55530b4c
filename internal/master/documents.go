package master

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"resumate/internal/database"
)

// ListDocuments 按上传时间倒序返回用户的源文档。
func (s *Store) ListDocuments(ctx context.Context, userID uint) ([]database.SourceDocument, error) {
	var docs []database.SourceDocument
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list source documents: %w", err)
	}
	return docs, nil
}

// GetDocument 读取 userID 名下的一份源文档。
func (s *Store) GetDocument(ctx context.Context, id, userID uint) (*database.SourceDocument, error) {
	var doc database.SourceDocument
	if err := first(s.conn(ctx), &doc, id, userID); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CreateDocument 记录一个已上传的对象。
func (s *Store) CreateDocument(ctx context.Context, doc *database.SourceDocument) error {
	if err := s.conn(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create source document: %w", err)
	}
	return nil
}

// DeleteDocument 删除记录并清除引用它的技能来源。
// 返回的记录带有对象键，由调用方删除对象。
func (s *Store) DeleteDocument(ctx context.Context, id, userID uint) (*database.SourceDocument, error) {
	var doc database.SourceDocument
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(tx, &doc, id, userID); err != nil {
			return err
		}
		if err := tx.Model(&database.Skill{}).
			Where("source_pdf_id = ? AND user_id = ?", id, userID).
			Update("source_pdf_id", nil).Error; err != nil {
			return fmt.Errorf("unlink skills: %w", err)
		}
		if err := tx.Delete(&database.SourceDocument{}, doc.ID).Error; err != nil {
			return fmt.Errorf("delete source document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

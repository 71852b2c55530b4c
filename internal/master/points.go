package master

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"resumate/internal/database"
	"resumate/internal/errcode"
)

// PointInput 用于创建或编辑要点。DisplayOrder 为 nil 时，创建追加到末尾，
// 更新保持原位置。
type PointInput struct {
	Content      string `json:"content"`
	DisplayOrder *int   `json:"display_order"`
}

func (s *Store) listPoints(db *gorm.DB, itemID uint) ([]database.ResumeItemPoint, error) {
	var points []database.ResumeItemPoint
	if err := db.
		Where("resume_item_id = ?", itemID).
		Order("display_order ASC, created_at ASC, id ASC").
		Find(&points).Error; err != nil {
		return nil, fmt.Errorf("list points of item %d: %w", itemID, err)
	}
	return points, nil
}

// ListPoints 返回 userID 名下条目的要点。
func (s *Store) ListPoints(ctx context.Context, itemID, userID uint) ([]database.ResumeItemPoint, error) {
	var item database.ResumeItem
	if err := first(s.conn(ctx).Select("id"), &item, itemID, userID); err != nil {
		return nil, fmt.Errorf("list points of item %d: %w", itemID, err)
	}
	return s.listPoints(s.conn(ctx), itemID)
}

// GetPoint 返回 userID 名下的一条要点。
func (s *Store) GetPoint(ctx context.Context, id, userID uint) (*database.ResumeItemPoint, error) {
	var point database.ResumeItemPoint
	if err := first(s.conn(ctx), &point, id, userID); err != nil {
		return nil, fmt.Errorf("get point %d: %w", id, err)
	}
	return &point, nil
}

// CreatePoint 在条目末尾追加要点，归属用户取自条目。
func (s *Store) CreatePoint(ctx context.Context, itemID, userID uint, in PointInput) (*database.ResumeItemPoint, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errcode.Required("content")
	}

	var item database.ResumeItem
	if err := first(s.conn(ctx).Select("id", "user_id"), &item, itemID, userID); err != nil {
		return nil, fmt.Errorf("create point on item %d: %w", itemID, err)
	}

	order := 0
	if in.DisplayOrder != nil {
		order = *in.DisplayOrder
	} else {
		var next int
		if err := s.conn(ctx).Model(&database.ResumeItemPoint{}).
			Select("COALESCE(MAX(display_order), -1) + 1").
			Where("resume_item_id = ?", itemID).
			Scan(&next).Error; err != nil {
			return nil, fmt.Errorf("next display order: %w", err)
		}
		order = next
	}

	point := database.ResumeItemPoint{
		ResumeItemID: item.ID,
		UserID:       item.UserID,
		Content:      content,
		DisplayOrder: order,
	}
	if err := s.conn(ctx).Create(&point).Error; err != nil {
		return nil, fmt.Errorf("create point: %w", err)
	}
	return &point, nil
}

// UpdatePoint 替换内容，给出时也更新顺序。
func (s *Store) UpdatePoint(ctx context.Context, id, userID uint, in PointInput) (*database.ResumeItemPoint, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errcode.Required("content")
	}
	cols := map[string]any{"content": content}
	if in.DisplayOrder != nil {
		cols["display_order"] = *in.DisplayOrder
	}

	res := s.conn(ctx).Model(&database.ResumeItemPoint{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(cols)
	if res.Error != nil {
		return nil, fmt.Errorf("update point %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update point %d: %w", id, errcode.ErrNotFound)
	}
	return s.GetPoint(ctx, id, userID)
}

// DeletePoint 删除要点；由它复制出的定制要点保留文本，但失去链接。
func (s *Store) DeletePoint(ctx context.Context, id, userID uint) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var point database.ResumeItemPoint
		if err := first(tx.Select("id"), &point, id, userID); err != nil {
			return err
		}
		if err := tx.Model(&database.CuratedResumeItemPoint{}).
			Where("original_point_id = ?", id).
			Update("original_point_id", nil).Error; err != nil {
			return fmt.Errorf("unlink curated points: %w", err)
		}
		return tx.Delete(&database.ResumeItemPoint{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete point %d: %w", id, err)
	}
	return nil
}

// ReorderPoints 按 ids 的顺序赋 0..n-1，ids 必须恰好列出条目的每条要点一次。
func (s *Store) ReorderPoints(ctx context.Context, itemID, userID uint, ids []uint) ([]database.ResumeItemPoint, error) {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var item database.ResumeItem
		if err := first(tx.Select("id"), &item, itemID, userID); err != nil {
			return err
		}

		var existing []uint
		if err := tx.Model(&database.ResumeItemPoint{}).
			Where("resume_item_id = ?", itemID).
			Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("load point ids: %w", err)
		}
		if len(existing) != len(ids) {
			return errcode.Invalid("point_ids", "must list every point of the item exactly once")
		}
		known := make(map[uint]bool, len(existing))
		for _, id := range existing {
			known[id] = false
		}
		for _, id := range ids {
			seen, ok := known[id]
			if !ok || seen {
				return errcode.Invalid("point_ids", "must list every point of the item exactly once")
			}
			known[id] = true
		}

		for order, id := range ids {
			if err := tx.Model(&database.ResumeItemPoint{}).
				Where("id = ?", id).
				Update("display_order", order).Error; err != nil {
				return fmt.Errorf("update order of point %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reorder points of item %d: %w", itemID, err)
	}
	return s.listPoints(s.conn(ctx), itemID)
}
